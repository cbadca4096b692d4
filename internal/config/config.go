package config

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mabhi256/xmx/internal/pattern"
)

// Known property names.
const (
	PropEnabled          = "enabled"
	PropManaged          = "managed"
	PropMaxInstances     = "maxInstances"
	PropAdvices          = "advices"
	PropAdviceSearchPath = "adviceSearchPath"
)

const DefaultMaxInstances = 100

// Properties are the settings attached to one section.
type Properties map[string]any

// Document is the on-disk form of the configuration.
type Document struct {
	Properties Properties   `json:"properties,omitempty"`
	Apps       []AppSection `json:"apps,omitempty"`
}

type AppSection struct {
	Pattern    string         `json:"pattern"`
	Properties Properties     `json:"properties,omitempty"`
	Classes    []ClassSection `json:"classes,omitempty"`
}

type ClassSection struct {
	Pattern    string          `json:"pattern"`
	Properties Properties      `json:"properties,omitempty"`
	Methods    []MemberSection `json:"methods,omitempty"`
	Fields     []MemberSection `json:"fields,omitempty"`
}

type MemberSection struct {
	Pattern    string     `json:"pattern"`
	Properties Properties `json:"properties,omitempty"`
}

// Config is a compiled Document. It is immutable once built.
type Config struct {
	system Properties
	apps   []*appEntry

	// Problems lists the entries disabled because their pattern did not compile.
	Problems []error
}

type appEntry struct {
	pattern *pattern.NamePattern
	props   Properties
	classes []*classEntry
}

type classEntry struct {
	pattern *pattern.NamePattern
	props   Properties
	methods []*methodEntry
	fields  []*fieldEntry
}

type methodEntry struct {
	matcher *pattern.MethodMatcher
	props   Properties
}

type fieldEntry struct {
	pattern *pattern.NamePattern
	props   Properties
}

// Default is the configuration used when no document is given: everything
// enabled, nothing selected.
func Default() *Config {
	return &Config{system: Properties{
		PropEnabled:      true,
		PropMaxInstances: DefaultMaxInstances,
	}}
}

// Load reads and compiles a JSON document from path.
func Load(path string, log *zap.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse compiles a JSON document. Malformed JSON is an error; a pattern that
// fails to compile disables only the section carrying it.
func Parse(data []byte, log *zap.Logger) (*Config, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return Compile(doc, log), nil
}

// Compile builds a Config from a document.
func Compile(doc Document, log *zap.Logger) *Config {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config")

	cfg := Default()
	for k, v := range doc.Properties {
		cfg.system[k] = v
	}

	problem := func(where string, err error) {
		cfg.Problems = append(cfg.Problems, fmt.Errorf("%s: %w", where, err))
		log.Warn("config entry disabled", zap.String("entry", where), zap.Error(err))
	}

	for i, app := range doc.Apps {
		where := fmt.Sprintf("apps[%d]", i)
		ap, err := pattern.CompileName(app.Pattern)
		if err != nil {
			problem(where, err)
			continue
		}
		ae := &appEntry{pattern: ap, props: app.Properties}

		for j, cls := range app.Classes {
			where := fmt.Sprintf("%s.classes[%d]", where, j)
			cp, err := pattern.CompileName(cls.Pattern)
			if err != nil {
				problem(where, err)
				continue
			}
			ce := &classEntry{pattern: cp, props: cls.Properties}

			for k, m := range cls.Methods {
				mm, err := pattern.CompileMethod(m.Pattern)
				if err != nil {
					problem(fmt.Sprintf("%s.methods[%d]", where, k), err)
					continue
				}
				ce.methods = append(ce.methods, &methodEntry{matcher: mm, props: m.Properties})
			}
			for k, f := range cls.Fields {
				fp, err := pattern.CompileName(f.Pattern)
				if err != nil {
					problem(fmt.Sprintf("%s.fields[%d]", where, k), err)
					continue
				}
				ce.fields = append(ce.fields, &fieldEntry{pattern: fp, props: f.Properties})
			}
			ae.classes = append(ae.classes, ce)
		}
		cfg.apps = append(cfg.apps, ae)
	}
	return cfg
}

// Resolve returns the value of key for e. The most specific matching scope
// wins; among sections of the same level, later sections override earlier ones.
func (c *Config) Resolve(e CfgEntity, key string) (any, bool) {
	for {
		if v, ok := c.lookup(e, key); ok {
			return v, true
		}
		if e.Level == System {
			return nil, false
		}
		e = e.Parent()
	}
}

func (c *Config) lookup(e CfgEntity, key string) (any, bool) {
	if e.Level == System {
		v, ok := c.system[key]
		return v, ok
	}

	for i := len(c.apps) - 1; i >= 0; i-- {
		app := c.apps[i]
		if !app.pattern.Match(e.App) {
			continue
		}
		if e.Level == Application {
			if v, ok := app.props[key]; ok {
				return v, true
			}
			continue
		}
		for j := len(app.classes) - 1; j >= 0; j-- {
			cls := app.classes[j]
			if !cls.pattern.MatchTypeName(e.Class) {
				continue
			}
			if v, ok := cls.lookup(e, key); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func (ce *classEntry) lookup(e CfgEntity, key string) (any, bool) {
	switch e.Level {
	case Class:
		v, ok := ce.props[key]
		return v, ok
	case Method:
		for i := len(ce.methods) - 1; i >= 0; i-- {
			if ce.methods[i].matcher.Matches(e.Method) {
				if v, ok := ce.methods[i].props[key]; ok {
					return v, true
				}
			}
		}
	case Field:
		for i := len(ce.fields) - 1; i >= 0; i-- {
			if ce.fields[i].pattern.Match(e.Field) {
				if v, ok := ce.fields[i].props[key]; ok {
					return v, true
				}
			}
		}
	}
	return nil, false
}

// Selected reports whether any class section matches the class, i.e.
// whether the class is of interest at all.
func (c *Config) Selected(app, class string) bool {
	for _, ae := range c.apps {
		if !ae.pattern.Match(app) {
			continue
		}
		for _, ce := range ae.classes {
			if ce.pattern.MatchTypeName(class) {
				return true
			}
		}
	}
	return false
}

func (c *Config) Bool(e CfgEntity, key string, def bool) bool {
	if v, ok := c.Resolve(e, key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (c *Config) Int(e CfgEntity, key string, def int) int {
	v, ok := c.Resolve(e, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

// Strings resolves a list property. A single string is a one-element list.
func (c *Config) Strings(e CfgEntity, key string) []string {
	v, ok := c.Resolve(e, key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case string:
		return []string{list}
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

// Enabled is the system-level kill switch.
func (c *Config) Enabled() bool {
	return c.Bool(SystemEntity(), PropEnabled, true)
}
