package pattern

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/mabhi256/xmx/internal/model"
)

type NameKind int

const (
	KindMask NameKind = iota
	KindLiteral
	KindRegex
)

func (k NameKind) String() string {
	switch k {
	case KindMask:
		return "mask"
	case KindLiteral:
		return "literal"
	case KindRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// NamePattern matches a single name. It is immutable and safe for concurrent use.
type NamePattern struct {
	source    string
	kind      NameKind
	re        *regexp.Regexp
	literal   string
	qualified bool
}

var nameCache sync.Map // string -> *NamePattern

// CompileName compiles a type or member name pattern:
//
//	^...$        full-match regular expression
//	"..."        exact literal, '' stands for an embedded double quote
//	a.b*|c$D     mask; * is any sequence, | separates alternatives
func CompileName(s string) (*NamePattern, error) {
	if cached, ok := nameCache.Load(s); ok {
		return cached.(*NamePattern), nil
	}

	p, err := compileName(s)
	if err != nil {
		return nil, err
	}
	actual, _ := nameCache.LoadOrStore(s, p)
	return actual.(*NamePattern), nil
}

// MustCompileName is for statically known patterns.
func MustCompileName(s string) *NamePattern {
	p, err := CompileName(s)
	if err != nil {
		panic(err)
	}
	return p
}

func compileName(raw string) (*NamePattern, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, parseError(raw, "", "empty pattern")
	}

	switch {
	case strings.HasPrefix(s, "^"):
		if !strings.HasSuffix(s, "$") || len(s) < 2 {
			return nil, parseError(raw, s, "regular expression must be anchored with ^ and $")
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, parseError(raw, s, "malformed regular expression: %v", err)
		}
		return &NamePattern{source: s, kind: KindRegex, re: re, qualified: true}, nil

	case strings.HasPrefix(s, `"`):
		lit, err := unquote(raw, s)
		if err != nil {
			return nil, err
		}
		return &NamePattern{
			source:    s,
			kind:      KindLiteral,
			literal:   lit,
			qualified: strings.Contains(lit, "."),
		}, nil

	default:
		return compileMask(raw, s)
	}
}

func unquote(raw, s string) (string, error) {
	var sb strings.Builder
	for i := 1; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			if i != len(s)-1 {
				return "", parseError(raw, s[i+1:], "unexpected text after closing quote")
			}
			return sb.String(), nil
		case c == '\'' && i+1 < len(s) && s[i+1] == '\'':
			sb.WriteByte('"')
			i += 2
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", parseError(raw, s, "unterminated quote")
}

func isMaskRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		strings.ContainsRune("_ .$|*", r)
}

func compileMask(raw, s string) (*NamePattern, error) {
	for i, r := range s {
		if !isMaskRune(r) {
			end := i + utf8.RuneLen(r)
			return nil, parseError(raw, s[i:end], "illegal character in name mask")
		}
	}

	var alts []string
	qualified := false
	for _, alt := range strings.Split(s, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, parseError(raw, s, "empty alternative in name mask")
		}
		if strings.ContainsAny(alt, " \t") {
			return nil, parseError(raw, alt, "whitespace inside name")
		}
		if strings.Contains(alt, ".") {
			qualified = true
		}
		parts := strings.Split(alt, "*")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		alts = append(alts, strings.Join(parts, ".*"))
	}

	re, err := regexp.Compile("^(?:" + strings.Join(alts, "|") + ")$")
	if err != nil {
		return nil, parseError(raw, s, "malformed mask: %v", err)
	}
	return &NamePattern{source: s, kind: KindMask, re: re, qualified: qualified}, nil
}

func (p *NamePattern) Kind() NameKind {
	return p.kind
}

// Match tests the name exactly as given.
func (p *NamePattern) Match(name string) bool {
	if p.kind == KindLiteral {
		return p.literal == name
	}
	return p.re.MatchString(name)
}

// MatchTypeName tests a dotted type name. Unqualified literal and mask
// patterns are compared against the simple name only.
func (p *NamePattern) MatchTypeName(name string) bool {
	if p.qualified {
		return p.Match(name)
	}
	return p.Match(model.TypeSpec{Name: name}.SimpleName())
}

// Qualified reports whether the pattern is compared against qualified names.
func (p *NamePattern) Qualified() bool {
	return p.qualified
}

func (p *NamePattern) IsWildcard() bool {
	return p.kind == KindMask && p.source == "*"
}

func (p *NamePattern) String() string {
	return p.source
}

// Match compiles pattern and tests name against it.
func Match(pattern, name string) (bool, error) {
	p, err := CompileName(pattern)
	if err != nil {
		return false, err
	}
	return p.Match(name), nil
}
