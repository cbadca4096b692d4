package advice

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/mabhi256/xmx/internal/jvm"
)

// Library is a versioned unit of advice classes.
type Library struct {
	Name    string
	Version *semver.Version
	Classes []jvm.ClassDef
}

func NewLibrary(name, version string, classes ...jvm.ClassDef) (*Library, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("library %s: invalid version %q: %w", name, version, err)
	}
	return &Library{Name: name, Version: v, Classes: classes}, nil
}

func (l *Library) String() string {
	return l.Name + "@" + l.Version.String()
}

func (l *Library) classDef(name string) (jvm.ClassDef, bool) {
	for _, def := range l.Classes {
		if def.Name == name {
			return def, true
		}
	}
	return jvm.ClassDef{}, false
}

// Repository holds every known version of every advice library.
type Repository struct {
	mu   sync.RWMutex
	libs map[string][]*Library // highest version first
}

func NewRepository() *Repository {
	return &Repository{libs: make(map[string][]*Library)}
}

func (r *Repository) Add(lib *Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.libs[lib.Name] {
		if existing.Version.Equal(lib.Version) {
			return fmt.Errorf("library %s already registered", lib)
		}
	}
	versions := append(r.libs[lib.Name], lib)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version.GreaterThan(versions[j].Version)
	})
	r.libs[lib.Name] = versions
	return nil
}

// Libraries returns every registered library ordered by name, highest version first.
func (r *Repository) Libraries() []*Library {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.libs))
	for name := range r.libs {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []*Library
	for _, name := range names {
		result = append(result, r.libs[name]...)
	}
	return result
}

// Resolve picks the highest version matching a search path entry of the form
// name or name@constraint.
func (r *Repository) Resolve(entry string) (*Library, error) {
	name, expr, _ := strings.Cut(strings.TrimSpace(entry), "@")
	if name == "" {
		return nil, fmt.Errorf("search path entry %q: empty library name", entry)
	}
	if strings.TrimSpace(expr) == "" {
		expr = ">=0.0.0"
	}
	con, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("search path entry %q: %w", entry, err)
	}

	r.mu.RLock()
	candidates := slices.Clone(r.libs[name])
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("search path entry %q: unknown library %s", entry, name)
	}
	for _, lib := range candidates {
		if con.Check(lib.Version) {
			return lib, nil
		}
	}
	return nil, fmt.Errorf("search path entry %q: no version of %s satisfies %s", entry, name, con)
}

// ResolvePath resolves an application's search path. The first entry naming
// a library wins; unresolvable entries are returned as errors and skipped.
func (r *Repository) ResolvePath(path []string) ([]*Library, []error) {
	var libs []*Library
	var errs []error
	seen := make(map[string]bool)
	for _, entry := range path {
		lib, err := r.Resolve(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[lib.Name] {
			continue
		}
		seen[lib.Name] = true
		libs = append(libs, lib)
	}
	return libs, errs
}

// Descriptor names one advice class as library:class.
type Descriptor struct {
	Library string
	Class   string
}

func ParseDescriptor(s string) (Descriptor, error) {
	lib, class, ok := strings.Cut(strings.TrimSpace(s), ":")
	lib, class = strings.TrimSpace(lib), strings.TrimSpace(class)
	if !ok || lib == "" || class == "" {
		return Descriptor{}, fmt.Errorf("advice descriptor %q: expected library:class", s)
	}
	return Descriptor{Library: lib, Class: class}, nil
}

func (d Descriptor) String() string {
	return d.Library + ":" + d.Class
}
