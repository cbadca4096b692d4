package jvm

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mabhi256/xmx/internal/model"
)

var loaderIDs atomic.Int64

// Loader is a loading scope. Lookups delegate to the parent first, so a
// child sees every class its ancestors define.
type Loader struct {
	id     int64
	name   string
	parent *Loader

	mu        sync.RWMutex
	classes   map[string]*Class
	listeners []func(*Loader)
	disposed  bool
}

// NewLoader creates a scope. A nil parent means the bootstrap loader.
func NewLoader(name string, parent *Loader) *Loader {
	if parent == nil {
		parent = Bootstrap()
	}
	return newLoader(name, parent)
}

func newLoader(name string, parent *Loader) *Loader {
	return &Loader{
		id:      loaderIDs.Add(1),
		name:    name,
		parent:  parent,
		classes: make(map[string]*Class),
	}
}

func (l *Loader) ID() int64 {
	return l.id
}

func (l *Loader) Name() string {
	return l.name
}

func (l *Loader) Parent() *Loader {
	return l.parent
}

func (l *Loader) String() string {
	return fmt.Sprintf("%s#%d", l.name, l.id)
}

// NewChild creates a scope that can see everything the receiver sees but
// has its own identity and class table.
func (l *Loader) NewChild(name string) *Loader {
	return newLoader(name, l)
}

// Define registers a new class in this scope.
func (l *Loader) Define(def ClassDef) (*Class, error) {
	cls, err := newClass(l, def)
	if err != nil {
		return nil, err
	}

	if def.Super != "" {
		if _, err := l.LoadClass(def.Super); err != nil {
			return nil, fmt.Errorf("define %s: super class: %w", def.Name, err)
		}
	}
	for _, iface := range def.Interfaces {
		if _, err := l.LoadClass(iface); err != nil {
			return nil, fmt.Errorf("define %s: interface: %w", def.Name, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return nil, fmt.Errorf("define %s: loader %s is disposed", def.Name, l)
	}
	if _, exists := l.classes[def.Name]; exists {
		return nil, fmt.Errorf("define %s: duplicate class in %s", def.Name, l)
	}
	l.classes[def.Name] = cls
	return cls, nil
}

// MustDefine is for fixtures whose definitions are known to be valid.
func (l *Loader) MustDefine(def ClassDef) *Class {
	cls, err := l.Define(def)
	if err != nil {
		panic(err)
	}
	return cls
}

// LoadClass resolves a class by dotted name, parent first.
func (l *Loader) LoadClass(name string) (*Class, error) {
	if l.parent != nil {
		if cls, err := l.parent.LoadClass(name); err == nil {
			return cls, nil
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.disposed {
		return nil, fmt.Errorf("%s: loader %s is disposed", name, l)
	}
	if cls, ok := l.classes[name]; ok {
		return cls, nil
	}
	return nil, &ClassNotFoundError{Name: name, Loader: l.String()}
}

// Classes returns the classes defined directly in this scope, sorted by name.
func (l *Loader) Classes() []*Class {
	l.mu.RLock()
	defer l.mu.RUnlock()

	classes := make([]*Class, 0, len(l.classes))
	for _, cls := range l.classes {
		classes = append(classes, cls)
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Name < classes[j].Name
	})
	return classes
}

// OnDispose registers fn to run once when the scope is disposed.
func (l *Loader) OnDispose(fn func(*Loader)) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		fn(l)
		return
	}
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Dispose unloads the scope. Listeners run synchronously.
func (l *Loader) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	listeners := l.listeners
	l.listeners = nil
	l.classes = make(map[string]*Class)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(l)
	}
}

func (l *Loader) Disposed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.disposed
}

// IsAssignable reports whether a value of type from can be stored in a
// variable of type to, resolving class names through this scope.
func (l *Loader) IsAssignable(to, from model.TypeSpec) bool {
	if to == from {
		return true
	}
	if to.IsPrimitive() || from.IsPrimitive() || to.IsVoid() || from.IsVoid() {
		return false
	}
	if to.IsObject() {
		return true
	}

	switch {
	case from.Dims == 0 && to.Dims == 0:
		return l.isSubclass(from.Name, to.Name, make(map[string]bool))
	case to.Dims == 0 || from.Dims == 0:
		return false
	case to.Dims < from.Dims:
		return to.Name == model.ObjectClass
	case to.Dims > from.Dims:
		return false
	default:
		return l.IsAssignable(to.Component(), from.Component())
	}
}

func (l *Loader) isSubclass(name, target string, seen map[string]bool) bool {
	if name == target {
		return true
	}
	if seen[name] {
		return false
	}
	seen[name] = true

	cls, err := l.LoadClass(name)
	if err != nil {
		return false
	}
	if cls.Super != "" && l.isSubclass(cls.Super, target, seen) {
		return true
	}
	for _, iface := range cls.Interfaces {
		if l.isSubclass(iface, target, seen) {
			return true
		}
	}
	return false
}

// ClassNotFoundError is returned when no scope in the chain defines a class.
type ClassNotFoundError struct {
	Name   string
	Loader string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("class %s not found in %s", e.Name, e.Loader)
}
