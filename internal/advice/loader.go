package advice

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mabhi256/xmx/internal/jvm"
)

var ErrLoaderClosed = errors.New("advice loader closed")

// Loader loads and verifies advice classes for one target scope. Each
// library gets its own child scope of the target, so advice sees the
// target's types while remaining isolated from other targets.
type Loader struct {
	target *jvm.Loader
	libs   map[string]*Library
	log    *zap.Logger

	// mu serializes class definition and guards scopes.
	mu     sync.Mutex
	scopes map[string]*jvm.Loader
	closed bool

	group    singleflight.Group
	infos    sync.Map // descriptor -> *AdviceClassInfo
	failed   sync.Map // descriptor -> *BadAdvice
	attempts atomic.Int64
}

func NewLoader(target *jvm.Loader, libs []*Library, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	byName := make(map[string]*Library, len(libs))
	for _, lib := range libs {
		byName[lib.Name] = lib
	}
	return &Loader{
		target: target,
		libs:   byName,
		log:    log.Named("advice").With(zap.Stringer("target", target)),
		scopes: make(map[string]*jvm.Loader),
	}
}

// Target is the scope the advice is loaded for.
func (l *Loader) Target() *jvm.Loader {
	return l.target
}

// Attempts counts class loads actually performed, excluding cache hits.
func (l *Loader) Attempts() int64 {
	return l.attempts.Load()
}

// Load returns the verified AdviceClassInfo for a library:class descriptor.
// Results and permanent failures are memoized for the lifetime of the loader.
func (l *Loader) Load(descriptor string) (*AdviceClassInfo, error) {
	if info, ok := l.infos.Load(descriptor); ok {
		return info.(*AdviceClassInfo), nil
	}
	if bad, ok := l.failed.Load(descriptor); ok {
		return nil, bad.(*BadAdvice)
	}

	v, err, _ := l.group.Do(descriptor, func() (any, error) {
		if info, ok := l.infos.Load(descriptor); ok {
			return info, nil
		}
		if bad, ok := l.failed.Load(descriptor); ok {
			return nil, bad.(*BadAdvice)
		}

		info, err := l.load(descriptor)
		if errors.Is(err, ErrLoaderClosed) {
			return nil, err
		}
		if err != nil {
			bad := asBadAdvice(descriptor, err)
			l.failed.Store(descriptor, bad)
			l.log.Warn("advice class dropped", zap.String("descriptor", descriptor), zap.Error(bad))
			return nil, bad
		}
		l.infos.Store(descriptor, info)
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AdviceClassInfo), nil
}

// LoadAll loads descriptors in order, skipping duplicates and failures.
// Failures are returned alongside the usable infos.
func (l *Loader) LoadAll(descriptors []string) ([]*AdviceClassInfo, []error) {
	var infos []*AdviceClassInfo
	var errs []error
	seen := make(map[string]bool)
	for _, d := range descriptors {
		if seen[d] {
			continue
		}
		seen[d] = true
		info, err := l.Load(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, errs
}

// Close disposes every advice scope and forgets all cached results.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	scopes := l.scopes
	l.scopes = nil
	l.mu.Unlock()

	for _, scope := range scopes {
		scope.Dispose()
	}
	l.infos.Clear()
	l.failed.Clear()
	l.log.Debug("advice loader closed", zap.Int("scopes", len(scopes)))
}

func (l *Loader) load(descriptor string) (*AdviceClassInfo, error) {
	d, err := ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	lib, ok := l.libs[d.Library]
	if !ok {
		return nil, fmt.Errorf("library %s is not on the advice search path", d.Library)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrLoaderClosed
	}
	scope := l.scopeFor(lib)
	l.attempts.Add(1)
	cls, err := l.define(scope, lib, d.Class, make(map[string]bool))
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	info := &AdviceClassInfo{
		Descriptor: d,
		Library:    lib,
		Class:      &ClassRef{Name: cls.Name, scope: scope},
	}
	info.Class.cached.Store(cls)

	for _, m := range cls.Methods() {
		if !isJoinPointMethod(m) {
			continue
		}
		if err := linkTypes(scope, m); err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		decl, reason := declare(cls, m)
		if reason != "" {
			bad := &BadAdvice{Descriptor: descriptor, Method: m.Name + m.Descriptor(), Reason: reason}
			info.Rejected = append(info.Rejected, bad)
			l.log.Warn("advice method rejected", zap.Error(bad))
			continue
		}
		info.Methods = append(info.Methods, decl)
	}

	l.log.Debug("advice class loaded",
		zap.String("descriptor", descriptor),
		zap.Stringer("library", lib),
		zap.Int("methods", len(info.Methods)),
		zap.Int("rejected", len(info.Rejected)))
	return info, nil
}

// scopeFor must be called with l.mu held.
func (l *Loader) scopeFor(lib *Library) *jvm.Loader {
	if scope, ok := l.scopes[lib.Name]; ok {
		return scope
	}
	scope := l.target.NewChild(fmt.Sprintf("%s/advice:%s", l.target.Name(), lib))
	l.scopes[lib.Name] = scope
	return scope
}

// define loads name into scope, first defining any super class or interface
// the library itself provides. Must be called with l.mu held.
func (l *Loader) define(scope *jvm.Loader, lib *Library, name string, visiting map[string]bool) (*jvm.Class, error) {
	if cls, err := scope.LoadClass(name); err == nil {
		return cls, nil
	}
	def, ok := lib.classDef(name)
	if !ok {
		return nil, &jvm.ClassNotFoundError{Name: name, Loader: lib.String()}
	}
	if visiting[name] {
		return nil, fmt.Errorf("class %s: circular inheritance", name)
	}
	visiting[name] = true

	deps := append([]string{def.Super}, def.Interfaces...)
	for _, dep := range deps {
		if _, ok := lib.classDef(dep); !ok || dep == "" {
			continue
		}
		if _, err := l.define(scope, lib, dep, visiting); err != nil {
			return nil, err
		}
	}
	return scope.Define(def)
}

func asBadAdvice(descriptor string, err error) *BadAdvice {
	var bad *BadAdvice
	if errors.As(err, &bad) {
		return bad
	}
	var cnf *jvm.ClassNotFoundError
	if errors.As(err, &cnf) {
		return &BadAdvice{Descriptor: descriptor, Reason: "required type not available", Err: err}
	}
	return &BadAdvice{Descriptor: descriptor, Reason: "class failed to load", Err: err}
}
