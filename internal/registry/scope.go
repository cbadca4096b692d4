package registry

import (
	"slices"
	"strconv"
	"sync"
	"weak"

	"github.com/mabhi256/xmx/internal/jvm"
)

// ManagedClassLoaderWeakRef is the registry state of one loading scope. It
// holds the scope's loader weakly and owns the counter that decides whether
// SmartReferences created for the scope's instances are strong.
type ManagedClassLoaderWeakRef struct {
	id      int
	name    string
	loader  weak.Pointer[jvm.Loader]
	onCount func(scope *ManagedClassLoaderWeakRef, count int)

	// mu serializes counter transitions with the re-evaluation of refs so a
	// promotion is never lost between reading the counter and acting on it.
	mu    sync.Mutex
	count int
	refs  map[transitioner]struct{}

	paramNames sync.Map // *jvm.Method -> []string
}

func newScope(id int, loader *jvm.Loader) *ManagedClassLoaderWeakRef {
	return &ManagedClassLoaderWeakRef{
		id:     id,
		name:   loader.Name(),
		loader: weak.Make(loader),
		refs:   make(map[transitioner]struct{}),
	}
}

func (s *ManagedClassLoaderWeakRef) ID() int {
	return s.id
}

// Name is the application name of the scope.
func (s *ManagedClassLoaderWeakRef) Name() string {
	return s.name
}

// Loader returns the scope's loader, or nil if it has been collected.
func (s *ManagedClassLoaderWeakRef) Loader() *jvm.Loader {
	return s.loader.Value()
}

func (s *ManagedClassLoaderWeakRef) IncrementManagedInstancesCount() int {
	return s.adjust(1)
}

// DecrementManagedInstancesCount saturates at zero.
func (s *ManagedClassLoaderWeakRef) DecrementManagedInstancesCount() int {
	return s.adjust(-1)
}

func (s *ManagedClassLoaderWeakRef) adjust(delta int) int {
	s.mu.Lock()
	s.count = max(s.count+delta, 0)
	count := s.count
	strong := count > 0
	for ref := range s.refs {
		ref.setStrong(strong)
	}
	s.mu.Unlock()

	if s.onCount != nil {
		s.onCount(s, count)
	}
	return count
}

func (s *ManagedClassLoaderWeakRef) ManagedInstancesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// CreateSmartReference registers a reference to obj in the scope, strong iff
// the counter is currently positive.
func CreateSmartReference[T any](s *ManagedClassLoaderWeakRef, obj *T) *SmartReference[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := newSmartReference(obj, s.count > 0)
	s.refs[ref] = struct{}{}
	return ref
}

// RemoveSmartReference unregisters ref. It is left weak and no longer
// follows counter transitions.
func RemoveSmartReference[T any](s *ManagedClassLoaderWeakRef, ref *SmartReference[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, ref)
	ref.setStrong(false)
}

// TrackedReferences is the number of references the scope re-evaluates on transitions.
func (s *ManagedClassLoaderWeakRef) TrackedReferences() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// ParameterNames returns m's parameter names, falling back to argN when the
// method carries no names. Results are cached per scope.
func (s *ManagedClassLoaderWeakRef) ParameterNames(m *jvm.Method) []string {
	if cached, ok := s.paramNames.Load(m); ok {
		return slices.Clone(cached.([]string))
	}

	names := make([]string, len(m.Params))
	for i := range names {
		if i < len(m.ParamNames) && m.ParamNames[i] != "" {
			names[i] = m.ParamNames[i]
		} else {
			names[i] = "arg" + strconv.Itoa(i)
		}
	}
	actual, _ := s.paramNames.LoadOrStore(m, names)
	return slices.Clone(actual.([]string))
}

func (s *ManagedClassLoaderWeakRef) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref := range s.refs {
		ref.setStrong(false)
	}
	s.refs = make(map[transitioner]struct{})
	s.count = 0
	s.paramNames.Clear()
}
