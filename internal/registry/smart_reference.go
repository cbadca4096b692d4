package registry

import (
	"sync/atomic"
	"weak"
)

// transitioner is the non-generic view of a SmartReference that a scope
// re-evaluates on every counter change.
type transitioner interface {
	setStrong(strong bool)
}

// SmartReference always keeps a weak handle to its referent and additionally
// a strong one while the owning scope's managed-instance counter is positive.
type SmartReference[T any] struct {
	weak   weak.Pointer[T]
	strong atomic.Pointer[T]
}

func newSmartReference[T any](obj *T, strong bool) *SmartReference[T] {
	ref := &SmartReference[T]{weak: weak.Make(obj)}
	if strong {
		ref.strong.Store(obj)
	}
	return ref
}

// Get returns the referent, or nil once it has been collected.
func (r *SmartReference[T]) Get() *T {
	if s := r.strong.Load(); s != nil {
		return s
	}
	return r.weak.Value()
}

// IsStrong reports whether the reference currently pins its referent.
func (r *SmartReference[T]) IsStrong() bool {
	return r.strong.Load() != nil
}

// setStrong moves between the WEAK and STRONG states. Promotion re-materializes
// the strong handle from the weak one; a collected referent stays collected.
func (r *SmartReference[T]) setStrong(strong bool) {
	if !strong {
		r.strong.Store(nil)
		return
	}
	if r.strong.Load() != nil {
		return
	}
	if v := r.weak.Value(); v != nil {
		r.strong.CompareAndSwap(nil, v)
	}
}
