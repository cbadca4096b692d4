package aop

import (
	"slices"

	"github.com/mabhi256/xmx/internal/jvm"
)

// Weave replaces m's body with one that calls the dispatch protocol around
// the original body:
//
//	instances := Before(jp, this, args)      // args may be overridden
//	ret, err := original(this, args)
//	err != nil: AfterThrow(err, ...); the error propagates unchanged
//	otherwise:  return AfterReturn(ret, ...)
func Weave(m *jvm.Method, joinPoint int) {
	original := m.OriginalBody()
	if original == nil {
		return
	}
	m.SetBody(func(this *jvm.Object, args []any) (any, error) {
		args = slices.Clone(args)
		instances := Before(joinPoint, this, args)
		ret, err := jvm.Call(original, this, args)
		if err != nil {
			AfterThrow(err, joinPoint, instances, this, args)
			return nil, err
		}
		return AfterReturn(ret, joinPoint, instances, this, args), nil
	})
}

// Unweave restores the original body.
func Unweave(m *jvm.Method) {
	if original := m.OriginalBody(); original != nil {
		m.SetBody(original)
	}
}
