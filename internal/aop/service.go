package aop

import (
	"sync/atomic"

	"github.com/mabhi256/xmx/internal/jvm"
)

// Instances maps an advice class id of a plan to the advice instance
// created for one call. It travels with the call from Before to the
// matching AfterReturn or AfterThrow.
type Instances map[int]*jvm.Object

// Service is the runtime side of the dispatch protocol that woven method
// bodies call into.
type Service interface {
	Before(joinPoint int, this *jvm.Object, args []any) Instances
	AfterReturn(retVal any, joinPoint int, instances Instances, this *jvm.Object, args []any) any
	AfterThrow(thrown error, joinPoint int, instances Instances, this *jvm.Object, args []any)
}

type installation struct {
	svc Service
}

var installed atomic.Pointer[installation]

// Install makes svc the process-wide dispatch service.
func Install(svc Service) {
	installed.Store(&installation{svc: svc})
}

// Uninstall disables dispatch. Woven code then behaves as if unwoven.
func Uninstall() {
	installed.Store(nil)
}

// Installed returns the current service, or nil when dispatch is disabled.
func Installed() Service {
	if inst := installed.Load(); inst != nil {
		return inst.svc
	}
	return nil
}

func Before(joinPoint int, this *jvm.Object, args []any) Instances {
	if svc := Installed(); svc != nil {
		return svc.Before(joinPoint, this, args)
	}
	return nil
}

func AfterReturn(retVal any, joinPoint int, instances Instances, this *jvm.Object, args []any) any {
	if svc := Installed(); svc != nil {
		return svc.AfterReturn(retVal, joinPoint, instances, this, args)
	}
	return retVal
}

func AfterThrow(thrown error, joinPoint int, instances Instances, this *jvm.Object, args []any) {
	if svc := Installed(); svc != nil {
		svc.AfterThrow(thrown, joinPoint, instances, this, args)
	}
}
