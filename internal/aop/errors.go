package aop

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/advice"
)

// AdviceInvocationFailure reports an advice that failed during dispatch.
// It is logged and never returned to application code.
type AdviceInvocationFailure struct {
	JoinPoint int
	Target    string
	Advice    string
	Kind      advice.JoinPointKind
	Err       error
}

func (e *AdviceInvocationFailure) Error() string {
	return fmt.Sprintf("%s advice %s failed at join point %d (%s): %v", e.Kind, e.Advice, e.JoinPoint, e.Target, e.Err)
}

func (e *AdviceInvocationFailure) Unwrap() error {
	return e.Err
}
