package weaving

import "fmt"

// AdviceArgument says how one advice parameter is supplied at a join point.
// The set of implementations is closed.
type AdviceArgument interface {
	fmt.Stringer
	isAdviceArgument()
}

// ThisArg supplies the target instance.
type ThisArg struct{}

// TargetArg supplies one target argument. Updatable arguments are passed as
// an advice.Ref and written back after the advice returns.
type TargetArg struct {
	Index     int
	Updatable bool
}

// AllArgs supplies a snapshot of every target argument as []any.
type AllArgs struct{}

// RetValArg supplies the value the target returned.
type RetValArg struct{}

// ThrownArg supplies the error the target threw.
type ThrownArg struct{}

// TargetMethodArg supplies the target *jvm.Method.
type TargetMethodArg struct{}

func (ThisArg) isAdviceArgument()         {}
func (TargetArg) isAdviceArgument()       {}
func (AllArgs) isAdviceArgument()         {}
func (RetValArg) isAdviceArgument()       {}
func (ThrownArg) isAdviceArgument()       {}
func (TargetMethodArg) isAdviceArgument() {}

func (ThisArg) String() string { return "this" }

func (a TargetArg) String() string {
	if a.Updatable {
		return fmt.Sprintf("&arg%d", a.Index)
	}
	return fmt.Sprintf("arg%d", a.Index)
}

func (AllArgs) String() string         { return "args[]" }
func (RetValArg) String() string       { return "retVal" }
func (ThrownArg) String() string       { return "thrown" }
func (TargetMethodArg) String() string { return "method" }
