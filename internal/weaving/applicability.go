package weaving

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/advice"
	"github.com/mabhi256/xmx/internal/model"
)

type Outcome int

const (
	Applicable Outcome = iota
	Inapplicable
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Applicable:
		return "applicable"
	case Inapplicable:
		return "inapplicable"
	default:
		return "malformed"
	}
}

// Verdict is the result of checking one advice method against one target.
type Verdict struct {
	Outcome Outcome
	Reason  string
	Args    []AdviceArgument // set when Applicable
}

// Assignability answers whether a value of type from fits a variable of type to.
type Assignability interface {
	IsAssignable(to, from model.TypeSpec) bool
}

// Target is the method an advice is checked against.
type Target struct {
	Class  string
	Method model.MethodSpec
}

func inapplicable(format string, args ...any) Verdict {
	return Verdict{Outcome: Inapplicable, Reason: fmt.Sprintf(format, args...)}
}

func malformed(format string, args ...any) Verdict {
	return Verdict{Outcome: Malformed, Reason: fmt.Sprintf(format, args...)}
}

// Check decides whether decl can be bound to target. It has no side effects.
func Check(decl *advice.MethodDeclarationInfo, target Target, types Assignability) Verdict {
	m := target.Method
	args := make([]AdviceArgument, 0, len(decl.Params))

	for i, p := range decl.Params {
		switch p.Binding {
		case advice.BindThis:
			if decl.Static {
				return malformed("parameter %d: This binding on a static advice method", i)
			}
			if m.IsStatic() {
				return inapplicable("parameter %d: target %s is static", i, m.Name)
			}
			if !types.IsAssignable(p.Type, model.Type(target.Class)) {
				return inapplicable("parameter %d: %s is not assignable from %s", i, p.Type, target.Class)
			}
			args = append(args, ThisArg{})

		case advice.BindArgument:
			if p.Index < 0 {
				return malformed("parameter %d: negative argument index", i)
			}
			if p.Index >= len(m.Params) {
				return inapplicable("parameter %d: target has no argument %d", i, p.Index)
			}
			if actual := m.Params[p.Index]; p.Type != actual && !p.Type.IsObject() {
				return inapplicable("parameter %d: argument %d is %s, not %s", i, p.Index, actual, p.Type)
			}
			args = append(args, TargetArg{Index: p.Index, Updatable: p.Updatable})

		case advice.BindAllArguments:
			if !p.Type.IsArray() && !p.Type.IsObject() {
				return malformed("parameter %d: AllArguments requires an array, got %s", i, p.Type)
			}
			if !uniformArguments(p.Type, m.Params) {
				return inapplicable("parameter %d: arguments do not fit %s", i, p.Type)
			}
			args = append(args, AllArgs{})

		case advice.BindRetVal:
			if decl.Kind != advice.AfterReturn {
				return malformed("parameter %d: RetVal binding on a %s method", i, decl.Kind)
			}
			if m.Return.IsVoid() {
				return inapplicable("parameter %d: target %s returns void", i, m.Name)
			}
			if !fits(types, p.Type, m.Return) {
				return inapplicable("parameter %d: return type %s does not fit %s", i, m.Return, p.Type)
			}
			args = append(args, RetValArg{})

		case advice.BindThrown:
			if decl.Kind != advice.AfterThrow {
				return malformed("parameter %d: Thrown binding on a %s method", i, decl.Kind)
			}
			args = append(args, ThrownArg{})

		case advice.BindTargetMethod:
			args = append(args, TargetMethodArg{})

		default:
			return malformed("parameter %d: unknown binding %s", i, p.Binding)
		}
	}

	if decl.OverrideRetVal {
		if decl.Kind != advice.AfterReturn {
			return malformed("OverrideRetVal on a %s method", decl.Kind)
		}
		if m.Return.IsVoid() {
			return inapplicable("OverrideRetVal on a void target")
		}
		if decl.Return != m.Return && !types.IsAssignable(m.Return, decl.Return) {
			return inapplicable("advice returns %s, target returns %s", decl.Return, m.Return)
		}
	}
	return Verdict{Outcome: Applicable, Args: args}
}

// fits allows exact types, reference assignability and boxing into Object.
func fits(types Assignability, to, from model.TypeSpec) bool {
	return to == from || to.IsObject() || types.IsAssignable(to, from)
}

// uniformArguments reports whether every target parameter can be stored in
// an array of type arr.
func uniformArguments(arr model.TypeSpec, params []model.TypeSpec) bool {
	if arr.IsObject() || arr == model.Object.ArrayOf() {
		return true
	}
	component := arr.Component()
	for _, p := range params {
		if p != component {
			return false
		}
	}
	return true
}
