package advice

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/jvm"
)

// Annotation types recognised on advice methods and their parameters.
const (
	BeforeAnnotation         = "xmx.aop.Before"
	AfterReturnAnnotation    = "xmx.aop.AfterReturn"
	AfterThrowAnnotation     = "xmx.aop.AfterThrow"
	OverrideRetValAnnotation = "xmx.aop.OverrideRetVal"

	ThisAnnotation         = "xmx.aop.This"
	ArgumentAnnotation     = "xmx.aop.Argument"
	AllArgumentsAnnotation = "xmx.aop.AllArguments"
	RetValAnnotation       = "xmx.aop.RetVal"
	ThrownAnnotation       = "xmx.aop.Thrown"
	TargetMethodAnnotation = "xmx.aop.TargetMethod"
)

// JoinPointKind is the event of a target invocation an advice method is bound to.
type JoinPointKind int

const (
	Before JoinPointKind = iota
	AfterReturn
	AfterThrow
)

// JoinPointKinds lists the kinds in dispatch order.
var JoinPointKinds = []JoinPointKind{Before, AfterReturn, AfterThrow}

func (k JoinPointKind) String() string {
	switch k {
	case Before:
		return "BEFORE"
	case AfterReturn:
		return "AFTER_RETURN"
	case AfterThrow:
		return "AFTER_THROW"
	default:
		return fmt.Sprintf("JoinPointKind(%d)", int(k))
	}
}

func (k JoinPointKind) annotation() string {
	switch k {
	case Before:
		return BeforeAnnotation
	case AfterReturn:
		return AfterReturnAnnotation
	default:
		return AfterThrowAnnotation
	}
}

// BindingKind says how an advice parameter is supplied.
type BindingKind int

const (
	BindThis BindingKind = iota
	BindArgument
	BindAllArguments
	BindRetVal
	BindThrown
	BindTargetMethod
)

func (b BindingKind) String() string {
	switch b {
	case BindThis:
		return "This"
	case BindArgument:
		return "Argument"
	case BindAllArguments:
		return "AllArguments"
	case BindRetVal:
		return "RetVal"
	case BindThrown:
		return "Thrown"
	case BindTargetMethod:
		return "TargetMethod"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(b))
	}
}

var bindingAnnotations = map[string]BindingKind{
	ThisAnnotation:         BindThis,
	ArgumentAnnotation:     BindArgument,
	AllArgumentsAnnotation: BindAllArguments,
	RetValAnnotation:       BindRetVal,
	ThrownAnnotation:       BindThrown,
	TargetMethodAnnotation: BindTargetMethod,
}

// The helpers below build annotation values for advice class definitions.

func JoinPoint(kind JoinPointKind) jvm.Annotation {
	return jvm.Annotation{Type: kind.annotation()}
}

func OverrideRetVal() jvm.Annotation {
	return jvm.Annotation{Type: OverrideRetValAnnotation}
}

func This() jvm.Annotation {
	return jvm.Annotation{Type: ThisAnnotation}
}

// Argument binds the target argument at index. An updatable argument is
// supplied as a *Ref and its final value is written back to the call.
func Argument(index int, updatable bool) jvm.Annotation {
	return jvm.Annotation{Type: ArgumentAnnotation, Values: map[string]any{
		"index":     index,
		"updatable": updatable,
	}}
}

func AllArguments() jvm.Annotation {
	return jvm.Annotation{Type: AllArgumentsAnnotation}
}

func RetVal() jvm.Annotation {
	return jvm.Annotation{Type: RetValAnnotation}
}

func Thrown() jvm.Annotation {
	return jvm.Annotation{Type: ThrownAnnotation}
}

func TargetMethod() jvm.Annotation {
	return jvm.Annotation{Type: TargetMethodAnnotation}
}
