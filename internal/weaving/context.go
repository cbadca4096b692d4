package weaving

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/mabhi256/xmx/internal/advice"
)

// WeavingAdviceInfo binds one advice method to one target method.
type WeavingAdviceInfo struct {
	// ClassID identifies the advice class within its Context. Instances are
	// shared per ClassID between the join points of one call.
	ClassID        int
	Kind           advice.JoinPointKind
	Class          *advice.AdviceClassInfo
	Method         *advice.MethodDeclarationInfo
	Args           []AdviceArgument
	OverrideRetVal bool
	Static         bool
}

func (w *WeavingAdviceInfo) String() string {
	args := make([]string, len(w.Args))
	for i, a := range w.Args {
		args[i] = a.String()
	}
	s := fmt.Sprintf("%s %s.%s(%s)", w.Kind, w.Class.Descriptor, w.Method.Name, strings.Join(args, ", "))
	if w.OverrideRetVal {
		s += " -> retVal"
	}
	return s
}

func (w *WeavingAdviceInfo) equal(o *WeavingAdviceInfo) bool {
	return w.ClassID == o.ClassID &&
		w.Kind == o.Kind &&
		w.Class.Descriptor == o.Class.Descriptor &&
		w.Method.Name == o.Method.Name &&
		w.Method.Descriptor == o.Method.Descriptor &&
		w.OverrideRetVal == o.OverrideRetVal &&
		w.Static == o.Static &&
		slices.Equal(w.Args, o.Args)
}

// Context is the immutable weaving plan of one target method.
type Context struct {
	target        Target
	advices       [3][]*WeavingAdviceInfo // indexed by JoinPointKind
	classes       []*advice.AdviceClassInfo
	fastProxyArgs bool
}

func (c *Context) Target() Target {
	return c.target
}

// Advices iterates the advice bound to kind in invocation order.
func (c *Context) Advices(kind advice.JoinPointKind) iter.Seq2[int, *WeavingAdviceInfo] {
	return slices.All(c.advices[kind])
}

func (c *Context) Len(kind advice.JoinPointKind) int {
	return len(c.advices[kind])
}

// Empty reports whether no advice applies to the target.
func (c *Context) Empty() bool {
	return len(c.advices[advice.Before])+len(c.advices[advice.AfterReturn])+len(c.advices[advice.AfterThrow]) == 0
}

// Classes returns the advice classes in the plan, indexed by ClassID.
func (c *Context) Classes() []*advice.AdviceClassInfo {
	return slices.Clone(c.classes)
}

// FastProxyArgs reports whether argument snapshots can be built once per
// call and shared by every advice, which holds when no advice updates an
// argument.
func (c *Context) FastProxyArgs() bool {
	return c.fastProxyArgs
}

// Equal compares two plans structurally.
func (c *Context) Equal(o *Context) bool {
	if c.target.Class != o.target.Class || !c.target.Method.Equal(o.target.Method) {
		return false
	}
	if c.fastProxyArgs != o.fastProxyArgs || len(c.classes) != len(o.classes) {
		return false
	}
	for kind := range c.advices {
		if !slices.EqualFunc(c.advices[kind], o.advices[kind], (*WeavingAdviceInfo).equal) {
			return false
		}
	}
	return true
}

func (c *Context) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s.%s", c.target.Class, c.target.Method)
	for _, kind := range advice.JoinPointKinds {
		for _, w := range c.advices[kind] {
			sb.WriteString("\n  ")
			sb.WriteString(w.String())
		}
	}
	return sb.String()
}

// Rejection records an advice method left out of a plan.
type Rejection struct {
	Descriptor string
	Method     string
	Verdict    Verdict
}

// Build computes the plan for target. Advice classes are taken in
// configuration order and their methods in declaration order; that order is
// the invocation order within each kind. Build is a pure function.
func Build(target Target, classes []*advice.AdviceClassInfo, types Assignability) (*Context, []Rejection) {
	ctx := &Context{target: target, fastProxyArgs: true}
	var rejected []Rejection

	for _, cls := range classes {
		classID := -1
		for _, decl := range cls.Methods {
			verdict := Check(decl, target, types)
			if verdict.Outcome != Applicable {
				rejected = append(rejected, Rejection{
					Descriptor: cls.Descriptor.String(),
					Method:     decl.Name + decl.Descriptor,
					Verdict:    verdict,
				})
				continue
			}
			if classID < 0 {
				classID = len(ctx.classes)
				ctx.classes = append(ctx.classes, cls)
			}
			for _, arg := range verdict.Args {
				if ta, ok := arg.(TargetArg); ok && ta.Updatable {
					ctx.fastProxyArgs = false
				}
			}
			ctx.advices[decl.Kind] = append(ctx.advices[decl.Kind], &WeavingAdviceInfo{
				ClassID:        classID,
				Kind:           decl.Kind,
				Class:          cls,
				Method:         decl,
				Args:           verdict.Args,
				OverrideRetVal: decl.OverrideRetVal,
				Static:         decl.Static,
			})
		}
	}
	return ctx, rejected
}
