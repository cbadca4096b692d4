package advice

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

// AnnotatedTypeInfo is one advice parameter: its declared type and how it is bound.
type AnnotatedTypeInfo struct {
	Type      model.TypeSpec
	Binding   BindingKind
	Index     int // BindArgument only
	Updatable bool
}

func (a AnnotatedTypeInfo) String() string {
	switch a.Binding {
	case BindArgument:
		if a.Updatable {
			return fmt.Sprintf("@Argument(%d, updatable) %s", a.Index, a.Type)
		}
		return fmt.Sprintf("@Argument(%d) %s", a.Index, a.Type)
	default:
		return fmt.Sprintf("@%s %s", a.Binding, a.Type)
	}
}

// MethodDeclarationInfo describes a join-point method of an advice class.
type MethodDeclarationInfo struct {
	Name           string
	Descriptor     string
	Kind           JoinPointKind
	Static         bool
	OverrideRetVal bool
	Params         []AnnotatedTypeInfo
	Return         model.TypeSpec

	method *jvm.Method
}

// Method is the resolved advice method.
func (m *MethodDeclarationInfo) Method() *jvm.Method {
	return m.method
}

func (m *MethodDeclarationInfo) String() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.String()
	}
	prefix := "@" + m.Kind.String()
	if m.OverrideRetVal {
		prefix += " @OverrideRetVal"
	}
	if m.Static {
		prefix += " static"
	}
	return fmt.Sprintf("%s %s %s(%s)", prefix, m.Return, m.Name, strings.Join(params, ", "))
}

// ClassRef resolves an advice class on first use.
type ClassRef struct {
	Name   string
	scope  *jvm.Loader
	cached atomic.Pointer[jvm.Class]
}

func (r *ClassRef) Resolve() (*jvm.Class, error) {
	if cls := r.cached.Load(); cls != nil {
		return cls, nil
	}
	cls, err := r.scope.LoadClass(r.Name)
	if err != nil {
		return nil, err
	}
	r.cached.Store(cls)
	return cls, nil
}

// Scope is the isolated scope the class was loaded into.
func (r *ClassRef) Scope() *jvm.Loader {
	return r.scope
}

// AdviceClassInfo is the verified binding surface of one advice class.
type AdviceClassInfo struct {
	Descriptor Descriptor
	Library    *Library
	Class      *ClassRef
	Methods    []*MethodDeclarationInfo

	// Rejected lists the join-point methods that failed verification.
	Rejected []*BadAdvice
}

// MethodsOf returns the declarations bound to kind, in declaration order.
func (a *AdviceClassInfo) MethodsOf(kind JoinPointKind) []*MethodDeclarationInfo {
	var result []*MethodDeclarationInfo
	for _, m := range a.Methods {
		if m.Kind == kind {
			result = append(result, m)
		}
	}
	return result
}

// NeedsInstance reports whether any join-point method is an instance method.
func (a *AdviceClassInfo) NeedsInstance() bool {
	for _, m := range a.Methods {
		if !m.Static {
			return true
		}
	}
	return false
}
