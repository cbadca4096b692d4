package advice

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

const reflectMethodClass = "java.lang.reflect.Method"

// isJoinPointMethod reports whether m carries any join-point annotation.
func isJoinPointMethod(m *jvm.Method) bool {
	for _, a := range m.Annotations {
		switch a.Type {
		case BeforeAnnotation, AfterReturnAnnotation, AfterThrowAnnotation:
			return true
		}
	}
	return false
}

// declare derives the declaration of a join-point method and validates it.
// A non-empty reason means the method is malformed.
func declare(cls *jvm.Class, m *jvm.Method) (*MethodDeclarationInfo, string) {
	decl := &MethodDeclarationInfo{
		Name:       m.Name,
		Descriptor: m.Descriptor(),
		Static:     m.IsStatic(),
		Return:     m.Return,
		method:     m,
	}

	kinds, overrides := 0, 0
	for _, a := range m.Annotations {
		switch a.Type {
		case BeforeAnnotation:
			decl.Kind = Before
			kinds++
		case AfterReturnAnnotation:
			decl.Kind = AfterReturn
			kinds++
		case AfterThrowAnnotation:
			decl.Kind = AfterThrow
			kinds++
		case OverrideRetValAnnotation:
			overrides++
		}
	}

	switch {
	case kinds != 1:
		return nil, fmt.Sprintf("expected exactly one join point annotation, found %d", kinds)
	case overrides > 1:
		return nil, "OverrideRetVal declared more than once"
	case overrides == 1 && decl.Kind != AfterReturn:
		return nil, fmt.Sprintf("OverrideRetVal is only allowed on AFTER_RETURN methods, not %s", decl.Kind)
	case overrides == 1 && m.Return.IsVoid():
		return nil, "OverrideRetVal method must return a value"
	case m.Modifiers.Has(model.AccAbstract) || m.OriginalBody() == nil:
		return nil, "advice method has no body"
	case !decl.Static && cls.Modifiers.Has(model.AccAbstract):
		return nil, "instance advice method in an abstract class"
	}
	decl.OverrideRetVal = overrides == 1

	for i, typ := range m.Params {
		param, reason := declareParam(cls.Loader(), decl, typ, m.ParamAnnotations[i])
		if reason != "" {
			return nil, fmt.Sprintf("parameter %d: %s", i, reason)
		}
		decl.Params = append(decl.Params, param)
	}
	return decl, ""
}

func declareParam(scope *jvm.Loader, decl *MethodDeclarationInfo, typ model.TypeSpec, anns []jvm.Annotation) (AnnotatedTypeInfo, string) {
	info := AnnotatedTypeInfo{Type: typ}

	var binding *jvm.Annotation
	for i := range anns {
		if _, ok := bindingAnnotations[anns[i].Type]; !ok {
			continue
		}
		if binding != nil {
			return info, "more than one binding annotation"
		}
		binding = &anns[i]
	}
	if binding == nil {
		return info, "no binding annotation"
	}
	info.Binding = bindingAnnotations[binding.Type]

	switch info.Binding {
	case BindThis:
		if decl.Static {
			return info, "This binding on a static advice method"
		}
		if typ.IsPrimitive() || typ.IsArray() {
			return info, fmt.Sprintf("This binding requires a class type, got %s", typ)
		}

	case BindArgument:
		index, ok := binding.Int("index")
		if !ok || index < 0 {
			return info, "Argument binding requires a non-negative index"
		}
		info.Index = index
		info.Updatable = binding.Bool("updatable")

	case BindAllArguments:
		if !typ.IsArray() && !typ.IsObject() {
			return info, fmt.Sprintf("AllArguments binding requires an array or Object, got %s", typ)
		}

	case BindRetVal:
		if decl.Kind != AfterReturn {
			return info, fmt.Sprintf("RetVal binding on a %s method", decl.Kind)
		}

	case BindThrown:
		if decl.Kind != AfterThrow {
			return info, fmt.Sprintf("Thrown binding on a %s method", decl.Kind)
		}
		if !scope.IsAssignable(typ, model.Type(model.ThrowableClass)) {
			return info, fmt.Sprintf("Thrown binding type %s is not assignable from %s", typ, model.ThrowableClass)
		}

	case BindTargetMethod:
		if !typ.IsObject() && typ != model.Type(reflectMethodClass) {
			return info, fmt.Sprintf("TargetMethod binding requires %s or Object, got %s", reflectMethodClass, typ)
		}
	}
	return info, ""
}

// linkTypes checks that every type a join-point method mentions is visible
// from the advice scope.
func linkTypes(scope *jvm.Loader, m *jvm.Method) error {
	types := append([]model.TypeSpec{m.Return}, m.Params...)
	for _, t := range types {
		name := t.Name
		if t.IsVoid() || model.Type(name).IsPrimitive() {
			continue
		}
		if _, err := scope.LoadClass(name); err != nil {
			return err
		}
	}
	return nil
}
