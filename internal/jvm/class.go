package jvm

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/mabhi256/xmx/internal/model"
)

// Body is the executable part of a method. this is nil for static methods.
type Body func(this *Object, args []any) (any, error)

// ClassDef describes a class to be defined in a Loader.
type ClassDef struct {
	Name       string
	Modifiers  model.Modifiers
	Super      string
	Interfaces []string
	Methods    []MethodDef
}

// MethodDef describes a method. Either Descriptor or Params/Return is set.
type MethodDef struct {
	Name       string
	Modifiers  model.Modifiers
	Descriptor string
	Params     []model.TypeSpec
	Return     model.TypeSpec
	ParamNames []string
	Body       Body

	Annotations      []Annotation
	ParamAnnotations [][]Annotation // indexed like Params
}

// Annotation is declarative metadata attached to a method or parameter.
type Annotation struct {
	Type   string
	Values map[string]any
}

// Int returns an integer element value.
func (a Annotation) Int(key string) (int, bool) {
	v, ok := a.Values[key].(int)
	return v, ok
}

// Bool returns a boolean element value, false when absent.
func (a Annotation) Bool(key string) bool {
	v, _ := a.Values[key].(bool)
	return v
}

var defaultConstructor = MethodDef{
	Name:      "<init>",
	Modifiers: model.AccPublic,
	Return:    model.Void,
	Body:      func(*Object, []any) (any, error) { return nil, nil },
}

type Class struct {
	Name       string
	Modifiers  model.Modifiers
	Super      string
	Interfaces []string

	loader  *Loader
	methods []*Method
}

func newClass(l *Loader, def ClassDef) (*Class, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("define: empty class name")
	}

	cls := &Class{
		Name:       def.Name,
		Modifiers:  def.Modifiers,
		Super:      def.Super,
		Interfaces: slices.Clone(def.Interfaces),
		loader:     l,
	}
	if cls.Super == "" && def.Name != model.ObjectClass {
		cls.Super = model.ObjectClass
	}

	seen := make(map[string]bool)
	for _, md := range def.Methods {
		m, err := newMethod(cls, md)
		if err != nil {
			return nil, fmt.Errorf("define %s: %w", def.Name, err)
		}
		key := m.Spec().Key()
		if seen[key] {
			return nil, fmt.Errorf("define %s: duplicate method %s", def.Name, key)
		}
		seen[key] = true
		cls.methods = append(cls.methods, m)
	}

	if !cls.Modifiers.Has(model.AccInterface) && cls.MethodByName("<init>") == nil {
		m, _ := newMethod(cls, defaultConstructor)
		cls.methods = append(cls.methods, m)
	}
	return cls, nil
}

func (c *Class) Loader() *Loader {
	return c.loader
}

func (c *Class) Methods() []*Method {
	return c.methods
}

// Method finds a declared method by name and descriptor.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.methods {
		if m.Name == name && m.Descriptor() == desc {
			return m
		}
	}
	return nil
}

// MethodByName returns the first declared method with the given name.
func (c *Class) MethodByName(name string) *Method {
	for _, m := range c.methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// New allocates an instance and runs the constructor whose arity matches args.
func (c *Class) New(args ...any) (*Object, error) {
	if c.Modifiers.Has(model.AccAbstract) {
		return nil, Throw("java.lang.InstantiationException", c.Name)
	}

	obj := newObject(c)
	for _, m := range c.methods {
		if m.IsConstructor() && len(m.Params) == len(args) {
			if _, err := m.Invoke(obj, args...); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: no constructor taking %d arguments", c.Name, len(args))
	}
	return obj, nil
}

type Method struct {
	Class      *Class
	Name       string
	Modifiers  model.Modifiers
	Params     []model.TypeSpec
	Return     model.TypeSpec
	ParamNames []string

	Annotations      []Annotation
	ParamAnnotations [][]Annotation

	original Body
	body     atomic.Pointer[Body]
}

func newMethod(cls *Class, def MethodDef) (*Method, error) {
	params, ret := def.Params, def.Return
	if def.Descriptor != "" {
		var err error
		params, ret, err = model.ParseMethodDescriptor(def.Descriptor)
		if err != nil {
			return nil, err
		}
	}
	if ret.Name == "" {
		ret = model.Void
	}
	if def.Name == "" {
		return nil, fmt.Errorf("method with empty name")
	}
	if len(def.ParamAnnotations) > len(params) {
		return nil, fmt.Errorf("method %s: annotations for %d parameters, has %d", def.Name, len(def.ParamAnnotations), len(params))
	}

	m := &Method{
		Class:      cls,
		Name:       def.Name,
		Modifiers:  def.Modifiers,
		Params:     slices.Clone(params),
		Return:     ret,
		ParamNames: slices.Clone(def.ParamNames),
		original:   def.Body,

		Annotations:      slices.Clone(def.Annotations),
		ParamAnnotations: make([][]Annotation, len(params)),
	}
	for i, anns := range def.ParamAnnotations {
		m.ParamAnnotations[i] = slices.Clone(anns)
	}
	if def.Body != nil {
		body := def.Body
		m.body.Store(&body)
	}
	return m, nil
}

// Spec returns the resolved signature.
func (m *Method) Spec() model.MethodSpec {
	return model.NewMethodSpec(m.Name, m.Modifiers, m.Return, m.Params...)
}

func (m *Method) Descriptor() string {
	return m.Spec().Descriptor()
}

func (m *Method) IsStatic() bool {
	return m.Modifiers.Has(model.AccStatic)
}

func (m *Method) IsConstructor() bool {
	return m.Name == "<init>"
}

func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Descriptor()
}

// OriginalBody is the body the method was defined with.
func (m *Method) OriginalBody() Body {
	return m.original
}

// SetBody replaces the executable body, e.g. with a woven one.
func (m *Method) SetBody(body Body) {
	m.body.Store(&body)
}

// Annotation returns the first method annotation of the given type.
func (m *Method) Annotation(typ string) (Annotation, bool) {
	for _, a := range m.Annotations {
		if a.Type == typ {
			return a, true
		}
	}
	return Annotation{}, false
}

// Invoke runs the method. A panic in the body surfaces as a thrown
// java.lang.Error so callers observe it like any other exception.
func (m *Method) Invoke(this *Object, args ...any) (ret any, err error) {
	bp := m.body.Load()
	if bp == nil || *bp == nil {
		return nil, Throw("java.lang.AbstractMethodError", m.String())
	}
	if !m.IsStatic() && this == nil {
		return nil, Throw("java.lang.NullPointerException", "invoke "+m.String()+" on null")
	}
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", m, len(m.Params), len(args))
	}

	return Call(*bp, this, args)
}

// Call runs body, converting a panic into a thrown java.lang.Error.
func Call(body Body, this *Object, args []any) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret, err = nil, Throw("java.lang.Error", fmt.Sprint(r))
		}
	}()
	return body(this, args)
}
