package model

import (
	"fmt"
	"slices"
	"strings"
)

// MethodSpec is an immutable description of a method signature. It can be
// built from a resolved method or from raw access flags plus a descriptor,
// and both forms compare equal for the same logical method.
type MethodSpec struct {
	Name      string
	Modifiers Modifiers
	Params    []TypeSpec
	Return    TypeSpec
}

// NewMethodSpec copies params so the result does not alias caller state.
func NewMethodSpec(name string, mods Modifiers, ret TypeSpec, params ...TypeSpec) MethodSpec {
	return MethodSpec{
		Name:      name,
		Modifiers: mods,
		Params:    slices.Clone(params),
		Return:    ret,
	}
}

// MethodSpecFromDescriptor builds a MethodSpec for a method that may not be
// resolvable yet.
func MethodSpecFromDescriptor(name string, access uint16, desc string) (MethodSpec, error) {
	params, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return MethodSpec{}, err
	}
	return MethodSpec{
		Name:      name,
		Modifiers: Modifiers(access),
		Params:    params,
		Return:    ret,
	}, nil
}

// ParseMethodDescriptor parses "(ILjava/lang/String;)V" style descriptors.
func ParseMethodDescriptor(desc string) ([]TypeSpec, TypeSpec, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, TypeSpec{}, fmt.Errorf("method descriptor %q: missing '('", desc)
	}

	pos := 1
	var params []TypeSpec
	for pos < len(desc) && desc[pos] != ')' {
		t, next, err := readTypeDescriptor(desc, pos)
		if err != nil {
			return nil, TypeSpec{}, err
		}
		if t.IsVoid() {
			return nil, TypeSpec{}, fmt.Errorf("method descriptor %q: void parameter", desc)
		}
		params = append(params, t)
		pos = next
	}
	if pos >= len(desc) {
		return nil, TypeSpec{}, fmt.Errorf("method descriptor %q: missing ')'", desc)
	}

	ret, next, err := readTypeDescriptor(desc, pos+1)
	if err != nil {
		return nil, TypeSpec{}, err
	}
	if next != len(desc) {
		return nil, TypeSpec{}, fmt.Errorf("method descriptor %q: trailing characters", desc)
	}
	return params, ret, nil
}

// Descriptor renders the JVM method descriptor.
func (m MethodSpec) Descriptor() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.Params {
		sb.WriteString(p.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(m.Return.Descriptor())
	return sb.String()
}

// Key identifies the method within its declaring class.
func (m MethodSpec) Key() string {
	return m.Name + m.Descriptor()
}

func (m MethodSpec) IsStatic() bool {
	return m.Modifiers.Has(AccStatic)
}

func (m MethodSpec) IsConstructor() bool {
	return m.Name == "<init>"
}

func (m MethodSpec) Equal(other MethodSpec) bool {
	return m.Name == other.Name &&
		m.Modifiers == other.Modifiers &&
		m.Return == other.Return &&
		slices.Equal(m.Params, other.Params)
}

func (m MethodSpec) String() string {
	var sb strings.Builder
	if mods := m.Modifiers.String(); mods != "" {
		sb.WriteString(mods)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Return.String())
	sb.WriteByte(' ')
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
