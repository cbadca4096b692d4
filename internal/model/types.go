package model

import (
	"fmt"
	"strings"
)

// Access flags as they appear in class files.
const (
	AccPublic       Modifiers = 0x0001
	AccPrivate      Modifiers = 0x0002
	AccProtected    Modifiers = 0x0004
	AccStatic       Modifiers = 0x0008
	AccFinal        Modifiers = 0x0010
	AccSynchronized Modifiers = 0x0020
	AccVarargs      Modifiers = 0x0080
	AccNative       Modifiers = 0x0100
	AccInterface    Modifiers = 0x0200
	AccAbstract     Modifiers = 0x0400
	AccStrict       Modifiers = 0x0800
)

// Modifiers is a method or class modifier bitset.
type Modifiers uint16

func (m Modifiers) Has(flag Modifiers) bool {
	return m&flag == flag
}

func (m Modifiers) Visibility() Visibility {
	switch {
	case m.Has(AccPublic):
		return Public
	case m.Has(AccProtected):
		return Protected
	case m.Has(AccPrivate):
		return Private
	default:
		return Package
	}
}

func (m Modifiers) String() string {
	var parts []string
	if v := m.Visibility(); v != Package {
		parts = append(parts, v.String())
	}
	names := []struct {
		flag Modifiers
		name string
	}{
		{AccStatic, "static"},
		{AccAbstract, "abstract"},
		{AccFinal, "final"},
		{AccSynchronized, "synchronized"},
		{AccNative, "native"},
		{AccStrict, "strictfp"},
	}
	for _, n := range names {
		if m.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// Visibility is one of the four access levels.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Package
	Private
)

func AllVisibilities() []Visibility {
	return []Visibility{Public, Protected, Package, Private}
}

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Package:
		return "package"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// ParseVisibility maps a keyword to a visibility.
func ParseVisibility(s string) (Visibility, bool) {
	for _, v := range AllVisibilities() {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}

var primitives = map[string]byte{
	"byte":    'B',
	"char":    'C',
	"double":  'D',
	"float":   'F',
	"int":     'I',
	"long":    'J',
	"short":   'S',
	"boolean": 'Z',
	"void":    'V',
}

var primitiveByCode = func() map[byte]string {
	m := make(map[byte]string, len(primitives))
	for name, code := range primitives {
		m[code] = name
	}
	return m
}()

const (
	ObjectClass    = "java.lang.Object"
	ThrowableClass = "java.lang.Throwable"
	StringClass    = "java.lang.String"
)

// TypeSpec describes a type by its dotted binary name plus array dimensions.
// The zero value is not a valid type; use Void for methods that return nothing.
type TypeSpec struct {
	Name string
	Dims int
}

var (
	Void   = TypeSpec{Name: "void"}
	Object = TypeSpec{Name: ObjectClass}
)

// Type parses a source-style type name such as "java.lang.String[][]".
func Type(name string) TypeSpec {
	name = strings.TrimSpace(name)
	dims := 0
	for strings.HasSuffix(name, "[]") {
		dims++
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	return TypeSpec{Name: strings.ReplaceAll(name, "/", "."), Dims: dims}
}

func (t TypeSpec) String() string {
	return t.Name + strings.Repeat("[]", t.Dims)
}

// SimpleName strips the package qualifier.
func (t TypeSpec) SimpleName() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

func (t TypeSpec) IsVoid() bool {
	return t.Dims == 0 && t.Name == "void"
}

func (t TypeSpec) IsPrimitive() bool {
	_, ok := primitives[t.Name]
	return t.Dims == 0 && ok
}

func (t TypeSpec) IsArray() bool {
	return t.Dims > 0
}

func (t TypeSpec) IsObject() bool {
	return t.Dims == 0 && t.Name == ObjectClass
}

// Component returns the element type of an array type.
func (t TypeSpec) Component() TypeSpec {
	if t.Dims == 0 {
		return t
	}
	return TypeSpec{Name: t.Name, Dims: t.Dims - 1}
}

func (t TypeSpec) ArrayOf() TypeSpec {
	return TypeSpec{Name: t.Name, Dims: t.Dims + 1}
}

// Descriptor renders the type as a JVM field descriptor.
func (t TypeSpec) Descriptor() string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("[", t.Dims))
	if code, ok := primitives[t.Name]; ok {
		sb.WriteByte(code)
	} else {
		sb.WriteByte('L')
		sb.WriteString(strings.ReplaceAll(t.Name, ".", "/"))
		sb.WriteByte(';')
	}
	return sb.String()
}

// ParseTypeDescriptor parses a single field descriptor, e.g. "[Ljava/lang/String;".
func ParseTypeDescriptor(desc string) (TypeSpec, error) {
	t, n, err := readTypeDescriptor(desc, 0)
	if err != nil {
		return TypeSpec{}, err
	}
	if n != len(desc) {
		return TypeSpec{}, fmt.Errorf("descriptor %q: trailing characters at %d", desc, n)
	}
	return t, nil
}

func readTypeDescriptor(desc string, pos int) (TypeSpec, int, error) {
	dims := 0
	for pos < len(desc) && desc[pos] == '[' {
		dims++
		pos++
	}
	if pos >= len(desc) {
		return TypeSpec{}, pos, fmt.Errorf("descriptor %q: unexpected end", desc)
	}

	c := desc[pos]
	if c == 'L' {
		end := strings.IndexByte(desc[pos:], ';')
		if end < 0 {
			return TypeSpec{}, pos, fmt.Errorf("descriptor %q: unterminated class name", desc)
		}
		name := desc[pos+1 : pos+end]
		if name == "" {
			return TypeSpec{}, pos, fmt.Errorf("descriptor %q: empty class name", desc)
		}
		return TypeSpec{Name: strings.ReplaceAll(name, "/", "."), Dims: dims}, pos + end + 1, nil
	}

	name, ok := primitiveByCode[c]
	if !ok {
		return TypeSpec{}, pos, fmt.Errorf("descriptor %q: invalid type code %q", desc, c)
	}
	if name == "void" && dims > 0 {
		return TypeSpec{}, pos, fmt.Errorf("descriptor %q: array of void", desc)
	}
	return TypeSpec{Name: name, Dims: dims}, pos + 1, nil
}
