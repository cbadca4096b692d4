package pattern

import (
	"strings"

	"github.com/mabhi256/xmx/internal/model"
)

// TypePattern matches a TypeSpec. A bare "*" matches every type, including
// arrays and void, except in a parameter list where it matches non-array
// types only; any other pattern requires the array dimensions to match.
type TypePattern struct {
	name  *NamePattern
	dims  int
	exact bool // dimensions are compared even for "*"
}

// CompileType compiles a class or type pattern such as "com.acme.*",
// "int[]" or `"Outer$Inner"`.
func CompileType(s string) (*TypePattern, error) {
	trimmed := strings.TrimSpace(s)
	dims := 0
	if !strings.HasPrefix(trimmed, "^") {
		for strings.HasSuffix(trimmed, "[]") {
			dims++
			trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "[]"))
		}
	}

	name, err := CompileName(trimmed)
	if err != nil {
		if pe, ok := err.(*ConfigParseError); ok {
			pe.Pattern = s
		}
		return nil, err
	}
	return &TypePattern{name: name, dims: dims}, nil
}

func newTypePattern(name *NamePattern, dims int) *TypePattern {
	return &TypePattern{name: name, dims: dims}
}

// IsAny reports whether the pattern matches every type.
func (t *TypePattern) IsAny() bool {
	return !t.exact && t.dims == 0 && t.name.IsWildcard()
}

func (t *TypePattern) Match(ts model.TypeSpec) bool {
	if t.IsAny() {
		return true
	}
	if ts.Dims != t.dims {
		return false
	}
	return t.name.MatchTypeName(ts.Name)
}

// MatchClassName matches a non-array class name.
func (t *TypePattern) MatchClassName(name string) bool {
	return t.Match(model.TypeSpec{Name: name})
}

// MatchDescriptor matches a raw field descriptor. Malformed descriptors never match.
func (t *TypePattern) MatchDescriptor(desc string) bool {
	ts, err := model.ParseTypeDescriptor(desc)
	if err != nil {
		return false
	}
	return t.Match(ts)
}

func (t *TypePattern) String() string {
	return t.name.String() + strings.Repeat("[]", t.dims)
}
