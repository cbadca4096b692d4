package model

import (
	"testing"
)

func TestParseTypeDescriptor(t *testing.T) {
	tests := []struct {
		desc string
		want TypeSpec
	}{
		{"I", TypeSpec{Name: "int"}},
		{"V", Void},
		{"Ljava/lang/String;", TypeSpec{Name: "java.lang.String"}},
		{"[[J", TypeSpec{Name: "long", Dims: 2}},
		{"[Ljava/util/Map$Entry;", TypeSpec{Name: "java.util.Map$Entry", Dims: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParseTypeDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.Descriptor() != tt.desc {
				t.Errorf("descriptor: got %q, want %q", got.Descriptor(), tt.desc)
			}
		})
	}
}

func TestParseTypeDescriptorErrors(t *testing.T) {
	for _, desc := range []string{"", "[", "Ljava/lang/String", "Q", "[V", "II", "L;"} {
		if _, err := ParseTypeDescriptor(desc); err == nil {
			t.Errorf("expected error for %q", desc)
		}
	}
}

func TestTypeFromSource(t *testing.T) {
	ts := Type(" java.lang.String [][] ")
	if ts.Name != "java.lang.String" || ts.Dims != 2 {
		t.Fatalf("got %+v", ts)
	}
	if ts.SimpleName() != "String" {
		t.Errorf("simple name: got %q", ts.SimpleName())
	}
	if ts.Component().Dims != 1 || ts.ArrayOf().Dims != 3 {
		t.Error("component/array dims mismatch")
	}
	if !Type("int").IsPrimitive() || Type("int[]").IsPrimitive() {
		t.Error("primitive detection mismatch")
	}
}

func TestMethodSpecBackingsCompareEqual(t *testing.T) {
	resolved := NewMethodSpec("put", AccPublic|AccSynchronized, Object,
		Type("java.lang.String"), Type("int[]"))

	fromDesc, err := MethodSpecFromDescriptor("put", uint16(AccPublic|AccSynchronized),
		"(Ljava/lang/String;[I)Ljava/lang/Object;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resolved.Equal(fromDesc) {
		t.Errorf("expected equal specs:\n  %v\n  %v", resolved, fromDesc)
	}
	if resolved.Key() != fromDesc.Key() {
		t.Errorf("keys differ: %q vs %q", resolved.Key(), fromDesc.Key())
	}
	if got := resolved.String(); got != "public synchronized java.lang.Object put(java.lang.String, int[])" {
		t.Errorf("String(): got %q", got)
	}
}

func TestParseMethodDescriptorErrors(t *testing.T) {
	for _, desc := range []string{"I)V", "(I", "(V)V", "()", "()VV"} {
		if _, _, err := ParseMethodDescriptor(desc); err == nil {
			t.Errorf("expected error for %q", desc)
		}
	}
}

func TestModifiersVisibility(t *testing.T) {
	tests := []struct {
		mods Modifiers
		want Visibility
	}{
		{AccPublic | AccStatic, Public},
		{AccProtected, Protected},
		{AccPrivate | AccFinal, Private},
		{AccStatic, Package},
	}
	for _, tt := range tests {
		if got := tt.mods.Visibility(); got != tt.want {
			t.Errorf("%v: got %v, want %v", tt.mods, got, tt.want)
		}
	}
}
