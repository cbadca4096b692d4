package weaving

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mabhi256/xmx/internal/advice"
	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

func scope() *jvm.Loader {
	app := jvm.NewLoader("shop", nil)
	app.MustDefine(jvm.ClassDef{Name: "com.acme.Item"})
	app.MustDefine(jvm.ClassDef{Name: "com.acme.Book", Super: "com.acme.Item"})
	app.MustDefine(jvm.ClassDef{Name: "com.acme.Cart"})
	return app
}

var (
	addItem = Target{Class: "com.acme.Cart", Method: model.NewMethodSpec("add", model.AccPublic,
		model.Type("int"), model.Type("com.acme.Item"), model.Type("int"))}
	total = Target{Class: "com.acme.Cart", Method: model.NewMethodSpec("total", model.AccPublic,
		model.Type("com.acme.Book"))}
	reset = Target{Class: "com.acme.Cart", Method: model.NewMethodSpec("reset", model.AccPublic|model.AccStatic,
		model.Void)}
	sum = Target{Class: "com.acme.Cart", Method: model.NewMethodSpec("sum", model.AccPublic,
		model.Type("int"), model.Type("int"), model.Type("int"))}
)

func param(binding advice.BindingKind, typ string) advice.AnnotatedTypeInfo {
	return advice.AnnotatedTypeInfo{Type: model.Type(typ), Binding: binding}
}

func arg(index int, typ string, updatable bool) advice.AnnotatedTypeInfo {
	return advice.AnnotatedTypeInfo{Type: model.Type(typ), Binding: advice.BindArgument, Index: index, Updatable: updatable}
}

func decl(kind advice.JoinPointKind, params ...advice.AnnotatedTypeInfo) *advice.MethodDeclarationInfo {
	return &advice.MethodDeclarationInfo{Name: "m", Descriptor: "()V", Kind: kind, Params: params, Return: model.Void}
}

func TestCheck(t *testing.T) {
	types := scope()
	overriding := decl(advice.AfterReturn, param(advice.BindRetVal, "com.acme.Item"))
	overriding.OverrideRetVal = true
	overriding.Return = model.Type("com.acme.Item")

	overridingBook := decl(advice.AfterReturn)
	overridingBook.OverrideRetVal = true
	overridingBook.Return = model.Type("com.acme.Book")

	staticThis := decl(advice.Before, param(advice.BindThis, "java.lang.Object"))
	staticThis.Static = true

	tests := []struct {
		name   string
		decl   *advice.MethodDeclarationInfo
		target Target
		want   Outcome
	}{
		{"this on instance target", decl(advice.Before, param(advice.BindThis, "java.lang.Object")), addItem, Applicable},
		{"this typed as target class", decl(advice.Before, param(advice.BindThis, "com.acme.Cart")), addItem, Applicable},
		{"this of unrelated type", decl(advice.Before, param(advice.BindThis, "com.acme.Item")), addItem, Inapplicable},
		{"this on static target", decl(advice.Before, param(advice.BindThis, "java.lang.Object")), reset, Inapplicable},
		{"this in static advice", staticThis, addItem, Malformed},
		{"argument exact type", decl(advice.Before, arg(0, "com.acme.Item", false)), addItem, Applicable},
		{"argument as Object", decl(advice.Before, arg(1, "java.lang.Object", true)), addItem, Applicable},
		{"argument subtype mismatch", decl(advice.Before, arg(0, "com.acme.Book", false)), addItem, Inapplicable},
		{"argument index out of range", decl(advice.Before, arg(2, "int", false)), addItem, Inapplicable},
		{"negative argument index", decl(advice.Before, arg(-1, "int", false)), addItem, Malformed},
		{"all arguments as Object[]", decl(advice.Before, param(advice.BindAllArguments, "java.lang.Object[]")), addItem, Applicable},
		{"all arguments as Object", decl(advice.Before, param(advice.BindAllArguments, "java.lang.Object")), addItem, Applicable},
		{"all arguments uniform", decl(advice.Before, param(advice.BindAllArguments, "int[]")), sum, Applicable},
		{"all arguments not uniform", decl(advice.Before, param(advice.BindAllArguments, "int[]")), addItem, Inapplicable},
		{"all arguments non array", decl(advice.Before, param(advice.BindAllArguments, "int")), addItem, Malformed},
		{"retval assignable", decl(advice.AfterReturn, param(advice.BindRetVal, "com.acme.Item")), total, Applicable},
		{"retval boxed to Object", decl(advice.AfterReturn, param(advice.BindRetVal, "java.lang.Object")), addItem, Applicable},
		{"retval narrower than return", decl(advice.AfterReturn, param(advice.BindRetVal, "com.acme.Book")), addItem, Inapplicable},
		{"retval on void target", decl(advice.AfterReturn, param(advice.BindRetVal, "java.lang.Object")), reset, Inapplicable},
		{"retval in before", decl(advice.Before, param(advice.BindRetVal, "java.lang.Object")), addItem, Malformed},
		{"thrown in after throw", decl(advice.AfterThrow, param(advice.BindThrown, "java.lang.Throwable")), addItem, Applicable},
		{"thrown in after return", decl(advice.AfterReturn, param(advice.BindThrown, "java.lang.Throwable")), addItem, Malformed},
		{"target method", decl(advice.Before, param(advice.BindTargetMethod, "java.lang.reflect.Method")), reset, Applicable},
		{"override wider than return", overriding, total, Inapplicable},
		{"override exact return", overridingBook, total, Applicable},
		{"override on void target", overridingBook, reset, Inapplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.decl, tt.target, types)
			if got.Outcome != tt.want {
				t.Errorf("got %s (%s), want %s", got.Outcome, got.Reason, tt.want)
			}
			if got.Outcome == Applicable && len(got.Args) != len(tt.decl.Params) {
				t.Errorf("got %d argument bindings for %d parameters", len(got.Args), len(tt.decl.Params))
			}
		})
	}
}

func adviceClass(desc string, methods ...*advice.MethodDeclarationInfo) *advice.AdviceClassInfo {
	d, err := advice.ParseDescriptor(desc)
	if err != nil {
		panic(err)
	}
	for i, m := range methods {
		m.Name = desc + "#" + string(rune('a'+i))
	}
	return &advice.AdviceClassInfo{Descriptor: d, Methods: methods}
}

func fixtureAdvice() []*advice.AdviceClassInfo {
	timing := adviceClass("metrics:Timing",
		decl(advice.AfterReturn, param(advice.BindRetVal, "java.lang.Object")),
		decl(advice.Before, param(advice.BindThis, "java.lang.Object")),
		decl(advice.AfterThrow, param(advice.BindThrown, "java.lang.Throwable")),
	)
	clamp := adviceClass("limits:Clamp",
		decl(advice.Before, arg(1, "int", true)),
		decl(advice.Before, param(advice.BindRetVal, "java.lang.Object")),
	)
	audit := adviceClass("audit:Audit",
		decl(advice.Before, param(advice.BindAllArguments, "java.lang.Object[]"), param(advice.BindTargetMethod, "java.lang.Object")),
	)
	unrelated := adviceClass("misc:Unrelated",
		decl(advice.Before, arg(5, "int", false)),
	)
	return []*advice.AdviceClassInfo{timing, clamp, unrelated, audit}
}

func TestBuildGroupsAndOrders(t *testing.T) {
	ctx, rejected := Build(addItem, fixtureAdvice(), scope())

	var before []string
	for _, w := range ctx.Advices(advice.Before) {
		before = append(before, w.Method.Name)
	}
	want := []string{"metrics:Timing#b", "limits:Clamp#a", "audit:Audit#a"}
	if len(before) != len(want) {
		t.Fatalf("before advices: got %v, want %v", before, want)
	}
	for i := range want {
		if before[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, before[i], want[i])
		}
	}
	if ctx.Len(advice.AfterReturn) != 1 || ctx.Len(advice.AfterThrow) != 1 {
		t.Errorf("unexpected grouping:\n%s", ctx)
	}

	classes := ctx.Classes()
	if len(classes) != 3 || classes[2].Descriptor.Library != "audit" {
		t.Errorf("inapplicable classes must not get an id, got %v", classes)
	}
	for _, w := range ctx.Advices(advice.Before) {
		if classes[w.ClassID] != w.Class {
			t.Errorf("class id %d does not identify %s", w.ClassID, w.Class.Descriptor)
		}
	}

	if len(rejected) != 2 {
		t.Errorf("expected 2 rejections, got %+v", rejected)
	}
	if ctx.FastProxyArgs() {
		t.Error("updatable argument binding must disable shared argument snapshots")
	}

	readOnly, _ := Build(addItem, fixtureAdvice()[:1], scope())
	if !readOnly.FastProxyArgs() {
		t.Error("plans without updatable arguments are fast proxy eligible")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	classes := fixtureAdvice()
	first, _ := Build(addItem, classes, scope())
	second, _ := Build(addItem, fixtureAdvice(), scope())
	if !first.Equal(second) {
		t.Errorf("plans differ:\n%s\n---\n%s", first, second)
	}

	other, _ := Build(sum, classes, scope())
	if first.Equal(other) {
		t.Error("plans for different targets must differ")
	}
}

func TestBuilderCaches(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := NewBuilder(scope(), zap.New(core))
	classes := fixtureAdvice()

	first := b.Build(addItem, classes)
	if again := b.Build(addItem, classes); again != first {
		t.Error("same target and advice set must reuse the published plan")
	}
	b.Build(sum, classes)
	if b.Size() != 2 {
		t.Errorf("cache size: got %d, want 2", b.Size())
	}

	empty := b.Build(reset, classes[2:3])
	if !empty.Empty() {
		t.Fatalf("expected empty plan, got\n%s", empty)
	}
	if logs.FilterMessage("no configured advice applies to target method").Len() != 1 {
		t.Error("expected a warning for a target with no applicable advice")
	}
}
