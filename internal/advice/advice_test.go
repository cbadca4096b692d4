package advice

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

func noop(*jvm.Object, []any) (any, error) { return nil, nil }

func adviceMethod(name, desc string, anns []jvm.Annotation, params ...[]jvm.Annotation) jvm.MethodDef {
	return jvm.MethodDef{
		Name:             name,
		Modifiers:        model.AccPublic,
		Descriptor:       desc,
		Annotations:      anns,
		ParamAnnotations: params,
		Body:             noop,
	}
}

func staticAdvice(def jvm.MethodDef) jvm.MethodDef {
	def.Modifiers |= model.AccStatic
	return def
}

func anns(a ...jvm.Annotation) []jvm.Annotation { return a }

func testLibrary(t *testing.T, version string) *Library {
	t.Helper()
	lib, err := NewLibrary("metrics", version,
		jvm.ClassDef{
			Name:      "com.acme.advice.BaseAdvice",
			Modifiers: model.AccPublic | model.AccAbstract,
		},
		jvm.ClassDef{
			Name:  "com.acme.advice.Timing",
			Super: "com.acme.advice.BaseAdvice",
			Methods: []jvm.MethodDef{
				adviceMethod("enter", "(Ljava/lang/Object;Lcom/acme/Cart;I)V",
					anns(JoinPoint(Before)),
					anns(This()), anns(Argument(0, false)), anns(Argument(1, true))),
				adviceMethod("exit", "(Ljava/lang/Object;)Ljava/lang/Object;",
					anns(JoinPoint(AfterReturn), OverrideRetVal()),
					anns(RetVal())),
				adviceMethod("failed", "(Ljava/lang/Throwable;Ljava/lang/reflect/Method;)V",
					anns(JoinPoint(AfterThrow)),
					anns(Thrown()), anns(TargetMethod())),
				adviceMethod("helper", "()V", nil),
			},
		},
		jvm.ClassDef{
			Name: "com.acme.advice.Broken",
			Methods: []jvm.MethodDef{
				adviceMethod("retValInBefore", "(Ljava/lang/Object;)V", anns(JoinPoint(Before)), anns(RetVal())),
				adviceMethod("twoKinds", "()V", anns(JoinPoint(Before), JoinPoint(AfterReturn))),
				staticAdvice(adviceMethod("thisInStatic", "(Ljava/lang/Object;)V", anns(JoinPoint(Before)), anns(This()))),
				adviceMethod("allArgsInt", "(I)V", anns(JoinPoint(Before)), anns(AllArguments())),
				adviceMethod("thrownString", "(Ljava/lang/String;)V", anns(JoinPoint(AfterThrow)), anns(Thrown())),
				adviceMethod("overrideOnBefore", "()Ljava/lang/Object;", anns(JoinPoint(Before), OverrideRetVal())),
				adviceMethod("overrideTwice", "()Ljava/lang/Object;", anns(JoinPoint(AfterReturn), OverrideRetVal(), OverrideRetVal())),
				adviceMethod("unbound", "(I)V", anns(JoinPoint(Before))),
				adviceMethod("negativeIndex", "(I)V", anns(JoinPoint(Before)), anns(Argument(-1, false))),
				adviceMethod("allArgs", "([Ljava/lang/Object;)V", anns(JoinPoint(Before)), anns(AllArguments())),
			},
		},
		jvm.ClassDef{
			Name:  "com.acme.advice.NeedsLogger",
			Super: "org.slf4j.Logger",
		},
		jvm.ClassDef{
			Name: "com.acme.advice.NeedsLoggerParam",
			Methods: []jvm.MethodDef{
				adviceMethod("log", "(Lorg/slf4j/Logger;)V", anns(JoinPoint(Before)), anns(This())),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

func targetScope(t *testing.T) *jvm.Loader {
	t.Helper()
	app := jvm.NewLoader("shop", nil)
	app.MustDefine(jvm.ClassDef{Name: "com.acme.Cart", Modifiers: model.AccPublic})
	return app
}

func TestLoadValidAdvice(t *testing.T) {
	l := NewLoader(targetScope(t), []*Library{testLibrary(t, "1.0.0")}, nil)

	info, err := l.Load("metrics:com.acme.advice.Timing")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(info.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", info.Rejected)
	}
	if len(info.Methods) != 3 {
		t.Fatalf("got %d join point methods, want 3", len(info.Methods))
	}

	before := info.MethodsOf(Before)
	if len(before) != 1 || before[0].Name != "enter" {
		t.Fatalf("unexpected BEFORE methods %v", before)
	}
	want := []AnnotatedTypeInfo{
		{Type: model.Object, Binding: BindThis},
		{Type: model.Type("com.acme.Cart"), Binding: BindArgument, Index: 0},
		{Type: model.Type("int"), Binding: BindArgument, Index: 1, Updatable: true},
	}
	for i, p := range before[0].Params {
		if p != want[i] {
			t.Errorf("param %d: got %v, want %v", i, p, want[i])
		}
	}
	if exit := info.MethodsOf(AfterReturn); len(exit) != 1 || !exit[0].OverrideRetVal {
		t.Errorf("expected overriding AFTER_RETURN method, got %v", exit)
	}
	if !info.NeedsInstance() {
		t.Error("instance advice methods require an advice instance")
	}

	cls, err := info.Class.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if cls.Loader() == l.Target() || cls.Loader().Parent() != l.Target() {
		t.Error("advice must live in a child scope of the target")
	}
}

func TestMalformedMethodsAreRejectedIndividually(t *testing.T) {
	l := NewLoader(targetScope(t), []*Library{testLibrary(t, "1.0.0")}, nil)

	info, err := l.Load("metrics:com.acme.advice.Broken")
	if err != nil {
		t.Fatalf("class with some bad methods must still load: %v", err)
	}
	if len(info.Methods) != 1 || info.Methods[0].Name != "allArgs" {
		t.Fatalf("expected only allArgs to survive, got %v", info.Methods)
	}

	rejected := make(map[string]bool)
	for _, bad := range info.Rejected {
		rejected[strings.SplitN(bad.Method, "(", 2)[0]] = true
		if bad.Descriptor != "metrics:com.acme.advice.Broken" || bad.Reason == "" {
			t.Errorf("incomplete BadAdvice %+v", bad)
		}
	}
	for _, name := range []string{
		"retValInBefore", "twoKinds", "thisInStatic", "allArgsInt", "thrownString",
		"overrideOnBefore", "overrideTwice", "unbound", "negativeIndex",
	} {
		if !rejected[name] {
			t.Errorf("%s was not rejected", name)
		}
	}
}

func TestMissingTypesDropClassPermanently(t *testing.T) {
	target := targetScope(t)
	l := NewLoader(target, []*Library{testLibrary(t, "1.0.0")}, nil)

	for _, desc := range []string{
		"metrics:com.acme.advice.NeedsLogger",
		"metrics:com.acme.advice.NeedsLoggerParam",
	} {
		t.Run(desc, func(t *testing.T) {
			_, err := l.Load(desc)
			var bad *BadAdvice
			if !errors.As(err, &bad) || bad.Method != "" {
				t.Fatalf("expected class-level BadAdvice, got %v", err)
			}
			var cnf *jvm.ClassNotFoundError
			if !errors.As(err, &cnf) {
				t.Errorf("expected the missing type as cause, got %v", err)
			}
		})
	}

	attempts := l.Attempts()
	target.MustDefine(jvm.ClassDef{Name: "org.slf4j.Logger"})
	if _, err := l.Load("metrics:com.acme.advice.NeedsLogger"); err == nil {
		t.Error("failed descriptor must stay failed for the scope")
	}
	if l.Attempts() != attempts {
		t.Error("failed descriptor was reloaded")
	}
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(targetScope(t), []*Library{testLibrary(t, "1.0.0")}, nil)
	tests := []string{
		"no-colon",
		"other:com.acme.advice.Timing",
		"metrics:com.acme.advice.Missing",
	}
	for _, desc := range tests {
		t.Run(desc, func(t *testing.T) {
			_, err := l.Load(desc)
			var bad *BadAdvice
			if !errors.As(err, &bad) {
				t.Errorf("expected BadAdvice, got %v", err)
			}
		})
	}
}

func TestLoadIsMemoizedAndIsolated(t *testing.T) {
	lib := testLibrary(t, "1.0.0")
	shop := NewLoader(targetScope(t), []*Library{lib}, nil)
	billing := NewLoader(targetScope(t), []*Library{lib}, nil)

	var wg sync.WaitGroup
	results := make([]*AdviceClassInfo, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = shop.Load("metrics:com.acme.advice.Timing")
		}()
	}
	wg.Wait()

	for _, info := range results {
		if info == nil || info != results[0] {
			t.Fatal("concurrent loads must share one memoized result")
		}
	}
	if shop.Attempts() != 1 {
		t.Errorf("class loaded %d times, want 1", shop.Attempts())
	}

	other, err := billing.Load("metrics:com.acme.advice.Timing")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := results[0].Class.Resolve()
	b, _ := other.Class.Resolve()
	if a == b {
		t.Error("different target scopes must load distinct advice classes")
	}
}

func TestCloseDisposesScopes(t *testing.T) {
	l := NewLoader(targetScope(t), []*Library{testLibrary(t, "1.0.0")}, nil)
	info, err := l.Load("metrics:com.acme.advice.Timing")
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	if !info.Class.Scope().Disposed() {
		t.Error("advice scope must be disposed on close")
	}
	if _, err := l.Load("metrics:com.acme.advice.Timing"); !errors.Is(err, ErrLoaderClosed) {
		t.Errorf("expected ErrLoaderClosed, got %v", err)
	}
}

func TestRepositoryResolve(t *testing.T) {
	repo := NewRepository()
	for _, v := range []string{"1.0.0", "1.2.0", "2.0.0"} {
		if err := repo.Add(testLibrary(t, v)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Add(testLibrary(t, "1.2.0")); err == nil {
		t.Error("duplicate version must be rejected")
	}

	tests := []struct {
		entry string
		want  string
	}{
		{"metrics", "2.0.0"},
		{"metrics@^1.0", "1.2.0"},
		{"metrics@~1.0.0", "1.0.0"},
		{"metrics@>=2", "2.0.0"},
		{"metrics@<1", ""},
		{"unknown", ""},
		{"metrics@not-a-constraint", ""},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			lib, err := repo.Resolve(tt.entry)
			if tt.want == "" {
				if err == nil {
					t.Errorf("expected error, got %s", lib)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if lib.Version.String() != tt.want {
				t.Errorf("got %s, want %s", lib.Version, tt.want)
			}
		})
	}

	libs, errs := repo.ResolvePath([]string{"metrics@^1", "metrics@2", "missing"})
	if len(libs) != 1 || libs[0].Version.String() != "1.2.0" || len(errs) != 1 {
		t.Errorf("unexpected path resolution %v %v", libs, errs)
	}
}
