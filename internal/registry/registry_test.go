package registry

import (
	"runtime"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

type payload struct {
	data [64]byte
	next *payload
}

// collected runs GC cycles until cond holds or the attempts run out.
func collected(cond func() bool) bool {
	for range 20 {
		runtime.GC()
		if cond() {
			return true
		}
	}
	return false
}

func TestSmartReferenceWeakByDefault(t *testing.T) {
	scope := New(nil).Scope(jvm.NewLoader("app", nil))

	obj := &payload{}
	ref := CreateSmartReference(scope, obj)
	if ref.IsStrong() {
		t.Fatal("reference must start weak when nothing holds the scope")
	}
	if ref.Get() != obj {
		t.Fatal("reachable referent must be returned")
	}
	runtime.KeepAlive(obj)
	obj = nil

	if !collected(func() bool { return ref.Get() == nil }) {
		t.Error("weak reference kept an unreachable referent alive")
	}
}

func TestSmartReferencePinnedWhileHeld(t *testing.T) {
	scope := New(nil).Scope(jvm.NewLoader("app", nil))

	obj := &payload{}
	ref := CreateSmartReference(scope, obj)
	scope.IncrementManagedInstancesCount()
	if !ref.IsStrong() {
		t.Fatal("live referent must be promoted by increment")
	}
	runtime.KeepAlive(obj)
	obj = nil

	if collected(func() bool { return ref.Get() == nil }) {
		t.Fatal("strong reference lost its referent")
	}

	scope.DecrementManagedInstancesCount()
	if ref.IsStrong() {
		t.Fatal("decrement to zero must demote")
	}
	if !collected(func() bool { return ref.Get() == nil }) {
		t.Error("demoted reference kept its referent alive")
	}
}

func TestSmartReferenceCreatedStrong(t *testing.T) {
	scope := New(nil).Scope(jvm.NewLoader("app", nil))
	scope.IncrementManagedInstancesCount()

	ref := CreateSmartReference(scope, &payload{})
	if !ref.IsStrong() {
		t.Fatal("reference must start strong while the scope is held")
	}
	if collected(func() bool { return ref.Get() == nil }) {
		t.Fatal("strong reference lost its referent")
	}

	RemoveSmartReference(scope, ref)
	if scope.TrackedReferences() != 0 {
		t.Error("removed reference still tracked")
	}
	scope.IncrementManagedInstancesCount()
	if ref.IsStrong() {
		t.Error("removed reference must not follow later transitions")
	}
}

func TestCounterSaturatesAtZero(t *testing.T) {
	scope := New(nil).Scope(jvm.NewLoader("app", nil))
	scope.DecrementManagedInstancesCount()
	scope.DecrementManagedInstancesCount()
	if got := scope.IncrementManagedInstancesCount(); got != 1 {
		t.Errorf("count after underflow and increment: got %d, want 1", got)
	}
}

func TestConcurrentTransitionsNeverDropHeldReferent(t *testing.T) {
	scope := New(nil).Scope(jvm.NewLoader("app", nil))
	scope.IncrementManagedInstancesCount()

	ref := func() *SmartReference[payload] {
		return CreateSmartReference(scope, &payload{})
	}()

	const workers, rounds = 8, 500
	var wg sync.WaitGroup
	var mu sync.Mutex
	var lost int
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				scope.IncrementManagedInstancesCount()
				if ref.Get() == nil {
					mu.Lock()
					lost++
					mu.Unlock()
				}
				scope.DecrementManagedInstancesCount()
				if i%100 == 0 {
					runtime.GC()
				}
			}
		}()
	}
	wg.Wait()

	if lost > 0 {
		t.Fatalf("referent observed as collected %d times while held", lost)
	}
	if got := scope.ManagedInstancesCount(); got != 1 {
		t.Fatalf("net count: got %d, want 1", got)
	}
	if !ref.IsStrong() || ref.Get() == nil {
		t.Error("reference must be strong at quiescence with a positive count")
	}
}

func TestParameterNames(t *testing.T) {
	app := jvm.NewLoader("app", nil)
	cls := app.MustDefine(jvm.ClassDef{
		Name: "com.acme.Greeter",
		Methods: []jvm.MethodDef{
			{Name: "greet", Descriptor: "(Ljava/lang/String;I)V", ParamNames: []string{"who"}},
		},
	})
	scope := New(nil).Scope(app)

	names := scope.ParameterNames(cls.MethodByName("greet"))
	if len(names) != 2 || names[0] != "who" || names[1] != "arg1" {
		t.Fatalf("got %v, want [who arg1]", names)
	}
	names[0] = "mutated"
	if again := scope.ParameterNames(cls.MethodByName("greet")); again[0] != "who" {
		t.Error("cached names must not be shared with callers")
	}
}

func defineWidget(t *testing.T, l *jvm.Loader, name string) *jvm.Class {
	t.Helper()
	cls, err := l.Define(jvm.ClassDef{Name: name, Modifiers: model.AccPublic})
	if err != nil {
		t.Fatal(err)
	}
	return cls
}

func TestRegisterClassAndObject(t *testing.T) {
	r := New(nil)
	app := jvm.NewLoader("shop", nil)
	cls := defineWidget(t, app, "com.acme.Cart")

	info := r.RegisterClass(cls, ClassOptions{Managed: true})
	if again := r.RegisterClass(cls, ClassOptions{}); again.ID != info.ID {
		t.Fatalf("class registered twice: %d vs %d", info.ID, again.ID)
	}
	if info.AppName != "shop" || info.Name != "com.acme.Cart" {
		t.Errorf("unexpected class info %+v", info)
	}

	obj, _ := cls.New()
	id, err := r.RegisterObject(info.ID, obj)
	if err != nil {
		t.Fatal(err)
	}
	if again, _ := r.RegisterObject(info.ID, obj); again != id {
		t.Errorf("object registered twice: %d vs %d", id, again)
	}

	got, ok := r.GetObject(id)
	if !ok || got.Object != obj || got.ClassID != info.ID {
		t.Fatalf("lookup: got (%+v, %v)", got, ok)
	}
	if _, ok := r.GetObject(id + 1000); ok {
		t.Error("unknown id must be not found")
	}
	if _, err := r.RegisterObject(9999, obj); err == nil {
		t.Error("unknown class id must be rejected")
	}
}

func TestCollectedObjectIsNotFound(t *testing.T) {
	r := New(nil)
	app := jvm.NewLoader("shop", nil)
	cls := defineWidget(t, app, "com.acme.Cart")
	info := r.RegisterClass(cls, ClassOptions{Managed: true})

	id := func() int {
		obj, _ := cls.New()
		id, _ := r.RegisterObject(info.ID, obj)
		return id
	}()

	if !collected(func() bool { _, ok := r.GetObject(id); return !ok }) {
		t.Fatal("collected instance still reported")
	}
	if n := r.Purge(); n != 1 {
		t.Errorf("purge removed %d records, want 1", n)
	}
	if objs := r.ObjectsOf(info.ID); len(objs) != 0 {
		t.Errorf("expected no tracked objects, got %d", len(objs))
	}
}

func TestPurgeOrphanedObjectDropsPointerIndex(t *testing.T) {
	r := New(nil)
	app := jvm.NewLoader("shop", nil)
	cls := defineWidget(t, app, "com.acme.Cart")
	info := r.RegisterClass(cls, ClassOptions{Managed: true})

	id := func() int {
		obj, _ := cls.New()
		id, _ := r.RegisterObject(info.ID, obj)
		return id
	}()
	if !collected(func() bool { _, ok := r.GetObject(id); return !ok }) {
		t.Fatal("collected instance still reported")
	}

	r.classes.Delete(info.ID)
	if n := r.Purge(); n != 1 {
		t.Errorf("purge removed %d records, want 1", n)
	}
	if n := r.objects.Count(); n != 0 {
		t.Errorf("object records left: %d", n)
	}
	if n := r.objectByPtr.Count(); n != 0 {
		t.Errorf("pointer index entries left: %d", n)
	}
}

func TestHoldPinsInstances(t *testing.T) {
	r := New(nil)
	app := jvm.NewLoader("shop", nil)
	cls := defineWidget(t, app, "com.acme.Cart")
	info := r.RegisterClass(cls, ClassOptions{Managed: true})

	release, err := r.Hold(info.ID)
	if err != nil {
		t.Fatal(err)
	}
	id := func() int {
		obj, _ := cls.New()
		id, _ := r.RegisterObject(info.ID, obj)
		return id
	}()

	if collected(func() bool { _, ok := r.GetObject(id); return !ok }) {
		t.Fatal("held instance was collected")
	}
	if stats := r.Statistics(); stats.StrongObjects != 1 || stats.HeldScopes != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	release()
	release()
	if got := r.Scope(app).ManagedInstancesCount(); got != 0 {
		t.Fatalf("release must be idempotent, count = %d", got)
	}
	if !collected(func() bool { _, ok := r.GetObject(id); return !ok }) {
		t.Error("released instance was never collected")
	}
}

func TestInstanceCapEvictsOldest(t *testing.T) {
	r := New(nil)
	app := jvm.NewLoader("shop", nil)
	cls := defineWidget(t, app, "com.acme.Cart")
	info := r.RegisterClass(cls, ClassOptions{Managed: true, MaxInstances: 2})

	var objs []*jvm.Object
	var ids []int
	for range 3 {
		obj, _ := cls.New()
		id, _ := r.RegisterObject(info.ID, obj)
		objs = append(objs, obj)
		ids = append(ids, id)
	}

	if _, ok := r.GetObject(ids[0]); ok {
		t.Error("oldest instance must be evicted")
	}
	tracked := r.ObjectsOf(info.ID)
	if len(tracked) != 2 || tracked[0].ID != ids[1] || tracked[1].ID != ids[2] {
		t.Errorf("unexpected tracked set %+v", tracked)
	}
	if id, _ := r.RegisterObject(info.ID, objs[0]); id == ids[0] {
		t.Error("ids must never be reused")
	}
	runtime.KeepAlive(objs)
}

func TestQueries(t *testing.T) {
	r := New(nil)
	shop := jvm.NewLoader("shop", nil)
	billing := jvm.NewLoader("billing", nil)
	r.RegisterClass(defineWidget(t, shop, "com.acme.shop.Cart"), ClassOptions{})
	r.RegisterClass(defineWidget(t, shop, "com.acme.shop.Order"), ClassOptions{})
	r.RegisterClass(defineWidget(t, billing, "com.acme.billing.Invoice"), ClassOptions{})

	if apps := r.Applications(); len(apps) != 2 || apps[0] != "billing" || apps[1] != "shop" {
		t.Errorf("applications: got %v", apps)
	}

	tests := []struct {
		app, class string
		want       int
	}{
		{"", "", 3},
		{"shop", "", 2},
		{"", "Cart", 1},
		{"", "com.acme.*.Invoice", 1},
		{"b*", "*Order", 0},
	}
	for _, tt := range tests {
		t.Run(tt.app+"/"+tt.class, func(t *testing.T) {
			got, err := r.FindClasses(tt.app, tt.class)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d classes, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := r.FindClasses("", `"unterminated`); err == nil {
		t.Error("malformed pattern must be reported")
	}
}

func TestProxyDetection(t *testing.T) {
	r := New(nil)
	app := jvm.NewLoader("shop", nil)
	svc := defineWidget(t, app, "com.acme.Service")
	proxy := defineWidget(t, app, "com.acme.Service$$EnhancerBySpringCGLIB$$1")
	info := r.RegisterClass(proxy, ClassOptions{Managed: true})

	target, _ := svc.New()
	obj, _ := proxy.New()
	obj.Set("target", target)
	id, _ := r.RegisterObject(info.ID, obj)

	got, ok := r.GetObject(id)
	if !ok || got.ProxyTarget != target {
		t.Errorf("expected proxy target to be detected, got %+v", got)
	}
}

func TestScopeDisposeTearsDown(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := New(zap.New(core))
	app := jvm.NewLoader("shop", nil)
	cls := defineWidget(t, app, "com.acme.Cart")
	info := r.RegisterClass(cls, ClassOptions{Managed: true})
	obj, _ := cls.New()
	id, _ := r.RegisterObject(info.ID, obj)

	app.Dispose()

	if _, ok := r.GetClass(info.ID); ok {
		t.Error("class of a disposed scope must not be found")
	}
	if _, ok := r.GetObject(id); ok {
		t.Error("object of a disposed scope must not be found")
	}
	if len(r.Applications()) != 0 {
		t.Error("disposed scope still listed")
	}
	if logs.FilterMessage("scope disposed").Len() != 1 {
		t.Error("expected a single disposal log entry")
	}
	runtime.KeepAlive(obj)
}
