package agent

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/xmx/internal/advice"
	"github.com/mabhi256/xmx/internal/aop"
	"github.com/mabhi256/xmx/internal/config"
	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/registry"
	"github.com/mabhi256/xmx/internal/weaving"
)

type Options struct {
	Config     *config.Config
	Repository *advice.Repository
	Log        *zap.Logger
	// Parallelism bounds TransformAll. Zero means GOMAXPROCS.
	Parallelism int
}

// Agent transforms classes according to the configuration and serves the
// dispatch protocol for the methods it wove.
type Agent struct {
	log     *zap.Logger
	session uuid.UUID

	cfg         atomic.Pointer[config.Config]
	repo        *advice.Repository
	registry    *registry.Registry
	dispatcher  *aop.Dispatcher
	parallelism int

	scopes      *registry.Store[int64, *scopeState]
	transformed sync.Map // weak.Pointer[jvm.Class] -> *transformation
	installed   atomic.Bool
	woven       atomic.Int64
}

// scopeState is the advice and weaving state of one target loading scope.
type scopeState struct {
	advices *advice.Loader
	plans   *weaving.Builder
}

type transformation struct {
	once   sync.Once
	result Result
}

// Result describes what Transform did to one class.
type Result struct {
	Class      string
	ClassID    int   // registry id, 0 when the class is not managed
	JoinPoints []int // one per woven method
}

func New(opts Options) *Agent {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	repo := opts.Repository
	if repo == nil {
		repo = advice.NewRepository()
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	session := uuid.New()
	log = log.With(zap.String("session", session.String()))
	a := &Agent{
		log:         log.Named("agent"),
		session:     session,
		repo:        repo,
		registry:    registry.New(log),
		dispatcher:  aop.NewDispatcher(log),
		parallelism: parallelism,
		scopes:      registry.NewStore[int64, *scopeState](),
	}
	a.cfg.Store(cfg)
	return a
}

func (a *Agent) Session() uuid.UUID {
	return a.session
}

func (a *Agent) Config() *config.Config {
	return a.cfg.Load()
}

func (a *Agent) Registry() *registry.Registry {
	return a.registry
}

func (a *Agent) Dispatcher() *aop.Dispatcher {
	return a.dispatcher
}

// SetConfig swaps the configuration. Classes already transformed keep their
// plans; the kill switch takes effect immediately.
func (a *Agent) SetConfig(cfg *config.Config) {
	a.cfg.Store(cfg)
	if a.installed.Load() {
		a.activate(cfg.Enabled())
	}
	a.log.Info("configuration applied", zap.Bool("enabled", cfg.Enabled()), zap.Int("problems", len(cfg.Problems)))
}

// Install makes the agent the process-wide dispatch service.
func (a *Agent) Install() {
	a.installed.Store(true)
	a.activate(a.Config().Enabled())
}

func (a *Agent) activate(enabled bool) {
	if enabled {
		aop.Install(a)
	} else {
		aop.Uninstall()
	}
}

// Close uninstalls the agent and releases every advice scope.
func (a *Agent) Close() {
	if a.installed.CompareAndSwap(true, false) && aop.Installed() == aop.Service(a) {
		aop.Uninstall()
	}
	for id, st := range a.scopes.GetAll() {
		a.scopes.Delete(id)
		st.advices.Close()
	}
}

func (a *Agent) Before(joinPoint int, this *jvm.Object, args []any) aop.Instances {
	return a.dispatcher.Before(joinPoint, this, args)
}

func (a *Agent) AfterReturn(retVal any, joinPoint int, instances aop.Instances, this *jvm.Object, args []any) any {
	return a.dispatcher.AfterReturn(retVal, joinPoint, instances, this, args)
}

func (a *Agent) AfterThrow(thrown error, joinPoint int, instances aop.Instances, this *jvm.Object, args []any) {
	a.dispatcher.AfterThrow(thrown, joinPoint, instances, this, args)
}

// scope returns the advice state for loader. The advice search path is
// resolved once, when the scope is first seen.
func (a *Agent) scope(loader *jvm.Loader) *scopeState {
	st, loaded := a.scopes.LoadOrStore(loader.ID(), func() *scopeState {
		app := loader.Name()
		path := a.Config().Strings(config.AppEntity(app), config.PropAdviceSearchPath)
		libs, errs := a.repo.ResolvePath(path)
		for _, err := range errs {
			a.log.Warn("advice search path entry skipped", zap.String("app", app), zap.Error(err))
		}
		return &scopeState{
			advices: advice.NewLoader(loader, libs, a.log),
			plans:   weaving.NewBuilder(loader, a.log),
		}
	})
	if !loaded {
		loader.OnDispose(a.disposeScope)
	}
	return st
}

func (a *Agent) disposeScope(loader *jvm.Loader) {
	st, ok := a.scopes.Get(loader.ID())
	if !ok {
		return
	}
	a.scopes.Delete(loader.ID())
	st.advices.Close()
	a.transformed.Range(func(key, _ any) bool {
		if cls := key.(weak.Pointer[jvm.Class]).Value(); cls == nil || cls.Loader() == loader {
			a.transformed.Delete(key)
		}
		return true
	})
	a.log.Debug("scope released", zap.Stringer("loader", loader), zap.Int("plans", st.plans.Size()))
}

// Transform weaves every configured method of cls. A class is transformed
// once; later calls return the first result.
func (a *Agent) Transform(cls *jvm.Class) Result {
	v, _ := a.transformed.LoadOrStore(weak.Make(cls), &transformation{})
	t := v.(*transformation)
	t.once.Do(func() { t.result = a.transform(cls) })
	return t.result
}

func (a *Agent) transform(cls *jvm.Class) Result {
	cfg := a.Config()
	result := Result{Class: cls.Name}
	app := cls.Loader().Name()
	if !cfg.Enabled() || !cfg.Selected(app, cls.Name) {
		return result
	}

	classEntity := config.ClassEntity(app, cls.Name)
	var onReturn func(*jvm.Object)
	if cfg.Bool(classEntity, config.PropManaged, false) {
		info := a.registry.RegisterClass(cls, registry.ClassOptions{
			Managed:      true,
			MaxInstances: cfg.Int(classEntity, config.PropMaxInstances, config.DefaultMaxInstances),
		})
		result.ClassID = info.ID
		onReturn = func(obj *jvm.Object) {
			if _, err := a.registry.RegisterObject(info.ID, obj); err != nil {
				a.log.Warn("instance not registered", zap.String("class", cls.Name), zap.Error(err))
			}
		}
	}

	st := a.scope(cls.Loader())
	for _, m := range cls.Methods() {
		if m.OriginalBody() == nil {
			continue
		}
		spec := m.Spec()
		entity := config.MethodEntity(app, cls.Name, spec)
		if !cfg.Bool(entity, config.PropEnabled, true) {
			continue
		}

		var hook func(*jvm.Object)
		if m.IsConstructor() {
			hook = onReturn
		}
		descriptors := cfg.Strings(entity, config.PropAdvices)
		if len(descriptors) == 0 && hook == nil {
			continue
		}

		infos, errs := st.advices.LoadAll(descriptors)
		for _, err := range errs {
			a.log.Debug("advice unavailable for method",
				zap.String("class", cls.Name),
				zap.Stringer("method", spec),
				zap.Error(err))
		}
		plan := st.plans.Build(weaving.Target{Class: cls.Name, Method: spec}, infos)
		if plan.Empty() && hook == nil {
			continue
		}

		id := a.dispatcher.Register(m, plan, hook)
		aop.Weave(m, id)
		a.woven.Add(1)
		result.JoinPoints = append(result.JoinPoints, id)
		a.log.Debug("method woven",
			zap.Int("joinPoint", id),
			zap.String("class", cls.Name),
			zap.Stringer("method", spec),
			zap.Int("advices", plan.Len(advice.Before)+plan.Len(advice.AfterReturn)+plan.Len(advice.AfterThrow)))
	}

	return result
}

// TransformAll transforms every class defined in loader, at most
// Parallelism at a time. Results follow loader.Classes order.
func (a *Agent) TransformAll(ctx context.Context, loader *jvm.Loader) ([]Result, error) {
	classes := loader.Classes()
	results := make([]Result, len(classes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, cls := range classes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.Transform(cls)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	woven := 0
	for _, r := range results {
		woven += len(r.JoinPoints)
	}
	a.log.Info("scope transformed",
		zap.Stringer("loader", loader),
		zap.Int("classes", len(classes)),
		zap.Int("joinPoints", woven))
	return results, nil
}

// Stats is a summary of the agent's work so far.
type Stats struct {
	Session      string
	Enabled      bool
	Scopes       int
	WovenMethods int64
	JoinPoints   int
	Failures     int64
	Registry     registry.Stats
}

func (a *Agent) Statistics() Stats {
	return Stats{
		Session:      a.session.String(),
		Enabled:      a.Config().Enabled(),
		Scopes:       a.scopes.Count(),
		WovenMethods: a.woven.Load(),
		JoinPoints:   a.dispatcher.JoinPoints(),
		Failures:     a.dispatcher.Failures(),
		Registry:     a.registry.Statistics(),
	}
}
