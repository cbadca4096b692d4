package aop

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mabhi256/xmx/internal/advice"
	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/weaving"
)

// JoinPoint is one woven method together with its frozen plan.
type JoinPoint struct {
	ID      int
	Method  *jvm.Method
	Context *weaving.Context
	// OnReturn runs after the AFTER_RETURN advice of a call with a receiver.
	OnReturn func(this *jvm.Object)
}

// Dispatcher executes weaving plans. Join point ids are assigned once and
// never reused for the lifetime of the dispatcher.
type Dispatcher struct {
	log *zap.Logger

	mu       sync.Mutex // serializes Register
	points   atomic.Pointer[[]*JoinPoint]
	failures atomic.Int64
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{log: log.Named("aop")}
	d.points.Store(new([]*JoinPoint))
	return d
}

// Register assigns the next join point id to m and its plan.
func (d *Dispatcher) Register(m *jvm.Method, ctx *weaving.Context, onReturn func(*jvm.Object)) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := *d.points.Load()
	jp := &JoinPoint{ID: len(old) + 1, Method: m, Context: ctx, OnReturn: onReturn}
	points := append(slices.Clone(old), jp)
	d.points.Store(&points)

	d.log.Debug("join point registered", zap.Int("id", jp.ID), zap.Stringer("method", m))
	return jp.ID
}

// JoinPoint looks up a registered join point without locking.
func (d *Dispatcher) JoinPoint(id int) (*JoinPoint, bool) {
	points := *d.points.Load()
	if id < 1 || id > len(points) {
		return nil, false
	}
	return points[id-1], true
}

func (d *Dispatcher) JoinPoints() int {
	return len(*d.points.Load())
}

// Failures counts advice invocations that failed since the dispatcher started.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}

// call is the dispatch state of one invocation of a woven method.
type call struct {
	jp        *JoinPoint
	this      *jvm.Object
	args      []any
	instances Instances
	allArgs   []any
}

func (d *Dispatcher) Before(joinPoint int, this *jvm.Object, args []any) Instances {
	jp, ok := d.JoinPoint(joinPoint)
	if !ok {
		return nil
	}
	c := &call{jp: jp, this: this, args: args}
	for _, w := range jp.Context.Advices(advice.Before) {
		if _, err := d.invoke(w, c, nil, nil); err != nil {
			d.report(c, w, err)
			break
		}
	}
	return c.instances
}

func (d *Dispatcher) AfterReturn(retVal any, joinPoint int, instances Instances, this *jvm.Object, args []any) any {
	jp, ok := d.JoinPoint(joinPoint)
	if !ok {
		return retVal
	}
	c := &call{jp: jp, this: this, args: args, instances: instances}
	for _, w := range jp.Context.Advices(advice.AfterReturn) {
		ret, err := d.invoke(w, c, retVal, nil)
		if err != nil {
			d.report(c, w, err)
			break
		}
		if w.OverrideRetVal {
			retVal = ret
		}
	}
	if jp.OnReturn != nil && this != nil {
		d.onReturn(c)
	}
	return retVal
}

func (d *Dispatcher) AfterThrow(thrown error, joinPoint int, instances Instances, this *jvm.Object, args []any) {
	jp, ok := d.JoinPoint(joinPoint)
	if !ok {
		return
	}
	c := &call{jp: jp, this: this, args: args, instances: instances}
	for _, w := range jp.Context.Advices(advice.AfterThrow) {
		if _, err := d.invoke(w, c, nil, thrown); err != nil {
			d.report(c, w, err)
			break
		}
	}
}

func (d *Dispatcher) onReturn(c *call) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("join point return hook panicked",
				zap.Int("joinPoint", c.jp.ID),
				zap.Any("panic", r))
		}
	}()
	c.jp.OnReturn(c.this)
}

// invoke runs one advice method. Updatable arguments are written back only
// when the advice completes normally.
func (d *Dispatcher) invoke(w *weaving.WeavingAdviceInfo, c *call, retVal any, thrown error) (any, error) {
	var inst *jvm.Object
	if !w.Static {
		var err error
		if inst, err = c.instance(w); err != nil {
			return nil, err
		}
	}

	type update struct {
		index int
		ref   *advice.Ref
	}
	var updates []update

	values := make([]any, len(w.Args))
	for i, a := range w.Args {
		switch a := a.(type) {
		case weaving.ThisArg:
			values[i] = c.this
		case weaving.TargetArg:
			if a.Index >= len(c.args) {
				return nil, fmt.Errorf("argument %d out of range, call has %d", a.Index, len(c.args))
			}
			if a.Updatable {
				ref := advice.NewRef(c.args[a.Index])
				updates = append(updates, update{a.Index, ref})
				values[i] = ref
			} else {
				values[i] = c.args[a.Index]
			}
		case weaving.AllArgs:
			values[i] = c.snapshot()
		case weaving.RetValArg:
			values[i] = retVal
		case weaving.ThrownArg:
			values[i] = thrown
		case weaving.TargetMethodArg:
			values[i] = c.jp.Method
		}
	}

	ret, err := w.Method.Method().Invoke(inst, values...)
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		c.args[u.index] = u.ref.Get()
	}
	return ret, nil
}

// instance returns the advice instance for w's class, creating it on first use in the call.
func (c *call) instance(w *weaving.WeavingAdviceInfo) (*jvm.Object, error) {
	if inst, ok := c.instances[w.ClassID]; ok {
		return inst, nil
	}
	cls, err := w.Class.Class.Resolve()
	if err != nil {
		return nil, err
	}
	inst, err := cls.New()
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", cls.Name, err)
	}
	if c.instances == nil {
		c.instances = make(Instances)
	}
	c.instances[w.ClassID] = inst
	return inst, nil
}

// snapshot returns the arguments as a fresh []any owned by one advice. When
// the plan allows it the arguments are captured once per call and each
// advice gets a copy of that capture.
func (c *call) snapshot() []any {
	if !c.jp.Context.FastProxyArgs() {
		return slices.Clone(c.args)
	}
	if c.allArgs == nil {
		c.allArgs = slices.Clone(c.args)
	}
	return slices.Clone(c.allArgs)
}

func (d *Dispatcher) report(c *call, w *weaving.WeavingAdviceInfo, err error) {
	d.failures.Add(1)
	failure := &AdviceInvocationFailure{
		JoinPoint: c.jp.ID,
		Target:    c.jp.Method.String(),
		Advice:    w.Class.Descriptor.String() + "#" + w.Method.Name,
		Kind:      w.Kind,
		Err:       err,
	}
	d.log.Error("advice invocation failed, skipping remaining advice",
		zap.Int("joinPoint", failure.JoinPoint),
		zap.String("target", failure.Target),
		zap.String("advice", failure.Advice),
		zap.Stringer("kind", failure.Kind),
		zap.Error(failure))
}
