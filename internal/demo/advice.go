package demo

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mabhi256/xmx/internal/advice"
	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

const maxAudit = 32

// MethodStats is what the timing advice measured for one target method.
type MethodStats struct {
	Calls    int
	Failures int
	Elapsed  time.Duration
}

// Stats collects the side effects of the demo advice.
type Stats struct {
	mu         sync.Mutex
	methods    map[string]*MethodStats
	audit      []string
	clamped    int
	discounted int
}

func NewStats() *Stats {
	return &Stats{methods: make(map[string]*MethodStats)}
}

func (s *Stats) method(name string) *MethodStats {
	ms, ok := s.methods[name]
	if !ok {
		ms = &MethodStats{}
		s.methods[name] = ms
	}
	return ms
}

func (s *Stats) observe(name string, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.method(name)
	ms.Calls++
	ms.Elapsed += elapsed
}

func (s *Stats) fail(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.method(name).Failures++
}

func (s *Stats) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, line)
	if len(s.audit) > maxAudit {
		s.audit = slices.Delete(s.audit, 0, len(s.audit)-maxAudit)
	}
}

// Methods returns a copy of the per-method statistics.
func (s *Stats) Methods() map[string]MethodStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]MethodStats, len(s.methods))
	for name, ms := range s.methods {
		out[name] = *ms
	}
	return out
}

func (s *Stats) MethodNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.methods))
}

// Audit returns the most recent audit lines, oldest first.
func (s *Stats) Audit() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

func (s *Stats) Clamped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clamped
}

func (s *Stats) Discounted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discounted
}

func anns(a ...jvm.Annotation) []jvm.Annotation { return a }

func timingMethods(stats *Stats, withFailures bool) []jvm.MethodDef {
	methods := []jvm.MethodDef{
		{
			Name: "enter", Modifiers: model.AccPublic, Descriptor: "(Ljava/lang/Object;)V",
			Annotations:      anns(advice.JoinPoint(advice.Before)),
			ParamAnnotations: [][]jvm.Annotation{{advice.This()}},
			Body: func(self *jvm.Object, _ []any) (any, error) {
				self.Set("start", time.Now())
				return nil, nil
			},
		},
		{
			Name: "exit", Modifiers: model.AccPublic, Descriptor: "(Ljava/lang/reflect/Method;)V",
			Annotations:      anns(advice.JoinPoint(advice.AfterReturn)),
			ParamAnnotations: [][]jvm.Annotation{{advice.TargetMethod()}},
			Body: func(self *jvm.Object, args []any) (any, error) {
				start, _ := self.Get("start")
				t, _ := start.(time.Time)
				stats.observe(args[0].(*jvm.Method).Name, time.Since(t))
				return nil, nil
			},
		},
	}
	if withFailures {
		methods = append(methods, jvm.MethodDef{
			Name: "failed", Modifiers: model.AccPublic, Descriptor: "(Ljava/lang/Throwable;Ljava/lang/reflect/Method;)V",
			Annotations:      anns(advice.JoinPoint(advice.AfterThrow)),
			ParamAnnotations: [][]jvm.Annotation{{advice.Thrown()}, {advice.TargetMethod()}},
			Body: func(_ *jvm.Object, args []any) (any, error) {
				stats.fail(args[1].(*jvm.Method).Name)
				return nil, nil
			},
		})
	}
	return methods
}

// Repository builds the advice libraries available to the demo.
//
//	metrics 1.0.0, 1.1.0  Timing: per-call timing, failures from 1.1.0
//	guard   1.0.0         Clamp: caps the quantity argument at 10
//	promo   2.0.0         Discount: 10% off totals
//	audit   1.0.0         Audit: records every call with its arguments
//	legacy  0.1.0         Logger: needs a type the shop does not have
func Repository(stats *Stats) (*advice.Repository, error) {
	static := model.AccPublic | model.AccStatic
	libs := []struct {
		name, version string
		classes       []jvm.ClassDef
	}{
		{"metrics", "1.0.0", []jvm.ClassDef{{Name: "Timing", Modifiers: model.AccPublic, Methods: timingMethods(stats, false)}}},
		{"metrics", "1.1.0", []jvm.ClassDef{{Name: "Timing", Modifiers: model.AccPublic, Methods: timingMethods(stats, true)}}},
		{"guard", "1.0.0", []jvm.ClassDef{{Name: "Clamp", Modifiers: model.AccPublic, Methods: []jvm.MethodDef{{
			Name: "clamp", Modifiers: static, Descriptor: "(I)V",
			Annotations:      anns(advice.JoinPoint(advice.Before)),
			ParamAnnotations: [][]jvm.Annotation{{advice.Argument(1, true)}},
			Body: func(_ *jvm.Object, args []any) (any, error) {
				ref := args[0].(*advice.Ref)
				if qty, _ := ref.Get().(int); qty > 10 {
					ref.Set(10)
					stats.mu.Lock()
					stats.clamped++
					stats.mu.Unlock()
				}
				return nil, nil
			},
		}}}}},
		{"promo", "2.0.0", []jvm.ClassDef{{Name: "Discount", Modifiers: model.AccPublic, Methods: []jvm.MethodDef{{
			Name: "apply", Modifiers: static, Descriptor: "(I)I",
			Annotations:      anns(advice.JoinPoint(advice.AfterReturn), advice.OverrideRetVal()),
			ParamAnnotations: [][]jvm.Annotation{{advice.RetVal()}},
			Body: func(_ *jvm.Object, args []any) (any, error) {
				stats.mu.Lock()
				stats.discounted++
				stats.mu.Unlock()
				return args[0].(int) * 9 / 10, nil
			},
		}}}}},
		{"audit", "1.0.0", []jvm.ClassDef{{Name: "Audit", Modifiers: model.AccPublic, Methods: []jvm.MethodDef{{
			Name: "call", Modifiers: static, Descriptor: "([Ljava/lang/Object;Ljava/lang/reflect/Method;)V",
			Annotations:      anns(advice.JoinPoint(advice.Before)),
			ParamAnnotations: [][]jvm.Annotation{{advice.AllArguments()}, {advice.TargetMethod()}},
			Body: func(_ *jvm.Object, args []any) (any, error) {
				stats.record(fmt.Sprintf("%s %s%v", time.Now().Format("15:04:05.000"), args[1].(*jvm.Method).Name, args[0]))
				return nil, nil
			},
		}}}}},
		{"legacy", "0.1.0", []jvm.ClassDef{{Name: "Logger", Modifiers: model.AccPublic, Methods: []jvm.MethodDef{{
			Name: "log", Modifiers: static, Descriptor: "(Lorg/slf4j/Logger;)V",
			Annotations:      anns(advice.JoinPoint(advice.Before)),
			ParamAnnotations: [][]jvm.Annotation{{advice.Argument(0, false)}},
			Body:             func(*jvm.Object, []any) (any, error) { return nil, nil },
		}}}}},
	}

	repo := advice.NewRepository()
	for _, l := range libs {
		lib, err := advice.NewLibrary(l.name, l.version, l.classes...)
		if err != nil {
			return nil, err
		}
		if err := repo.Add(lib); err != nil {
			return nil, err
		}
	}
	return repo, nil
}
