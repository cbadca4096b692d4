package weaving

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mabhi256/xmx/internal/advice"
)

// Builder caches one plan per target signature and advice set. It belongs
// to a single target scope and is dropped with it.
type Builder struct {
	types Assignability
	log   *zap.Logger
	cache sync.Map // key -> *Context
}

func NewBuilder(types Assignability, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{types: types, log: log.Named("weaving")}
}

// Build returns the cached plan for target or computes and publishes it.
func (b *Builder) Build(target Target, classes []*advice.AdviceClassInfo) *Context {
	key := cacheKey(target, classes)
	if ctx, ok := b.cache.Load(key); ok {
		return ctx.(*Context)
	}

	ctx, rejected := Build(target, classes, b.types)
	for _, r := range rejected {
		fields := []zap.Field{
			zap.String("target", target.Class+"."+target.Method.Name+target.Method.Descriptor()),
			zap.String("advice", r.Descriptor),
			zap.String("method", r.Method),
			zap.String("reason", r.Verdict.Reason),
		}
		if r.Verdict.Outcome == Malformed {
			b.log.Warn("malformed advice method skipped", fields...)
		} else {
			b.log.Debug("advice method not applicable", fields...)
		}
	}
	if ctx.Empty() && len(classes) > 0 {
		b.log.Warn("no configured advice applies to target method",
			zap.String("class", target.Class),
			zap.Stringer("method", target.Method),
			zap.Int("advices", len(classes)))
	}

	actual, _ := b.cache.LoadOrStore(key, ctx)
	return actual.(*Context)
}

// Size is the number of cached plans.
func (b *Builder) Size() int {
	n := 0
	b.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func cacheKey(target Target, classes []*advice.AdviceClassInfo) string {
	var sb strings.Builder
	sb.WriteString(target.Class)
	sb.WriteByte('.')
	sb.WriteString(target.Method.Key())
	sb.WriteByte('/')
	sb.WriteString(target.Method.Modifiers.String())
	for _, c := range classes {
		sb.WriteByte('|')
		sb.WriteString(c.Descriptor.String())
	}
	return sb.String()
}
