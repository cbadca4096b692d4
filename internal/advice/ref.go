package advice

import "sync"

// Ref carries an updatable target argument into an advice method.
type Ref struct {
	mu    sync.Mutex
	value any
}

func NewRef(v any) *Ref {
	return &Ref{value: v}
}

func (r *Ref) Get() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

func (r *Ref) Set(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
}
