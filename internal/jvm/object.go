package jvm

import (
	"fmt"
	"maps"
	"sync"
)

// Object is an instance of a Class.
type Object struct {
	class *Class

	mu     sync.RWMutex
	fields map[string]any
}

func newObject(cls *Class) *Object {
	return &Object{
		class:  cls,
		fields: make(map[string]any),
	}
}

func (o *Object) Class() *Class {
	return o.class
}

func (o *Object) Get(field string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fields[field]
	return v, ok
}

func (o *Object) Set(field string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[field] = value
}

// Fields returns a snapshot of the field values.
func (o *Object) Fields() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.fields)
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%p", o.class.Name, o)
}
