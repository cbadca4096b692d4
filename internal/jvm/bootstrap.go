package jvm

import (
	"sync"

	"github.com/mabhi256/xmx/internal/model"
)

var bootstrapClasses = []ClassDef{
	{Name: model.ObjectClass, Modifiers: model.AccPublic},
	{Name: "java.lang.Comparable", Modifiers: model.AccPublic | model.AccInterface | model.AccAbstract},
	{Name: "java.lang.CharSequence", Modifiers: model.AccPublic | model.AccInterface | model.AccAbstract},
	{Name: "java.lang.Runnable", Modifiers: model.AccPublic | model.AccInterface | model.AccAbstract},
	{Name: model.StringClass, Modifiers: model.AccPublic | model.AccFinal,
		Interfaces: []string{"java.lang.CharSequence", "java.lang.Comparable"}},
	{Name: "java.lang.Number", Modifiers: model.AccPublic | model.AccAbstract},
	{Name: "java.lang.Integer", Modifiers: model.AccPublic | model.AccFinal, Super: "java.lang.Number"},
	{Name: "java.lang.Long", Modifiers: model.AccPublic | model.AccFinal, Super: "java.lang.Number"},
	{Name: "java.lang.Double", Modifiers: model.AccPublic | model.AccFinal, Super: "java.lang.Number"},
	{Name: "java.lang.Boolean", Modifiers: model.AccPublic | model.AccFinal},
	{Name: model.ThrowableClass, Modifiers: model.AccPublic},
	{Name: "java.lang.Exception", Modifiers: model.AccPublic, Super: model.ThrowableClass},
	{Name: "java.lang.Error", Modifiers: model.AccPublic, Super: model.ThrowableClass},
	{Name: "java.lang.RuntimeException", Modifiers: model.AccPublic, Super: "java.lang.Exception"},
	{Name: "java.lang.IllegalArgumentException", Modifiers: model.AccPublic, Super: "java.lang.RuntimeException"},
	{Name: "java.lang.IllegalStateException", Modifiers: model.AccPublic, Super: "java.lang.RuntimeException"},
	{Name: "java.lang.reflect.Method", Modifiers: model.AccPublic | model.AccFinal},
	{Name: "java.util.Collection", Modifiers: model.AccPublic | model.AccInterface | model.AccAbstract},
	{Name: "java.util.List", Modifiers: model.AccPublic | model.AccInterface | model.AccAbstract, Interfaces: []string{"java.util.Collection"}},
	{Name: "java.util.Map", Modifiers: model.AccPublic | model.AccInterface | model.AccAbstract},
}

var bootstrap = sync.OnceValue(func() *Loader {
	l := newLoader("bootstrap", nil)
	for _, def := range bootstrapClasses {
		l.MustDefine(def)
	}
	return l
})

// Bootstrap returns the root scope holding the core library classes.
func Bootstrap() *Loader {
	return bootstrap()
}
