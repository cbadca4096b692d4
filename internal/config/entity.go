package config

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/model"
)

// CfgEntityLevel orders configuration scopes by specificity:
// System < Application < Class < {Method, Field}.
type CfgEntityLevel int

const (
	System CfgEntityLevel = iota
	Application
	Class
	Method
	Field
)

func (l CfgEntityLevel) rank() int {
	if l == Field {
		return int(Method)
	}
	return int(l)
}

func (l CfgEntityLevel) String() string {
	switch l {
	case System:
		return "system"
	case Application:
		return "application"
	case Class:
		return "class"
	case Method:
		return "method"
	case Field:
		return "field"
	default:
		return fmt.Sprintf("CfgEntityLevel(%d)", int(l))
	}
}

// CfgEntity identifies the thing a property is resolved for.
type CfgEntity struct {
	Level  CfgEntityLevel
	App    string
	Class  string
	Method model.MethodSpec // Method level
	Field  string           // Field level
}

func SystemEntity() CfgEntity {
	return CfgEntity{Level: System}
}

func AppEntity(app string) CfgEntity {
	return CfgEntity{Level: Application, App: app}
}

func ClassEntity(app, class string) CfgEntity {
	return CfgEntity{Level: Class, App: app, Class: class}
}

func MethodEntity(app, class string, m model.MethodSpec) CfgEntity {
	return CfgEntity{Level: Method, App: app, Class: class, Method: m}
}

func FieldEntity(app, class, field string) CfgEntity {
	return CfgEntity{Level: Field, App: app, Class: class, Field: field}
}

// Parent returns the next less specific scope. System is its own parent.
func (e CfgEntity) Parent() CfgEntity {
	switch e.Level {
	case Method, Field:
		return ClassEntity(e.App, e.Class)
	case Class:
		return AppEntity(e.App)
	default:
		return SystemEntity()
	}
}

func (e CfgEntity) MoreSpecificThan(other CfgEntity) bool {
	return e.Level.rank() > other.Level.rank()
}

func (e CfgEntity) String() string {
	switch e.Level {
	case Application:
		return "app " + e.App
	case Class:
		return fmt.Sprintf("class %s/%s", e.App, e.Class)
	case Method:
		return fmt.Sprintf("method %s/%s.%s%s", e.App, e.Class, e.Method.Name, e.Method.Descriptor())
	case Field:
		return fmt.Sprintf("field %s/%s.%s", e.App, e.Class, e.Field)
	default:
		return "system"
	}
}
