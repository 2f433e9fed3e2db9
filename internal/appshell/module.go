package appshell

import (
	"fmt"

	"github.com/d5/tengo/v2"
)

type (
	// Module groups functions and values under a name scripts can import.
	Module struct {
		name  string
		attrs map[string]tengo.Object
	}
)

func NewModule(name string) *Module {
	return &Module{name: name, attrs: make(map[string]tengo.Object)}
}

func (m *Module) Name() string { return m.name }

func (m *Module) AddFuncRaw(name string, fn tengo.CallableFunc) {
	m.attrs[name] = &tengo.BuiltinFunction{Name: m.name + "." + name, Value: fn}
}

// AddValue exposes v as a read-only attribute, v must be something
// tengo.FromInterface understands.
func (m *Module) AddValue(name string, v any) error {
	obj, err := tengo.FromInterface(v)
	if err != nil {
		return fmt.Errorf("appshell: %v.%v: %w", m.name, name, err)
	}
	m.attrs[name] = obj
	return nil
}

func (m *Module) builtin() *tengo.BuiltinModule {
	return &tengo.BuiltinModule{Attrs: m.attrs}
}
