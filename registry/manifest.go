package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/lunfardo314/easycall"
	"gopkg.in/yaml.v3"
)

// The manifest is the eager-registration surface: instead of relying on each
// generic call site to register its own descriptor just in time, a program
// can declare every (operation, argument types) combination it intends to
// reach and apply the declaration to a scope during initialization, before
// any wrapper is constructed. This removes the build-ordering hazard of the
// indexed dispatch mode entirely, at the cost of declaring calls up front.
//
// Manifest document:
//
//	operations:
//	  - op: emit
//	    args: [int]
//	  - op: render
//	    args: [int, float64]
//
// Argument type names resolve through the type name table below. Built-in
// Go types are preregistered; user types must be added with
// RegisterTypeName before the manifest is applied.
type (
	Manifest struct {
		Operations []OpDecl `yaml:"operations"`
	}

	OpDecl struct {
		Op   string   `yaml:"op"`
		Args []string `yaml:"args"`
	}
)

func ParseManifest(data []byte) (*Manifest, error) {
	ret := &Manifest{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("ParseManifest: %v", err)
	}
	for i, decl := range ret.Operations {
		if decl.Op == "" {
			return nil, fmt.Errorf("ParseManifest: empty operation name in entry #%d", i)
		}
	}
	return ret, nil
}

// ApplyTo registers every declared combination in document order. Repeated
// declarations are harmless: registration is idempotent.
func (m *Manifest) ApplyTo(s *Scope) error {
	return easycall.CatchPanicOrError(func() error {
		for _, decl := range m.Operations {
			argTypes := make([]reflect.Type, len(decl.Args))
			for i, name := range decl.Args {
				t, ok := TypeByName(name)
				if !ok {
					return fmt.Errorf("ApplyTo: unknown argument type name '%s' in operation '%s'", name, decl.Op)
				}
				argTypes[i] = t
			}
			s.Register(NewDescriptor(decl.Op, argTypes...))
		}
		return nil
	})
}

func MustApplyManifest(data []byte, s *Scope) {
	m, err := ParseManifest(data)
	easycall.AssertNoError(err)
	easycall.AssertNoError(m.ApplyTo(s))
}

// type name table, seeded with builtins

var (
	typeNamesMutex sync.RWMutex
	typeNames      = map[string]reflect.Type{
		"bool":    reflect.TypeOf(false),
		"string":  reflect.TypeOf(""),
		"int":     reflect.TypeOf(int(0)),
		"int8":    reflect.TypeOf(int8(0)),
		"int16":   reflect.TypeOf(int16(0)),
		"int32":   reflect.TypeOf(int32(0)),
		"int64":   reflect.TypeOf(int64(0)),
		"uint":    reflect.TypeOf(uint(0)),
		"uint8":   reflect.TypeOf(uint8(0)),
		"uint16":  reflect.TypeOf(uint16(0)),
		"uint32":  reflect.TypeOf(uint32(0)),
		"uint64":  reflect.TypeOf(uint64(0)),
		"float32": reflect.TypeOf(float32(0)),
		"float64": reflect.TypeOf(float64(0)),
		"[]byte":  reflect.TypeOf([]byte(nil)),
	}
)

// RegisterTypeName makes a type resolvable from manifests under the given
// name. Re-registering the same name with a different type panics.
func RegisterTypeName(name string, t reflect.Type) {
	typeNamesMutex.Lock()
	defer typeNamesMutex.Unlock()

	if existing, ok := typeNames[name]; ok && existing != t {
		panic(fmt.Errorf("RegisterTypeName: name '%s' already taken by %s", name, existing.String()))
	}
	typeNames[name] = t
}

func TypeByName(name string) (reflect.Type, bool) {
	typeNamesMutex.RLock()
	defer typeNamesMutex.RUnlock()

	t, ok := typeNames[name]
	return t, ok
}
