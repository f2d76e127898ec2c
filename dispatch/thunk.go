// Package dispatch builds per-concrete-type dispatch tables: one type-erased
// thunk for every descriptor registered in a scope at the moment of the
// first build. Once built, a table is immutable and safe for unsynchronized
// concurrent reads.
package dispatch

import (
	"fmt"
	"reflect"

	"github.com/lunfardo314/easycall/registry"
)

type (
	// ArgBundle is the transient, caller-owned carrier of actual call
	// arguments. Values keep exactly the types the call site supplied:
	// pointers stay pointers, values stay values.
	ArgBundle struct {
		values []reflect.Value
	}

	// Output is the caller-allocated location for the operation result.
	// A reflect.Value plus a presence flag represents both 'absent' and
	// 'holds a reference' without copying. Thunks of void operations never
	// touch it.
	Output struct {
		val reflect.Value
		set bool
	}

	// Thunk is the fixed-shape erased call bound to one (concrete type,
	// descriptor) pair. The error return carries the concrete operation's
	// own error, when its signature has one; dispatch adds no failure modes
	// of its own here.
	Thunk func(self reflect.Value, args *ArgBundle, out *Output) error
)

func NewArgBundle(args ...interface{}) *ArgBundle {
	values := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			panic(fmt.Errorf("NewArgBundle: untyped nil argument #%d", i))
		}
		values[i] = reflect.ValueOf(a)
	}
	return &ArgBundle{values: values}
}

func (b *ArgBundle) Arity() int {
	return len(b.values)
}

func (b *ArgBundle) Arg(i int) reflect.Value {
	return b.values[i]
}

func NewOutput() *Output {
	return &Output{}
}

func (o *Output) put(v reflect.Value) {
	o.val = v
	o.set = true
}

// Has reports whether the operation produced a value
func (o *Output) Has() bool {
	return o.set
}

// Value moves the result out, nil for void operations
func (o *Output) Value() interface{} {
	if !o.set {
		return nil
	}
	return o.val.Interface()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// makeThunk resolves the descriptor against the concrete type's method set
// and closes the erased call over the resolved method. Resolution is the
// point where the host type system enforces the contract between registered
// descriptors and implementing types: a missing method, an arity mismatch
// or a type mismatch is reported here, at generation time, never later.
func makeThunk(concrete reflect.Type, d registry.Descriptor) (Thunk, error) {
	method, ok := concrete.MethodByName(d.Op)
	if !ok {
		return nil, fmt.Errorf("type %s has no method '%s'", concrete.String(), d.Op)
	}
	mt := method.Type
	// In(0) is the receiver
	if mt.NumIn()-1 != d.Arity() {
		return nil, fmt.Errorf("%s.%s takes %d arguments, descriptor %s has %d",
			concrete.String(), d.Op, mt.NumIn()-1, d.Key(), d.Arity())
	}
	for i, argType := range d.Args {
		if mt.In(i+1) != argType {
			return nil, fmt.Errorf("%s.%s: argument #%d is %s, descriptor %s wants %s",
				concrete.String(), d.Op, i, mt.In(i+1).String(), d.Key(), argType.String())
		}
	}
	valIdx, errIdx := -1, -1
	switch mt.NumOut() {
	case 0:
		// void operation
	case 1:
		if mt.Out(0) == errorType {
			errIdx = 0
		} else {
			valIdx = 0
		}
	case 2:
		if mt.Out(1) != errorType {
			return nil, fmt.Errorf("%s.%s: second result must be error", concrete.String(), d.Op)
		}
		valIdx, errIdx = 0, 1
	default:
		return nil, fmt.Errorf("%s.%s: unsupported result shape with %d values", concrete.String(), d.Op, mt.NumOut())
	}
	fn := method.Func
	return func(self reflect.Value, args *ArgBundle, out *Output) error {
		in := make([]reflect.Value, 0, args.Arity()+1)
		in = append(in, self)
		for i := 0; i < args.Arity(); i++ {
			in = append(in, args.Arg(i))
		}
		res := fn.Call(in)
		if errIdx >= 0 && !res[errIdx].IsNil() {
			return res[errIdx].Interface().(error)
		}
		if valIdx >= 0 && out != nil {
			out.put(res[valIdx])
		}
		return nil
	}, nil
}
