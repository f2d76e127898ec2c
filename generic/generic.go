// Package generic is the caller-facing surface: a Wrapper binds a dispatch
// table to one concrete value at construction and routes generic calls
// through it. A call names an operation and supplies arguments of any types;
// the (operation, argument types) combination is registered in the scope and
// dispatched to the concrete type's method with exactly that signature.
//
// Construction timing is the heart of the contract: Wrap snapshots the scope
// at the moment the first wrapper over a concrete type is constructed, and
// the resulting table never grows. Every combination the program intends to
// reach through wrappers over T must be registered before that moment,
// either by an earlier call or eagerly through a manifest
// (registry.ParseManifest).
//
// In the default associative mode a late-registered combination is a
// reported *dispatch.MissingEntryError. In indexed mode it is out of range
// of the flat table and panics: prevent it structurally, with a single
// registration phase before any construction. For the same reason a wrapper
// must never cross into code registering under a different scope while in
// indexed mode; Call reports ScopeMismatchError when it detects that.
package generic

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/lunfardo314/easycall"
	"github.com/lunfardo314/easycall/dispatch"
	"github.com/lunfardo314/easycall/registry"
)

type (
	// Wrapper is the abstract interface base: an erased concrete value plus
	// a read-only reference to its scope-static dispatch table
	Wrapper struct {
		self  reflect.Value
		table *dispatch.Table
		scope *registry.Scope
	}

	// ScopeMismatchError reports an indexed-mode wrapper invoked under a
	// scope different from the one its table was built under
	ScopeMismatchError struct {
		TableScopeID     string
		CallScopeID      string
		TableFingerprint [32]byte
		CallFingerprint  [32]byte
	}
)

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("scope mismatch: table built under scope %s, called under scope %s", e.TableScopeID, e.CallScopeID)
}

// the default builder serves wrappers bound to the default scope

var defaultBuilder = dispatch.NewBuilder(dispatch.Associative)

// Wrap constructs a wrapper over x in the default scope. The concrete type
// is taken from x; methods with pointer receivers are reachable only when x
// is a pointer.
func Wrap(x interface{}) (*Wrapper, error) {
	return WrapIn(registry.DefaultScope(), defaultBuilder, x)
}

func MustWrap(x interface{}) *Wrapper {
	ret, err := Wrap(x)
	easycall.AssertNoError(err)
	return ret
}

// WrapIn constructs a wrapper with explicit scope and builder. The builder
// must be used with one scope only; its per-type memoization assumes a
// single registration history.
func WrapIn(s *registry.Scope, b *dispatch.Builder, x interface{}) (*Wrapper, error) {
	if x == nil {
		return nil, errors.New("WrapIn: nil value")
	}
	self := reflect.ValueOf(x)
	table, err := b.Build(s, self.Type())
	if err != nil {
		return nil, err
	}
	return &Wrapper{
		self:  self,
		table: table,
		scope: s,
	}, nil
}

// Table exposes the bound dispatch table
func (w *Wrapper) Table() *dispatch.Table {
	return w.table
}

// Call performs one generic call: forms the descriptor from the actual
// argument types, registers it (always, before lookup: registration is the
// call site's side of the discovery contract, and must not be skipped even
// when it will miss this wrapper's table), then dispatches through the
// table. The returned value is the operation's result, nil for void
// operations. An error produced by the concrete operation itself comes back
// unchanged; panics inside it propagate.
func (w *Wrapper) Call(op string, args ...interface{}) (interface{}, error) {
	d := registry.DescriptorOf(op, args...)
	slot := w.scope.Register(d)

	bundle := dispatch.NewArgBundle(args...)
	out := dispatch.NewOutput()

	var th dispatch.Thunk
	switch w.table.Mode() {
	case dispatch.Indexed:
		if w.table.ScopeID() != w.scope.ID() {
			return nil, &ScopeMismatchError{
				TableScopeID:     w.table.ScopeID().String(),
				CallScopeID:      w.scope.ID().String(),
				TableFingerprint: w.table.Fingerprint(),
				CallFingerprint:  w.scope.Fingerprint(),
			}
		}
		th = w.table.ThunkAt(slot)
	default:
		var err error
		th, err = w.table.ThunkFor(d)
		if err != nil {
			var miss *dispatch.MissingEntryError
			if errors.As(err, &miss) {
				miss.Detail = w.scope.Explain(d, w.table.Concrete())
			}
			return nil, err
		}
	}
	if err := th(w.self, bundle, out); err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func (w *Wrapper) MustCall(op string, args ...interface{}) interface{} {
	ret, err := w.Call(op, args...)
	easycall.AssertNoError(err)
	return ret
}

// Rebind returns a wrapper over the same value and table bound to another
// scope. This is exactly the cross-scope sharing the indexed mode forbids;
// it exists for code which hands wrappers to a subsystem with its own scope
// and accepts associative-mode misses (or indexed-mode mismatch errors) for
// combinations the original scope never saw.
func (w *Wrapper) Rebind(s *registry.Scope) *Wrapper {
	return &Wrapper{
		self:  w.self,
		table: w.table,
		scope: s,
	}
}

// Call is the typed accessor: dispatches like Wrapper.Call and converts the
// result to R
func Call[R any](w *Wrapper, op string, args ...interface{}) (R, error) {
	var zero R
	ret, err := w.Call(op, args...)
	if err != nil {
		return zero, err
	}
	if ret == nil {
		return zero, nil
	}
	r, ok := ret.(R)
	if !ok {
		return zero, fmt.Errorf("Call: operation '%s' returned %T, want %s",
			op, ret, reflect.TypeOf((*R)(nil)).Elem().String())
	}
	return r, nil
}
