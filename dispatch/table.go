package dispatch

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/lunfardo314/easycall/registry"
)

// Mode selects the dispatch table layout
type Mode byte

const (
	// Associative keys thunks by descriptor. Lookup costs a map access plus
	// a presence check; a miss is a reported, recoverable error. Descriptors
	// the concrete type cannot serve are skipped at build time and reported
	// on first use. This is the default.
	Associative = Mode(iota)
	// Indexed is the zero-overhead layout: a flat slice indexed by slot.
	// Every registered descriptor must resolve at build time, and a slot
	// registered after the build is out of range: indexing with it panics
	// like any out-of-bounds access. Use only when all registration
	// provably happens before the first wrapper construction.
	Indexed
)

func (m Mode) String() string {
	switch m {
	case Associative:
		return "associative"
	case Indexed:
		return "indexed"
	}
	return fmt.Sprintf("mode(%d)", m)
}

type (
	// Table is the per-concrete-type dispatch table. Built exactly once per
	// type within a scope, immutable afterwards, shared by every wrapper
	// over that type.
	Table struct {
		concrete    reflect.Type
		mode        Mode
		thunks      []Thunk          // indexed mode
		byKey       map[string]Thunk // associative mode
		numEntries  int
		scopeID     uuid.UUID
		fingerprint [32]byte // scope history digest at build instant
	}

	// Builder builds and retains tables for one scope. The cache is the
	// run-once gate: concurrent first constructions of wrappers over the
	// same concrete type produce one table, and later builds return the
	// stored one even if the registry has grown since.
	Builder struct {
		mu    sync.Mutex
		mode  Mode
		cache map[reflect.Type]*Table
	}

	// MissingEntryError reports an associative lookup miss: this table
	// cannot serve the descriptor. Detail, when present, is the journal's
	// explanation of why.
	MissingEntryError struct {
		Concrete   reflect.Type
		Descriptor registry.Descriptor
		Detail     string
	}
)

func (e *MissingEntryError) Error() string {
	ret := fmt.Sprintf("missing dispatch entry: %s cannot serve %s", e.Concrete.String(), e.Descriptor.Key())
	if e.Detail != "" {
		ret += " (" + e.Detail + ")"
	}
	return ret
}

func NewBuilder(mode Mode) *Builder {
	return &Builder{
		mode:  mode,
		cache: make(map[reflect.Type]*Table),
	}
}

func (b *Builder) Mode() Mode {
	return b.mode
}

// Build snapshots the scope for the concrete type and produces its dispatch
// table, one thunk per descriptor in slot order. Idempotent per type: the
// first build wins and is recorded in the scope's journal.
func (b *Builder) Build(s *registry.Scope, concrete reflect.Type) (*Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ret, ok := b.cache[concrete]; ok {
		return ret, nil
	}
	snapshot := s.Snapshot(concrete)
	ret, err := buildTable(concrete, snapshot, b.mode)
	if err != nil {
		return nil, err
	}
	ret.scopeID = s.ID()
	ret.fingerprint = s.Fingerprint()
	b.cache[concrete] = ret
	s.NoteBuild(concrete, len(snapshot))
	return ret, nil
}

func buildTable(concrete reflect.Type, descriptors []registry.Descriptor, mode Mode) (*Table, error) {
	ret := &Table{
		concrete:   concrete,
		mode:       mode,
		numEntries: len(descriptors),
	}
	switch mode {
	case Indexed:
		ret.thunks = make([]Thunk, 0, len(descriptors))
		for _, d := range descriptors {
			th, err := makeThunk(concrete, d)
			if err != nil {
				return nil, fmt.Errorf("buildTable: %v", err)
			}
			ret.thunks = append(ret.thunks, th)
		}
	case Associative:
		ret.byKey = make(map[string]Thunk, len(descriptors))
		for _, d := range descriptors {
			th, err := makeThunk(concrete, d)
			if err != nil {
				// unresolvable combinations are absent entries,
				// reported on first use
				continue
			}
			ret.byKey[d.Key()] = th
		}
	default:
		return nil, fmt.Errorf("buildTable: wrong mode %s", mode)
	}
	return ret, nil
}

// Len is the number of distinct descriptors registered in the scope at the
// instant this table was built
func (tb *Table) Len() int {
	return tb.numEntries
}

func (tb *Table) Mode() Mode {
	return tb.mode
}

func (tb *Table) Concrete() reflect.Type {
	return tb.concrete
}

// ScopeID identifies the scope whose registration history this table was
// built under
func (tb *Table) ScopeID() uuid.UUID {
	return tb.scopeID
}

// Fingerprint is the scope history digest at the build instant
func (tb *Table) Fingerprint() [32]byte {
	return tb.fingerprint
}

// ThunkAt indexes the flat table. Indexed mode only; a slot assigned after
// the table was built is out of range and panics.
func (tb *Table) ThunkAt(slot registry.Slot) Thunk {
	if tb.mode != Indexed {
		panic(fmt.Errorf("ThunkAt: table for %s is %s", tb.concrete.String(), tb.mode))
	}
	return tb.thunks[slot]
}

// ThunkFor looks the descriptor up in the associative table
func (tb *Table) ThunkFor(d registry.Descriptor) (Thunk, error) {
	if tb.mode != Associative {
		panic(fmt.Errorf("ThunkFor: table for %s is %s", tb.concrete.String(), tb.mode))
	}
	th, ok := tb.byKey[d.Key()]
	if !ok {
		return nil, &MissingEntryError{Concrete: tb.concrete, Descriptor: d}
	}
	return th, nil
}
