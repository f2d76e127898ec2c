// Package registry implements the slot registry: scoped, append-only state
// which assigns each distinct call-site descriptor a stable integer slot in
// first-seen order. Registration is an initialization-phase act, either
// performed by generic call sites themselves just before dispatch or
// declared eagerly through a manifest (see manifest.go).
//
// All registry state is valid within exactly one Scope. Sharing dispatch
// structures produced under one Scope with code registering under another is
// outside the guarantees of the indexed dispatch mode; see package generic.
package registry

import (
	"math"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/lunfardo314/easycall"
	"github.com/lunfardo314/unitrie/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Slot is a stable index assigned to a descriptor, starting from 0 in
// first-seen order
type Slot uint16

const MaxNumDescriptors = math.MaxUint16

type (
	// Scope is one registration scope. Two states per descriptor: unseen
	// and registered; no reverse transition, no deletion. All dispatch
	// structures built from a Scope are valid within that Scope only.
	Scope struct {
		mu          sync.Mutex
		id          uuid.UUID
		descriptors []Descriptor
		slotByKey   map[string]Slot
		journal     *Journal
		log         *zap.SugaredLogger
	}

	ScopeOption func(s *Scope)
)

func WithJournal(store JournalStore) ScopeOption {
	return func(s *Scope) {
		s.journal = NewJournal(store)
	}
}

// WithTrace makes the scope log every registration and table build
func WithTrace(log *zap.SugaredLogger) ScopeOption {
	return func(s *Scope) {
		s.log = log
	}
}

func NewScope(opts ...ScopeOption) *Scope {
	ret := &Scope{
		descriptors: make([]Descriptor, 0),
		slotByKey:   make(map[string]Slot),
		id:          uuid.New(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// the default scope singleton, analogous to a process-wide function library

var defaultScope = NewScope()

func DefaultScope() *Scope {
	return defaultScope
}

// Register on the default scope
func Register(d Descriptor) Slot {
	return defaultScope.Register(d)
}

func (s *Scope) ID() uuid.UUID {
	return s.id
}

// Register appends d to the ordered, duplicate-free descriptor sequence if
// it was not seen before and returns its slot. Idempotent and monotonic:
// a slot, once handed out, never changes.
func (s *Scope) Register(d Descriptor) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := d.Key()
	if slot, seen := s.slotByKey[key]; seen {
		return slot
	}
	easycall.Assert(len(s.descriptors) < MaxNumDescriptors, "too many registered descriptors")
	slot := Slot(len(s.descriptors))
	s.descriptors = append(s.descriptors, d)
	s.slotByKey[key] = slot
	if s.journal != nil {
		s.journal.recordRegistration(slot, d)
	}
	if s.log != nil {
		s.log.Debugf("register %s -> slot %d", key, slot)
	}
	return slot
}

// SlotOf looks a descriptor up without registering it
func (s *Scope) SlotOf(d Descriptor) (Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slotByKey[d.Key()]
	return slot, ok
}

func (s *Scope) NumRegistered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.descriptors)
}

// Snapshot returns a copy of all descriptors registered so far, in slot
// order. The token is the concrete type about to be bound to the snapshot:
// snapshots are never cached or shared between types, and the token lets
// the trace attribute each snapshot to the type which took it, which is
// what later ordering diagnostics are built from.
func (s *Scope) Snapshot(forType reflect.Type) []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make([]Descriptor, len(s.descriptors))
	copy(ret, s.descriptors)
	if s.log != nil {
		s.log.Debugf("snapshot of %d descriptors taken for type %s", len(ret), forType.String())
	}
	return ret
}

// NoteBuild records the instant a dispatch table for the given concrete type
// was built: the registration count at that moment. Only the first build is
// recorded, later notes for the same type are no-ops (tables are built once).
func (s *Scope) NoteBuild(concrete reflect.Type, numDescriptors int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		s.journal.recordBuild(concrete.String(), numDescriptors)
	}
	if s.log != nil {
		s.log.Debugf("dispatch table for %s built with %d entries", concrete.String(), numDescriptors)
	}
}

// Fingerprint is a chained blake2b-256 digest over the ordered descriptor
// fingerprints. Two scopes with the same registration history have equal
// fingerprints; any divergence in content or order changes it.
func (s *Scope) Fingerprint() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ret [32]byte
	for _, d := range s.descriptors {
		dfp := d.Fingerprint()
		ret = blake2b.Sum256(common.Concat(ret[:], dfp[:]))
	}
	return ret
}

// Explain consults the journal about a descriptor missing from the dispatch
// table of the given concrete type. Returns an empty string when the scope
// keeps no journal.
func (s *Scope) Explain(d Descriptor, concrete reflect.Type) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal == nil {
		return ""
	}
	slot, registered := s.slotByKey[d.Key()]
	if !registered {
		return "descriptor was never registered in this scope"
	}
	return s.journal.explain(d, slot, concrete.String())
}
