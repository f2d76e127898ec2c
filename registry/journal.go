package registry

import (
	"bytes"
	"fmt"

	"github.com/lunfardo314/easycall"
	"github.com/lunfardo314/unitrie/common"
)

// journal record keys are 1-byte partition prefixes
const (
	partitionRegistrations = byte('r')
	partitionBuilds        = byte('b')
)

// JournalStore is what the journal needs from a key/value store: reads,
// writes and prefix iteration
type JournalStore interface {
	common.KVStore
	common.Traversable
}

// Journal is an append-only trace of registry activity kept in a key/value
// store: one record per assigned slot and one record per first table build.
// Safe-mode dispatch failures are explained from it: a descriptor present in
// the registrations partition with a slot at or beyond the count recorded
// for the target type is an ordering violation, not a missing method.
type Journal struct {
	store JournalStore
}

func NewJournal(store JournalStore) *Journal {
	if store == nil {
		store = common.NewInMemoryKVStore()
	}
	return &Journal{store: store}
}

// NewInMemoryJournal is the usual journal for tests and single-process use
func NewInMemoryJournal() *Journal {
	return NewJournal(common.NewInMemoryKVStore())
}

func registrationKey(slot Slot) []byte {
	return common.Concat([]byte{partitionRegistrations}, easycall.Uint16ToBytes(uint16(slot)))
}

func buildKey(typeName string) []byte {
	return common.Concat([]byte{partitionBuilds}, []byte(typeName))
}

func (j *Journal) recordRegistration(slot Slot, d Descriptor) {
	var buf bytes.Buffer
	err := easycall.WriteBytes16(&buf, []byte(d.Key()))
	easycall.AssertNoError(err)
	j.store.Set(registrationKey(slot), buf.Bytes())
}

func (j *Journal) recordBuild(typeName string, numDescriptors int) {
	k := buildKey(typeName)
	if j.store.Has(k) {
		// tables are built once; keep the first record
		return
	}
	easycall.Assert(numDescriptors <= MaxNumDescriptors, "recordBuild: wrong descriptor count")
	j.store.Set(k, easycall.Uint16ToBytes(uint16(numDescriptors)))
}

// DescriptorKeyAt returns the canonical descriptor key recorded for the slot
func (j *Journal) DescriptorKeyAt(slot Slot) (string, bool) {
	data := j.store.Get(registrationKey(slot))
	if len(data) == 0 {
		return "", false
	}
	key, err := easycall.ReadBytes16(bytes.NewReader(data))
	easycall.AssertNoError(err)
	return string(key), true
}

// BuildCount returns the registration count recorded at the instant the
// table for the type was first built
func (j *Journal) BuildCount(typeName string) (int, bool) {
	data := j.store.Get(buildKey(typeName))
	if len(data) == 0 {
		return 0, false
	}
	ret, err := easycall.Uint16FromBytes(data)
	easycall.AssertNoError(err)
	return int(ret), true
}

// NumRegistrations counts recorded slot assignments
func (j *Journal) NumRegistrations() int {
	ret := 0
	j.store.Iterator([]byte{partitionRegistrations}).Iterate(func(_, _ []byte) bool {
		ret++
		return true
	})
	return ret
}

func (j *Journal) explain(d Descriptor, slot Slot, typeName string) string {
	builtWith, built := j.BuildCount(typeName)
	if !built {
		return fmt.Sprintf("no dispatch table was ever built for %s in this scope", typeName)
	}
	if int(slot) >= builtWith {
		return fmt.Sprintf("ordering violation: %s was registered at slot %d, after the table for %s had been built with %d entries",
			d.Key(), slot, typeName, builtWith)
	}
	return fmt.Sprintf("%s was registered before the table for %s was built: the type does not provide a matching method",
		d.Key(), typeName)
}
