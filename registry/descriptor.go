package registry

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Descriptor is the call-site key: an operation name plus the ordered list of
// argument types the call site supplies. Two descriptors are the same iff
// both the operation and the type list match (structural identity).
type Descriptor struct {
	Op   string
	Args []reflect.Type
}

func NewDescriptor(op string, argTypes ...reflect.Type) Descriptor {
	for i, t := range argTypes {
		if t == nil {
			panic(fmt.Errorf("NewDescriptor: nil type of argument #%d of '%s'", i, op))
		}
	}
	return Descriptor{Op: op, Args: argTypes}
}

// DescriptorOf forms the descriptor implied by actual argument values,
// the way a generic call site does. Untyped nil arguments carry no type
// and are rejected.
func DescriptorOf(op string, args ...interface{}) Descriptor {
	argTypes := make([]reflect.Type, len(args))
	for i, a := range args {
		if a == nil {
			panic(fmt.Errorf("DescriptorOf: untyped nil argument #%d of '%s'", i, op))
		}
		argTypes[i] = reflect.TypeOf(a)
	}
	return Descriptor{Op: op, Args: argTypes}
}

// Key returns the canonical form 'op(pkg.T1,pkg.T2)'. It is the identity
// used by maps, tables and the journal.
func (d Descriptor) Key() string {
	var sb strings.Builder
	sb.WriteString(d.Op)
	sb.WriteByte('(')
	for i, t := range d.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(t.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (d Descriptor) String() string {
	return d.Key()
}

func (d Descriptor) Equal(other Descriptor) bool {
	if d.Op != other.Op || len(d.Args) != len(other.Args) {
		return false
	}
	for i := range d.Args {
		if d.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

func (d Descriptor) Arity() int {
	return len(d.Args)
}

// Fingerprint is the blake2b-256 digest of the canonical key
func (d Descriptor) Fingerprint() [32]byte {
	return blake2b.Sum256([]byte(d.Key()))
}
