package registry

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

const manifestSource = `
operations:
  - op: Emit
    args: [int]
  - op: Render
    args: [int, float64]
  - op: Emit
    args: [float64, string]
`

func TestManifest(t *testing.T) {
	t.Run("1", func(t *testing.T) {
		m, err := ParseManifest([]byte(manifestSource))
		require.NoError(t, err)
		require.EqualValues(t, 3, len(m.Operations))
		require.EqualValues(t, "Render", m.Operations[1].Op)
	})
	t.Run("2", func(t *testing.T) {
		m, err := ParseManifest([]byte(manifestSource))
		require.NoError(t, err)
		s := NewScope()
		require.NoError(t, m.ApplyTo(s))
		require.EqualValues(t, 3, s.NumRegistered())
		slot, ok := s.SlotOf(NewDescriptor("Render", tInt, tFloat))
		require.True(t, ok)
		require.EqualValues(t, 1, slot)
	})
	t.Run("3", func(t *testing.T) {
		// reapplying is idempotent
		m, err := ParseManifest([]byte(manifestSource))
		require.NoError(t, err)
		s := NewScope()
		require.NoError(t, m.ApplyTo(s))
		require.NoError(t, m.ApplyTo(s))
		require.EqualValues(t, 3, s.NumRegistered())
	})
	t.Run("4", func(t *testing.T) {
		m, err := ParseManifest([]byte(`
operations:
  - op: Emit
    args: [widget]
`))
		require.NoError(t, err)
		err = m.ApplyTo(NewScope())
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown argument type name")
	})
	t.Run("5", func(t *testing.T) {
		_, err := ParseManifest([]byte(`
operations:
  - args: [int]
`))
		require.Error(t, err)
	})
	t.Run("6", func(t *testing.T) {
		_, err := ParseManifest([]byte("operations: ["))
		require.Error(t, err)
	})
}

type gadget struct {
	ID int
}

func TestTypeNames(t *testing.T) {
	t.Run("1", func(t *testing.T) {
		tt, ok := TypeByName("float64")
		require.True(t, ok)
		require.EqualValues(t, reflect.TypeOf(float64(0)), tt)
	})
	t.Run("2", func(t *testing.T) {
		RegisterTypeName("gadget", reflect.TypeOf(gadget{}))
		tt, ok := TypeByName("gadget")
		require.True(t, ok)
		require.EqualValues(t, reflect.TypeOf(gadget{}), tt)

		m, err := ParseManifest([]byte(`
operations:
  - op: Inspect
    args: [gadget]
`))
		require.NoError(t, err)
		s := NewScope()
		require.NoError(t, m.ApplyTo(s))
		_, ok = s.SlotOf(NewDescriptor("Inspect", reflect.TypeOf(gadget{})))
		require.True(t, ok)
	})
	t.Run("3", func(t *testing.T) {
		// re-registering the same binding is fine
		require.NotPanics(t, func() {
			RegisterTypeName("gadget", reflect.TypeOf(gadget{}))
		})
		require.Panics(t, func() {
			RegisterTypeName("gadget", reflect.TypeOf(int(0)))
		})
	})
}
