package registry

import (
	"reflect"
	"testing"

	"github.com/lunfardo314/easycall/util/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	type target struct{}

	s := NewScope(WithTrace(testutil.NewTraceLogger(true)), WithJournal(nil))
	s.Register(NewDescriptor("Emit", tInt))
	s.Register(NewDescriptor("Render", tInt, tFloat))
	snap := s.Snapshot(reflect.TypeOf(target{}))
	s.NoteBuild(reflect.TypeOf(target{}), len(snap))
	require.EqualValues(t, 2, len(snap))
}
