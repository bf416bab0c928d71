package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDForIsStableAndGapFree(t *testing.T) {
	r := NewRewriter(KindTask)

	a := r.IDFor(Remote(42))
	b := r.IDFor(Remote(7))
	aAgain := r.IDFor(Remote(42))

	require.Equal(t, a, aAgain)
	require.NotEqual(t, a, b)
	require.Equal(t, uint64(0), a.Value)
	require.Equal(t, uint64(1), b.Value)
	require.Equal(t, KindTask, a.Kind)
}

func TestForgetAllowsRemoteIDReuse(t *testing.T) {
	r := NewRewriter(KindResource)

	first := r.IDFor(Remote(5))
	r.Forget(Remote(5))
	second := r.IDFor(Remote(5))

	require.NotEqual(t, first, second, "remote ID reuse after close must allocate a fresh sequential ID")
	require.Equal(t, uint64(1), second.Value)
}

func TestKindsDoNotCollide(t *testing.T) {
	tasks := NewRewriter(KindTask)
	resources := NewRewriter(KindResource)

	taskID := tasks.IDFor(Remote(1))
	resourceID := resources.IDFor(Remote(1))

	require.Equal(t, taskID.Value, resourceID.Value)
	require.NotEqual(t, taskID.Kind, resourceID.Kind)
}
