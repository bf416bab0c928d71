package intern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternDedupes(t *testing.T) {
	table := NewTable()

	a := table.Intern("tokio::task")
	b := table.Intern("tokio::task")

	require.Equal(t, "tokio::task", a.String())
	require.Equal(t, 1, table.Len(), "equal strings must share one entry")
	require.Equal(t, a.String(), b.String())
}

func TestReclaimRemovesUnreferenced(t *testing.T) {
	table := NewTable()

	h := table.Intern("runtime.resource")
	table.Release(h)

	removed := table.Reclaim()
	require.Equal(t, 1, removed)
	require.Equal(t, 0, table.Len())
}

func TestReclaimKeepsReferenced(t *testing.T) {
	table := NewTable()

	a := table.Intern("runtime.resource.async_op")
	_ = table.Intern("runtime.resource.async_op")
	table.Release(a)

	removed := table.Reclaim()
	require.Equal(t, 0, removed, "still has one outstanding reference")
	require.Equal(t, 1, table.Len())
}
