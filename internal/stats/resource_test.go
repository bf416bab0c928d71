package stats

import (
	"testing"
	"time"

	"github.com/asyncwatch/console/internal/model"
	"github.com/stretchr/testify/require"
)

func TestResourceStatsAttributeOverrideAndAdd(t *testing.T) {
	s := NewResourceStats(time.Unix(0, 0))
	s.TakeUnsent()

	require.True(t, s.UpdateAttribute(model.AttributeUpdate{
		Key: "duration", Value: model.U64Value(100), Unit: "ns", Op: model.AttrOverride,
	}))
	require.True(t, s.UpdateAttribute(model.AttributeUpdate{
		Key: "duration", Value: model.U64Value(50), Op: model.AttrAdd,
	}))

	attrs := s.Attributes()
	require.Len(t, attrs, 1)
	require.Equal(t, uint64(150), attrs[0].Value.U)
	require.Equal(t, "ns", attrs[0].Unit)
	require.True(t, s.TakeUnsent())
}

func TestResourceStatsAttributeTypeMismatchIsRejected(t *testing.T) {
	s := NewResourceStats(time.Unix(0, 0))
	s.TakeUnsent()

	require.True(t, s.UpdateAttribute(model.AttributeUpdate{Key: "k", Value: model.U64Value(1), Op: model.AttrOverride}))
	s.TakeUnsent()

	ok := s.UpdateAttribute(model.AttributeUpdate{Key: "k", Value: model.StringValue("nope"), Op: model.AttrAdd})
	require.False(t, ok)
	require.False(t, s.TakeUnsent(), "a rejected update must not mark the stats dirty")
}

func TestResourceStatsDrop(t *testing.T) {
	s := NewResourceStats(time.Unix(0, 0))
	require.False(t, s.IsDropped())
	s.Drop(time.Unix(5, 0))
	require.True(t, s.IsDropped())
	at, ok := s.DroppedAt()
	require.True(t, ok)
	require.Equal(t, time.Unix(5, 0), at)
}
