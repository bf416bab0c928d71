package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/instrument"
	"github.com/asyncwatch/console/internal/model"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	now := time.Now()

	w, err := NewWriter(path)
	require.NoError(t, err)

	meta := &model.Metadata{ID: 1, Name: "runtime.spawn", Target: "tokio::task"}
	w.Metadata(meta, now)
	w.Span(ids.Remote(7), "tokio::task", "task", 1, []string{"task.name"},
		[]instrument.RawField{{Name: "task.name", Value: model.FieldValue{Kind: model.FieldString, S: "worker"}}},
		model.Location{File: "main.rs", Line: 10}, nil, now)
	w.Enter(ids.Remote(7), now.Add(time.Millisecond))
	w.Exit(ids.Remote(7), now.Add(2*time.Millisecond))
	w.Close(ids.Remote(7), now.Add(3*time.Millisecond))

	require.NoError(t, w.Stop())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	channel := instrument.NewChannel(16)
	layer := instrument.NewLayer(channel)
	require.NoError(t, r.Replay(layer, 0))

	ev, ok := channel.TryRecv()
	require.True(t, ok, "metadata event should have replayed")
	assert.Equal(t, "runtime.spawn", ev.Metadata.Meta.Name)
}

func TestReaderRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Stop())

	// Overwrite with a header carrying an unsupported version.
	require.NoError(t, os.WriteFile(path, []byte(`{"v":99}`+"\n"), 0o644))

	_, err = NewReader(path)
	assert.Error(t, err)
}
