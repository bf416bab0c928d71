// Package recording implements JSON-lines capture and replay of the raw
// instrumentation-layer callback stream (the supplemented "recording_path"
// feature named in spec.md's config table), grounded on
// console-subscriber's record.rs: a one-line version header followed by
// one JSON object per callback occurrence, buffered in memory and
// flushed to disk by a background goroutine.
package recording

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/asyncwatch/console/internal/errs"
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/instrument"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/logging"
)

// FormatVersion marks the currently understood recording format.
// Bump whenever a breaking change is made.
const FormatVersion = 1

type header struct {
	V int `json:"v"`
}

// kind tags which Layer callback a recorded line captures.
type kind string

const (
	kindMetadata kind = "metadata"
	kindSpan     kind = "span"
	kindEnter    kind = "enter"
	kindExit     kind = "exit"
	kindClose    kind = "close"
	kindEvent    kind = "event"
)

// line is the on-disk shape of one recorded callback occurrence. Only
// the fields relevant to Kind are populated.
type line struct {
	Kind kind      `json:"kind"`
	At   time.Time `json:"at"`

	// kindMetadata
	Meta *model.Metadata `json:"meta,omitempty"`

	// kindSpan
	Remote     ids.Remote            `json:"remote,omitempty"`
	Target     string                `json:"target,omitempty"`
	Name       string                `json:"name,omitempty"`
	MetaID     model.MetaID          `json:"meta_id,omitempty"`
	FieldNames []string              `json:"field_names,omitempty"`
	Fields     []instrument.RawField `json:"fields,omitempty"`
	Location   model.Location        `json:"location,omitempty"`
	Parents    []ids.Remote          `json:"parents,omitempty"`

	// kindEvent
	Event *instrument.RawEvent `json:"event,omitempty"`
}

// Writer appends recorded callback occurrences to a file as JSON lines.
// All methods are safe for concurrent use by instrumentation callback
// goroutines. Each call encodes its line inline, under a mutex, into a
// buffered writer and then signals a single background goroutine to
// flush it. A caller can still wait on disk I/O: the flush holds the
// same mutex, and a line that fills the buffer is written to the file
// by the caller itself.
type Writer struct {
	mu   sync.Mutex
	buf  *bufio.Writer
	file *os.File
	enc  *json.Encoder

	flush chan struct{}
	done  chan struct{}
}

// NewWriter creates (truncating) the recording file at path and starts
// its background flush loop.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(err, "create recording file")
	}
	buf := bufio.NewWriter(f)
	w := &Writer{
		buf:   buf,
		file:  f,
		enc:   json.NewEncoder(buf),
		flush: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	if err := w.enc.Encode(header{V: FormatVersion}); err != nil {
		f.Close()
		return nil, errs.Wrap(err, "write recording header")
	}
	go w.run()
	return w, nil
}

func (w *Writer) run() {
	log := logging.Named("recording")
	for range w.flush {
		w.mu.Lock()
		err := w.buf.Flush()
		w.mu.Unlock()
		if err != nil {
			log.Warnw("recording flush failed", "error", err)
		}
	}
	close(w.done)
}

func (w *Writer) write(l line) {
	w.mu.Lock()
	_ = w.enc.Encode(l)
	w.mu.Unlock()
	select {
	case w.flush <- struct{}{}:
	default:
	}
}

// Metadata records a RegisterCallsite occurrence.
func (w *Writer) Metadata(meta *model.Metadata, at time.Time) {
	w.write(line{Kind: kindMetadata, At: at, Meta: meta})
}

// Span records a NewSpan occurrence.
func (w *Writer) Span(remote ids.Remote, target, name string, metaID model.MetaID, fieldNames []string, fields []instrument.RawField, loc model.Location, parents []ids.Remote, at time.Time) {
	w.write(line{
		Kind: kindSpan, At: at, Remote: remote, Target: target, Name: name,
		MetaID: metaID, FieldNames: fieldNames, Fields: fields, Location: loc, Parents: parents,
	})
}

// Enter records an OnEnter occurrence.
func (w *Writer) Enter(remote ids.Remote, at time.Time) {
	w.write(line{Kind: kindEnter, At: at, Remote: remote})
}

// Exit records an OnExit occurrence.
func (w *Writer) Exit(remote ids.Remote, at time.Time) {
	w.write(line{Kind: kindExit, At: at, Remote: remote})
}

// Close records an OnClose occurrence.
func (w *Writer) Close(remote ids.Remote, at time.Time) {
	w.write(line{Kind: kindClose, At: at, Remote: remote})
}

// Event records an OnEvent occurrence.
func (w *Writer) Event(ev instrument.RawEvent, at time.Time) {
	w.write(line{Kind: kindEvent, At: at, Event: &ev})
}

// Stop flushes and closes the recording file, waiting for the
// background writer to finish.
func (w *Writer) Stop() error {
	close(w.flush)
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return errs.Wrap(err, "flush recording file")
	}
	return errs.Wrap(w.file.Close(), "close recording file")
}

// Reader replays a recorded session into a Layer at the recorded
// inter-arrival spacing, scaled by a speed multiplier (1.0 == real
// time, 0 == as fast as possible).
type Reader struct {
	dec *json.Decoder
	f   *os.File
}

// NewReader opens path and validates its header.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "open recording file")
	}
	dec := json.NewDecoder(f)
	var h header
	if err := dec.Decode(&h); err != nil {
		f.Close()
		return nil, errs.Wrap(err, "read recording header")
	}
	if h.V != FormatVersion {
		f.Close()
		return nil, errs.Newf("unsupported recording format version %d (want %d)", h.V, FormatVersion)
	}
	return &Reader{dec: dec, f: f}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Replay feeds every recorded callback occurrence into layer, sleeping
// between occurrences for their recorded inter-arrival gap divided by
// speed. speed <= 0 means replay with no delay at all.
func (r *Reader) Replay(layer *instrument.Layer, speed float64) error {
	var prevAt time.Time
	first := true

	for {
		var l line
		if err := r.dec.Decode(&l); err != nil {
			if err == io.EOF {
				return nil
			}
			return errs.Wrap(err, "decode recording line")
		}

		if !first && speed > 0 {
			gap := l.At.Sub(prevAt)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) / speed))
			}
		}
		first = false
		prevAt = l.At

		switch l.Kind {
		case kindMetadata:
			layer.RegisterCallsite(l.Meta)
		case kindSpan:
			layer.NewSpan(l.Remote, l.Target, l.Name, l.MetaID, l.FieldNames, l.Fields, l.Location, l.Parents, l.At)
		case kindEnter:
			layer.OnEnter(l.Remote, l.At)
		case kindExit:
			layer.OnExit(l.Remote, l.At)
		case kindClose:
			layer.OnClose(l.Remote, l.At)
		case kindEvent:
			if l.Event != nil {
				layer.OnEvent(*l.Event, l.At)
			}
		}
	}
}
