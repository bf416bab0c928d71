package aggregator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/asyncwatch/console/proto"
)

// Watcher is one WatchUpdates subscriber's update queue, owned
// exclusively by the aggregator goroutine (spec §5 "Watcher list: owned
// by aggregator exclusively"). A full queue means the subscriber is
// too slow; it is dropped rather than allowed to backpressure the
// aggregator (spec §4.F, §7 WatcherDisconnected).
type Watcher struct {
	ID      uuid.UUID
	updates chan *proto.Update

	closeOnce sync.Once
}

func newWatcher(capacity int) *Watcher {
	return &Watcher{ID: uuid.New(), updates: make(chan *proto.Update, capacity)}
}

// Updates returns the channel the gRPC server surface forwards to the
// client stream.
func (w *Watcher) Updates() <-chan *proto.Update { return w.updates }

// trySend attempts a non-blocking send; on a full queue it closes the
// channel so the server stream observes channel closure and ends.
func (w *Watcher) trySend(u *proto.Update) bool {
	select {
	case w.updates <- u:
		return true
	default:
		w.close()
		return false
	}
}

func (w *Watcher) close() {
	w.closeOnce.Do(func() { close(w.updates) })
}

// DetailWatcher is one WatchTaskDetails subscriber's queue.
type DetailWatcher struct {
	ID      uuid.UUID
	updates chan *proto.TaskDetails

	closeOnce sync.Once
}

func newDetailWatcher(capacity int) *DetailWatcher {
	return &DetailWatcher{ID: uuid.New(), updates: make(chan *proto.TaskDetails, capacity)}
}

// Updates returns the channel the gRPC server surface forwards to the
// client stream.
func (dw *DetailWatcher) Updates() <-chan *proto.TaskDetails { return dw.updates }

func (dw *DetailWatcher) trySend(u *proto.TaskDetails) bool {
	select {
	case dw.updates <- u:
		return true
	default:
		dw.close()
		return false
	}
}

func (dw *DetailWatcher) close() {
	dw.closeOnce.Do(func() { close(dw.updates) })
}
