package instrument

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/asyncwatch/console/internal/events"
	"github.com/asyncwatch/console/internal/logging"
)

// flushAtCapacity is how many free slots remain before a sender signals
// the aggregator to drain immediately rather than waiting for the next
// publish tick (spec §4.E).
const flushAtCapacity = 100

// DefaultBufferCapacity is the default event channel size (spec §6.4).
const DefaultBufferCapacity = 10240

// fallbackSendTimeout bounds how long the best-effort fallback path
// (spec §5 "may spawn a fallback task to send an event when the buffer
// is full and time permits") blocks trying to deliver one event once
// the channel had no room for it. If the channel hasn't drained by
// then, the event is dropped and counted like any other overflow.
const fallbackSendTimeout = 50 * time.Millisecond

// fallbackRateLimit and fallbackBurst cap how often Emit will spawn a
// fallback retry goroutine for a full channel, so a sustained overflow
// degrades into the plain drop-and-count path below instead of piling
// up goroutines — the same token-bucket throttle shape the teacher uses
// to cap retries (ats/watcher/engine.go's rate.NewLimiter + Allow()).
const (
	fallbackRateLimit = rate.Limit(50)
	fallbackBurst     = 10
)

// DroppedCounters tracks per-kind event loss when the channel is full,
// so clients can surface it rather than silently losing data.
type DroppedCounters struct {
	Tasks      atomic.Uint64
	Resources  atomic.Uint64
	AsyncOps   atomic.Uint64
}

func (d *DroppedCounters) bump(k events.Kind) {
	switch k {
	case events.KindSpawn:
		d.Tasks.Add(1)
	case events.KindResource:
		d.Resources.Add(1)
	case events.KindAsyncResourceOp:
		d.AsyncOps.Add(1)
	}
}

// Snapshot is the (count, count, count) swapped-to-zero reading taken at
// publish time.
type Snapshot struct {
	Tasks, Resources, AsyncOps uint64
}

// TakeAndReset atomically reads and zeroes every counter.
func (d *DroppedCounters) TakeAndReset() Snapshot {
	return Snapshot{
		Tasks:     d.Tasks.Swap(0),
		Resources: d.Resources.Swap(0),
		AsyncOps:  d.AsyncOps.Swap(0),
	}
}

// Channel is the bounded MPSC handoff between any number of
// instrumentation callback threads and the single aggregator goroutine.
// Senders never block: Emit either reserves a slot immediately or hands
// the event to the rate-limited fallback goroutine (emitFallback), which
// drops it and bumps Dropped when it cannot deliver it.
type Channel struct {
	buf             chan events.Event
	flush           chan struct{}
	fallbackLimiter *rate.Limiter
	Dropped         DroppedCounters
}

// NewChannel creates a channel with the given capacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Channel{
		buf:             make(chan events.Event, capacity),
		flush:           make(chan struct{}, 1),
		fallbackLimiter: rate.NewLimiter(fallbackRateLimit, fallbackBurst),
	}
}

// Emit attempts to enqueue ev without blocking. On success, if the
// channel is near capacity it also signals Flush() with a non-blocking
// send so the aggregator wakes and drains before its next scheduled
// tick. On failure (full channel) it falls through to the best-effort
// fallback path (spec §5); if that path is itself rate-limited or times
// out, the event is dropped and counted.
func (c *Channel) Emit(ev events.Event) {
	select {
	case c.buf <- ev:
	default:
		c.emitFallback(ev)
		return
	}
	c.signalFlushIfNearCapacity()
}

// emitFallback is reached only once Emit's non-blocking send has
// already failed. It spawns a bounded-time blocking retry, but only
// when the rate limiter still has budget, so a sustained overflow
// degrades into plain drop-and-count instead of spawning an unbounded
// number of goroutines all blocked on the same full channel.
func (c *Channel) emitFallback(ev events.Event) {
	if !c.fallbackLimiter.Allow() {
		c.dropAndLog(ev, "event dropped: channel at capacity")
		return
	}
	go func() {
		timer := time.NewTimer(fallbackSendTimeout)
		defer timer.Stop()
		select {
		case c.buf <- ev:
			c.signalFlushIfNearCapacity()
		case <-timer.C:
			c.dropAndLog(ev, "event dropped: fallback send timed out")
		}
	}()
}

func (c *Channel) dropAndLog(ev events.Event, msg string) {
	c.Dropped.bump(ev.Kind)
	logging.Logger.Debugw(msg, logging.FieldEventKind, ev.Kind)
}

func (c *Channel) signalFlushIfNearCapacity() {
	if cap(c.buf)-len(c.buf) <= flushAtCapacity {
		select {
		case c.flush <- struct{}{}:
		default:
		}
	}
}

// Flush returns the signal channel the aggregator selects on to notice
// "approaching capacity, drain now" without waiting for the next
// publish tick.
func (c *Channel) Flush() <-chan struct{} { return c.flush }

// TryRecv attempts a non-blocking receive. The aggregator calls this in
// a loop to drain the channel without ever suspending on a blocking
// recv, which would reintroduce the busy-wake problem the three-way
// select exists to avoid (spec §5).
func (c *Channel) TryRecv() (events.Event, bool) {
	select {
	case ev := <-c.buf:
		return ev, true
	default:
		return events.Event{}, false
	}
}

// Closed returns the underlying buffer as a receive-only channel; it is
// closed by Close (all senders gone). A receive from it also consumes a
// queued event. The aggregator does not use it; it drains via TryRecv.
func (c *Channel) Closed() <-chan events.Event { return c.buf }

// Close closes the underlying channel. Must only be called once all
// instrumentation senders have been dropped.
func (c *Channel) Close() { close(c.buf) }
