package aggregator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/asyncwatch/console/internal/errs"
	"github.com/asyncwatch/console/internal/ids"
)

// Command is the sum type the aggregator's control-plane channel
// carries (spec §4.F): Instrument(subscription) | WatchTaskDetail |
// Pause | Resume.
type Command interface{ isCommand() }

// SubscribeCmd requests a new WatchUpdates watcher. Resp receives the
// watcher once registered; the aggregator has already sent it the
// Include::All initial snapshot by the time it's handed back.
type SubscribeCmd struct{ Resp chan *Watcher }

func (SubscribeCmd) isCommand() {}

// UnsubscribeCmd removes a watcher, e.g. when its gRPC stream's context
// is done. Idempotent.
type UnsubscribeCmd struct{ ID uuid.UUID }

func (UnsubscribeCmd) isCommand() {}

// WatchTaskDetailCmd requests a per-task histogram stream.
type WatchTaskDetailCmd struct {
	TaskID ids.ID
	Resp   chan *DetailWatcher
}

func (WatchTaskDetailCmd) isCommand() {}

// UnwatchTaskDetailCmd removes a task-detail watcher.
type UnwatchTaskDetailCmd struct {
	TaskID ids.ID
	ID     uuid.UUID
}

func (UnwatchTaskDetailCmd) isCommand() {}

// PauseCmd suppresses publish ticks until a ResumeCmd arrives (spec
// §4.F "Pause/Resume"). Resp is closed once applied.
type PauseCmd struct{ Resp chan struct{} }

func (PauseCmd) isCommand() {}

// ResumeCmd re-enables publish ticks.
type ResumeCmd struct{ Resp chan struct{} }

func (ResumeCmd) isCommand() {}

func (a *Aggregator) handleCommand(cmd Command) {
	switch c := cmd.(type) {
	case SubscribeCmd:
		w := newWatcher(a.cfg.ClientBufferCapacity)
		a.watchers[w.ID] = w
		w.trySend(a.buildUpdate(true))
		c.Resp <- w

	case UnsubscribeCmd:
		if w, ok := a.watchers[c.ID]; ok {
			w.close()
			delete(a.watchers, c.ID)
		}

	case WatchTaskDetailCmd:
		dw := newDetailWatcher(a.cfg.ClientBufferCapacity)
		byID, ok := a.detailWatchers[c.TaskID]
		if !ok {
			byID = make(map[uuid.UUID]*DetailWatcher)
			a.detailWatchers[c.TaskID] = byID
		}
		byID[dw.ID] = dw
		c.Resp <- dw

	case UnwatchTaskDetailCmd:
		if byID, ok := a.detailWatchers[c.TaskID]; ok {
			if dw, ok := byID[c.ID]; ok {
				dw.close()
				delete(byID, c.ID)
			}
			if len(byID) == 0 {
				delete(a.detailWatchers, c.TaskID)
			}
		}

	case PauseCmd:
		a.paused.Store(true)
		close(c.Resp)

	case ResumeCmd:
		a.paused.Store(false)
		close(c.Resp)
	}
}

// Subscribe sends a SubscribeCmd and waits for the registered watcher.
func Subscribe(ctx context.Context, commands chan<- Command) (*Watcher, error) {
	resp := make(chan *Watcher, 1)
	select {
	case commands <- SubscribeCmd{Resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case w := <-resp:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe sends an UnsubscribeCmd, best-effort.
func Unsubscribe(commands chan<- Command, id uuid.UUID) {
	select {
	case commands <- UnsubscribeCmd{ID: id}:
	default:
	}
}

// WatchTaskDetail sends a WatchTaskDetailCmd and waits for the
// registered watcher.
func WatchTaskDetail(ctx context.Context, commands chan<- Command, taskID ids.ID) (*DetailWatcher, error) {
	resp := make(chan *DetailWatcher, 1)
	select {
	case commands <- WatchTaskDetailCmd{TaskID: taskID, Resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case dw := <-resp:
		return dw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// UnwatchTaskDetail sends an UnwatchTaskDetailCmd, best-effort.
func UnwatchTaskDetail(commands chan<- Command, taskID ids.ID, id uuid.UUID) {
	select {
	case commands <- UnwatchTaskDetailCmd{TaskID: taskID, ID: id}:
	default:
	}
}

// Pause sends a PauseCmd and waits for it to take effect or ctx to end.
func Pause(ctx context.Context, commands chan<- Command) error {
	return sendControl(ctx, commands, func(resp chan struct{}) Command { return PauseCmd{Resp: resp} })
}

// Resume sends a ResumeCmd and waits for it to take effect or ctx to end.
func Resume(ctx context.Context, commands chan<- Command) error {
	return sendControl(ctx, commands, func(resp chan struct{}) Command { return ResumeCmd{Resp: resp} })
}

func sendControl(ctx context.Context, commands chan<- Command, build func(chan struct{}) Command) error {
	resp := make(chan struct{})
	select {
	case commands <- build(resp):
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "send control command")
	case <-time.After(5 * time.Second):
		return errs.New("aggregator command channel full")
	}
	select {
	case <-resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
