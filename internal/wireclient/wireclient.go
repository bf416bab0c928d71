// Package wireclient implements the reconnecting gRPC connection client
// (spec §4.H): a state machine oscillating between Connected and
// Disconnected{backoff}, wrapping unary calls in a retry that
// distinguishes transport errors (reconnect) from server-side statuses
// (propagate), grounded on the teacher's domains/grpc/client.go dial/
// reconnect loop.
package wireclient

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/asyncwatch/console/internal/errs"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/internal/transport"
	"github.com/asyncwatch/console/proto"
)

const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 5 * time.Second
)

// State is the connection's current phase, surfaced so a UI status bar
// can render it without reaching into connection internals.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

// UpdateHandler is called for every Update received on the WatchUpdates
// stream.
type UpdateHandler func(*proto.Update)

// Connection maintains one logical subscription to an Instrument
// server, transparently reconnecting with additive backoff on any
// transport failure (spec §4.H). All exported methods are safe for
// concurrent use; only one WatchUpdates loop should run per Connection.
type Connection struct {
	target string

	mu      sync.RWMutex
	state   State
	backoff time.Duration
	cc      *grpc.ClientConn
	client  proto.InstrumentClient
}

// New creates a Connection targeting uri (one of the schemes
// internal/transport resolves: http://, file://, vsock://).
func New(uri string) *Connection {
	return &Connection{target: uri, backoff: baseBackoff}
}

// State reports the connection's current phase.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// dial establishes (or re-establishes) the underlying gRPC connection.
func (c *Connection) dial(ctx context.Context) error {
	dialer, err := transport.Dialer(c.target)
	if err != nil {
		return err
	}
	cc, err := grpc.NewClient("passthrough:///"+c.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	if err != nil {
		return errs.Wrapf(err, "dial %s", c.target)
	}

	c.mu.Lock()
	c.cc = cc
	c.client = proto.NewInstrumentClient(cc)
	c.mu.Unlock()
	return nil
}

func (c *Connection) clientConn() (proto.InstrumentClient, *grpc.ClientConn) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client, c.cc
}

// Run drives the reconnect loop, invoking onUpdate for every message
// received on the WatchUpdates stream. It blocks until ctx is
// cancelled; transport failures reset the stream and back off rather
// than returning.
func (c *Connection) Run(ctx context.Context, onUpdate UpdateHandler) error {
	log := logging.Named("wireclient")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.dial(ctx); err != nil {
			log.Warnw("dial failed", logging.FieldError, err.Error())
			if !c.sleepBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		client, _ := c.clientConn()
		stream, err := client.WatchUpdates(ctx, &proto.InstrumentRequest{})
		if err != nil {
			log.Warnw("watch updates failed", logging.FieldError, err.Error())
			if !c.sleepBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.setState(StateConnected)
		c.resetBackoff()
		log.Infow("connected", logging.FieldAddr, c.target)

		streamErr := c.readLoop(stream, onUpdate)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnw("stream ended, reconnecting", logging.FieldError, streamErr)
		if !c.sleepBackoff(ctx) {
			return ctx.Err()
		}
	}
}

func (c *Connection) readLoop(stream proto.Instrument_WatchUpdatesClient, onUpdate UpdateHandler) error {
	for {
		u, err := stream.Recv()
		if err != nil {
			return err
		}
		onUpdate(u)
	}
}

func (c *Connection) resetBackoff() {
	c.mu.Lock()
	c.backoff = baseBackoff
	c.mu.Unlock()
}

// sleepBackoff sleeps the current backoff (growing additively toward
// maxBackoff for next time), returning false if ctx ends first.
func (c *Connection) sleepBackoff(ctx context.Context) bool {
	c.mu.Lock()
	d := c.backoff
	next := c.backoff + baseBackoff
	if next > maxBackoff {
		next = maxBackoff
	}
	c.backoff = next
	c.state = StateDisconnected
	c.mu.Unlock()

	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// transportFailed reports whether err looks like a connectivity problem
// (as opposed to a well-formed server-side status) (spec §4.H, §7
// "distinguishes transport errors (reconnect) from server-side
// statuses (propagate)"): either a non-status error, or the Unavailable
// status grpc-go reports when it cannot reach the server.
func transportFailed(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	return !ok || st.Code() == codes.Unavailable
}

// retryUnary wraps a unary RPC call, reconnecting and retrying once on
// a transport-shaped error; a server-side grpc.Status is returned to
// the caller unchanged.
func (c *Connection) retryUnary(ctx context.Context, call func(proto.InstrumentClient) error) error {
	client, _ := c.clientConn()
	if client == nil {
		if err := c.dial(ctx); err != nil {
			return err
		}
		client, _ = c.clientConn()
	}

	err := call(client)
	if err == nil || !transportFailed(err) {
		return err
	}

	if err := c.dial(ctx); err != nil {
		return err
	}
	client, _ = c.clientConn()
	return call(client)
}

// Pause issues a Pause RPC, retrying once across a reconnect.
func (c *Connection) Pause(ctx context.Context) error {
	return c.retryUnary(ctx, func(cl proto.InstrumentClient) error {
		_, err := cl.Pause(ctx, &proto.PauseRequest{})
		return err
	})
}

// Resume issues a Resume RPC, retrying once across a reconnect.
func (c *Connection) Resume(ctx context.Context) error {
	return c.retryUnary(ctx, func(cl proto.InstrumentClient) error {
		_, err := cl.Resume(ctx, &proto.ResumeRequest{})
		return err
	})
}

// WatchTaskDetails opens a per-task histogram stream, invoking onDetail
// for every message until the task is no longer tracked (the server
// closes the stream) or ctx ends.
func (c *Connection) WatchTaskDetails(ctx context.Context, taskID uint64, onDetail func(*proto.TaskDetails)) error {
	client, _ := c.clientConn()
	if client == nil {
		if err := c.dial(ctx); err != nil {
			return err
		}
		client, _ = c.clientConn()
	}

	stream, err := client.WatchTaskDetails(ctx, &proto.TaskDetailsRequest{ID: taskID})
	if err != nil {
		return err
	}
	for {
		d, err := stream.Recv()
		if err != nil {
			return err
		}
		onDetail(d)
	}
}

// Close tears down the underlying gRPC connection, if any.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}
