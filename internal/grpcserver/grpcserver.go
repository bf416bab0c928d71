// Package grpcserver implements the Instrument service's server side
// (spec §4.G, §6.2): a thin adapter translating gRPC stream lifecycles
// into aggregator.Command values, and forwarding the resulting watcher
// channels back onto the stream. It holds no state of its own beyond
// the aggregator's command channel.
package grpcserver

import (
	"context"

	"github.com/asyncwatch/console/internal/aggregator"
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/proto"
)

// Server implements proto.InstrumentServer against a running
// aggregator, reached only through its command channel (spec §5
// "Watcher list: owned by aggregator exclusively" — this type never
// touches aggregator-internal stores directly).
type Server struct {
	proto.UnimplementedInstrumentServer

	commands chan<- aggregator.Command
}

// New wraps commands, the control-plane channel returned by
// (*aggregator.Aggregator).Commands.
func New(commands chan<- aggregator.Command) *Server {
	return &Server{commands: commands}
}

// WatchUpdates subscribes a new watcher and forwards every Update it
// receives onto stream, until the client disconnects or the watcher is
// dropped for backpressure (spec §4.F, §7 WatcherDisconnected).
func (s *Server) WatchUpdates(_ *proto.InstrumentRequest, stream proto.Instrument_WatchUpdatesServer) error {
	log := logging.Named("grpcserver")
	ctx := stream.Context()

	w, err := aggregator.Subscribe(ctx, s.commands)
	if err != nil {
		return err
	}
	defer aggregator.Unsubscribe(s.commands, w.ID)

	log.Debugw("watcher attached", logging.FieldWatcherID, w.ID)
	defer log.Debugw("watcher detached", logging.FieldWatcherID, w.ID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-w.Updates():
			if !ok {
				// Aggregator dropped us: queue was full (too slow a
				// reader) or the aggregator itself is shutting down.
				return nil
			}
			if err := stream.Send(u); err != nil {
				return err
			}
		}
	}
}

// WatchTaskDetails subscribes to one task's histogram stream, ending
// when the task is no longer tracked (its DetailWatcher is closed by
// the aggregator) or the client disconnects.
func (s *Server) WatchTaskDetails(req *proto.TaskDetailsRequest, stream proto.Instrument_WatchTaskDetailsServer) error {
	ctx := stream.Context()
	taskID := ids.ID{Kind: ids.KindTask, Value: req.ID}

	dw, err := aggregator.WatchTaskDetail(ctx, s.commands, taskID)
	if err != nil {
		return err
	}
	defer aggregator.UnwatchTaskDetail(s.commands, taskID, dw.ID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-dw.Updates():
			if !ok {
				return nil
			}
			if err := stream.Send(d); err != nil {
				return err
			}
		}
	}
}

// Pause suppresses aggregator publish ticks (spec §4.F).
func (s *Server) Pause(ctx context.Context, _ *proto.PauseRequest) (*proto.PauseResponse, error) {
	if err := aggregator.Pause(ctx, s.commands); err != nil {
		return nil, err
	}
	return &proto.PauseResponse{}, nil
}

// Resume re-enables aggregator publish ticks.
func (s *Server) Resume(ctx context.Context, _ *proto.ResumeRequest) (*proto.ResumeResponse, error) {
	if err := aggregator.Resume(ctx, s.commands); err != nil {
		return nil, err
	}
	return &proto.ResumeResponse{}, nil
}
