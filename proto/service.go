package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/asyncwatch/console/proto/jsoncodec"
)

// ServiceName is the Instrument service's fully qualified name (spec
// §6.2). This reimplementation is not wire-compatible with the
// original Rust service of a similar name (different codec, see
// jsoncodec), so it is named for this module rather than claiming the
// upstream identifier.
const ServiceName = "console.instrument.Instrument"

// callOpt is the grpc.CallOption every client call on this service
// must pass so the jsoncodec (not grpc-go's built-in proto codec,
// which our hand-written message structs don't implement) is selected.
func callOpt() grpc.CallOption { return grpc.CallContentSubtype(jsoncodec.Name) }

// InstrumentServer is the server-side contract for the Instrument
// service (spec §4.G, §6.2).
type InstrumentServer interface {
	WatchUpdates(*InstrumentRequest, Instrument_WatchUpdatesServer) error
	WatchTaskDetails(*TaskDetailsRequest, Instrument_WatchTaskDetailsServer) error
	Pause(context.Context, *PauseRequest) (*PauseResponse, error)
	Resume(context.Context, *ResumeRequest) (*ResumeResponse, error)
}

// UnimplementedInstrumentServer can be embedded by a server
// implementation to satisfy InstrumentServer for methods it hasn't
// (yet) implemented, the same forward-compatibility convention
// protoc-gen-go-grpc generates.
type UnimplementedInstrumentServer struct{}

func (UnimplementedInstrumentServer) WatchUpdates(*InstrumentRequest, Instrument_WatchUpdatesServer) error {
	return status.Error(codes.Unimplemented, "method WatchUpdates not implemented")
}
func (UnimplementedInstrumentServer) WatchTaskDetails(*TaskDetailsRequest, Instrument_WatchTaskDetailsServer) error {
	return status.Error(codes.Unimplemented, "method WatchTaskDetails not implemented")
}
func (UnimplementedInstrumentServer) Pause(context.Context, *PauseRequest) (*PauseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Pause not implemented")
}
func (UnimplementedInstrumentServer) Resume(context.Context, *ResumeRequest) (*ResumeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Resume not implemented")
}

// Instrument_WatchUpdatesServer is the server-side handle for one
// WatchUpdates stream.
type Instrument_WatchUpdatesServer interface {
	Send(*Update) error
	grpc.ServerStream
}

type instrumentWatchUpdatesServer struct{ grpc.ServerStream }

func (s *instrumentWatchUpdatesServer) Send(m *Update) error { return s.ServerStream.SendMsg(m) }

// Instrument_WatchTaskDetailsServer is the server-side handle for one
// WatchTaskDetails stream.
type Instrument_WatchTaskDetailsServer interface {
	Send(*TaskDetails) error
	grpc.ServerStream
}

type instrumentWatchTaskDetailsServer struct{ grpc.ServerStream }

func (s *instrumentWatchTaskDetailsServer) Send(m *TaskDetails) error { return s.ServerStream.SendMsg(m) }

func registerInstrumentServer(s grpc.ServiceRegistrar, srv InstrumentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RegisterInstrumentServer registers srv on s under the Instrument
// service descriptor.
func RegisterInstrumentServer(s grpc.ServiceRegistrar, srv InstrumentServer) {
	registerInstrumentServer(s, srv)
}

func handleWatchUpdates(srv any, stream grpc.ServerStream) error {
	m := new(InstrumentRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(InstrumentServer).WatchUpdates(m, &instrumentWatchUpdatesServer{stream})
}

func handleWatchTaskDetails(srv any, stream grpc.ServerStream) error {
	m := new(TaskDetailsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(InstrumentServer).WatchTaskDetails(m, &instrumentWatchTaskDetailsServer{stream})
}

func handlePause(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PauseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InstrumentServer).Pause(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Pause"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InstrumentServer).Pause(ctx, req.(*PauseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleResume(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ResumeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InstrumentServer).Resume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Resume"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InstrumentServer).Resume(ctx, req.(*ResumeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc a protoc-gen-go-grpc run would
// otherwise generate, written by hand against the message shapes above.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InstrumentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Pause", Handler: handlePauseDesc},
		{MethodName: "Resume", Handler: handleResumeDesc},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchUpdates", Handler: handleWatchUpdates, ServerStreams: true},
		{StreamName: "WatchTaskDetails", Handler: handleWatchTaskDetails, ServerStreams: true},
	},
	Metadata: "console/instrument.proto",
}

func handlePauseDesc(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return handlePause(srv, ctx, dec, interceptor)
}

func handleResumeDesc(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return handleResume(srv, ctx, dec, interceptor)
}

// InstrumentClient is the client-side contract for the Instrument
// service (spec §4.H).
type InstrumentClient interface {
	WatchUpdates(ctx context.Context, in *InstrumentRequest, opts ...grpc.CallOption) (Instrument_WatchUpdatesClient, error)
	WatchTaskDetails(ctx context.Context, in *TaskDetailsRequest, opts ...grpc.CallOption) (Instrument_WatchTaskDetailsClient, error)
	Pause(ctx context.Context, in *PauseRequest, opts ...grpc.CallOption) (*PauseResponse, error)
	Resume(ctx context.Context, in *ResumeRequest, opts ...grpc.CallOption) (*ResumeResponse, error)
}

type instrumentClient struct {
	cc grpc.ClientConnInterface
}

// NewInstrumentClient wraps cc with the Instrument service's client
// methods.
func NewInstrumentClient(cc grpc.ClientConnInterface) InstrumentClient {
	return &instrumentClient{cc: cc}
}

// Instrument_WatchUpdatesClient is the client-side handle for a
// WatchUpdates stream.
type Instrument_WatchUpdatesClient interface {
	Recv() (*Update, error)
	grpc.ClientStream
}

type instrumentWatchUpdatesClient struct{ grpc.ClientStream }

func (c *instrumentWatchUpdatesClient) Recv() (*Update, error) {
	m := new(Update)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *instrumentClient) WatchUpdates(ctx context.Context, in *InstrumentRequest, opts ...grpc.CallOption) (Instrument_WatchUpdatesClient, error) {
	opts = append(opts, callOpt())
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ServiceName+"/WatchUpdates", opts...)
	if err != nil {
		return nil, err
	}
	x := &instrumentWatchUpdatesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Instrument_WatchTaskDetailsClient is the client-side handle for a
// WatchTaskDetails stream.
type Instrument_WatchTaskDetailsClient interface {
	Recv() (*TaskDetails, error)
	grpc.ClientStream
}

type instrumentWatchTaskDetailsClient struct{ grpc.ClientStream }

func (c *instrumentWatchTaskDetailsClient) Recv() (*TaskDetails, error) {
	m := new(TaskDetails)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *instrumentClient) WatchTaskDetails(ctx context.Context, in *TaskDetailsRequest, opts ...grpc.CallOption) (Instrument_WatchTaskDetailsClient, error) {
	opts = append(opts, callOpt())
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], ServiceName+"/WatchTaskDetails", opts...)
	if err != nil {
		return nil, err
	}
	x := &instrumentWatchTaskDetailsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *instrumentClient) Pause(ctx context.Context, in *PauseRequest, opts ...grpc.CallOption) (*PauseResponse, error) {
	opts = append(opts, callOpt())
	out := new(PauseResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Pause", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *instrumentClient) Resume(ctx context.Context, in *ResumeRequest, opts ...grpc.CallOption) (*ResumeResponse, error) {
	opts = append(opts, callOpt())
	out := new(ResumeResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Resume", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
