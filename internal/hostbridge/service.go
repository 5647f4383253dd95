package hostbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/trialviewer/internal/playback"
	"github.com/banshee-data/trialviewer/internal/trials"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "trialviewer.v1.Host"

// HostServer is the server API for the Host service. Every unary call returns
// the playback snapshot taken after the command.
type HostServer interface {
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Play(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	NextTrial(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PrevTrial(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GotoTrial(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	Events(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryMethod[Req any](name string, call func(HostServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(HostServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HostServer).Events(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the Host service for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HostServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetState", HostServer.GetState),
		unaryMethod("Play", HostServer.Play),
		unaryMethod("Stop", HostServer.Stop),
		unaryMethod("NextTrial", HostServer.NextTrial),
		unaryMethod("PrevTrial", HostServer.PrevTrial),
		unaryMethod("GotoTrial", HostServer.GotoTrial),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "trialviewer/v1/host.proto",
}

// Server implements HostServer over a playback controller.
type Server struct {
	ctrl playback.Controller
	pub  *Publisher

	// stopping ends open Events streams, which GracefulStop would wait on.
	stopping chan struct{}
	stopOnce sync.Once
}

var _ HostServer = (*Server)(nil)

// NewServer returns a server driving ctrl and streaming pub's events.
func NewServer(ctrl playback.Controller, pub *Publisher) *Server {
	return &Server{ctrl: ctrl, pub: pub, stopping: make(chan struct{})}
}

// Register adds the Host service to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&ServiceDesc, s)
}

// Serve runs a gRPC server on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	s.Register(gs)

	go func() {
		<-ctx.Done()
		s.stopOnce.Do(func() { close(s.stopping) })
		gs.GracefulStop()
	}()

	logf("gRPC host service listening on %s", lis.Addr())
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	logf("gRPC host service stopped (%s)", s.pub.Stats())
	return nil
}

func (s *Server) command(ctx context.Context, name string, fn func(context.Context) error) (*structpb.Struct, error) {
	if err := fn(ctx); err != nil {
		logf("%s: %v", name, err)
		return nil, statusError(err)
	}
	return snapshotStruct(s.ctrl.Snapshot())
}

func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return snapshotStruct(s.ctrl.Snapshot())
}

func (s *Server) Play(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "Play", s.ctrl.Play)
}

func (s *Server) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "Stop", s.ctrl.Stop)
}

func (s *Server) NextTrial(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "NextTrial", s.ctrl.NextTrial)
}

func (s *Server) PrevTrial(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "PrevTrial", s.ctrl.PrevTrial)
}

func (s *Server) GotoTrial(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	n := int(req.GetValue())
	return s.command(ctx, "GotoTrial", func(ctx context.Context) error {
		return s.ctrl.GotoTrial(ctx, n)
	})
}

// Events streams host notifications until the client goes away.
func (s *Server) Events(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	events, cancel := s.pub.Subscribe()
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopping:
			return status.Error(codes.Unavailable, "host service shutting down")
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := eventStruct(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func statusError(err error) error {
	switch {
	case errors.Is(err, trials.ErrTrialOutOfRange):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, playback.ErrNavigationBoundary), errors.Is(err, playback.ErrNotLoaded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, playback.ErrRunnerStopped):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// snapshotStruct carries the snapshot in its JSON shape.
func snapshotStruct(snap playback.Snapshot) (*structpb.Struct, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func eventStruct(ev Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"seq":  ev.Seq,
		"kind": ev.Kind,
	}
	switch ev.Kind {
	case KindTimeUpdated:
		fields["time"] = ev.Time
	case KindTrialChanged:
		fields["trial_no"] = ev.TrialNo
	}
	return structpb.NewStruct(fields)
}

// EventFromStruct decodes an Events stream message.
func EventFromStruct(s *structpb.Struct) Event {
	f := s.GetFields()
	return Event{
		Seq:     uint64(f["seq"].GetNumberValue()),
		Kind:    f["kind"].GetStringValue(),
		Time:    f["time"].GetNumberValue(),
		TrialNo: int(f["trial_no"].GetNumberValue()),
	}
}
