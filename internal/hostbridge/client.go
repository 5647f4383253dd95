package hostbridge

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a Host service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without transport security; the host service is
// expected on loopback or a trusted network.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial host service %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in any) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetState(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetState", &emptypb.Empty{})
}

func (c *Client) Play(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "Play", &emptypb.Empty{})
}

func (c *Client) Stop(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "Stop", &emptypb.Empty{})
}

func (c *Client) NextTrial(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "NextTrial", &emptypb.Empty{})
}

func (c *Client) PrevTrial(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "PrevTrial", &emptypb.Empty{})
}

func (c *Client) GotoTrial(ctx context.Context, n int) (*structpb.Struct, error) {
	return c.invoke(ctx, "GotoTrial", wrapperspb.Int32(int32(n)))
}

// Events opens the notification stream. It ends when ctx is cancelled.
func (c *Client) Events(ctx context.Context) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("Events"))
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
