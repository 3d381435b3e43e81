package daemon

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryGuardRecoversPanic(t *testing.T) {
	guard := unaryGuard(zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/jewelchat.v1.ChatService/GetStatus"}

	resp, err := guard(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if resp != nil {
		t.Errorf("resp = %v, want nil", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestUnaryGuardPassesThrough(t *testing.T) {
	guard := unaryGuard(zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/jewelchat.v1.ChatService/SendText"}
	want := status.Error(codes.Unavailable, "not connected")

	resp, err := guard(context.Background(), "req", info, func(_ context.Context, req any) (any, error) {
		return req, want
	})
	if resp != "req" || !errors.Is(err, want) {
		t.Errorf("guard() = %v, %v", resp, err)
	}
}

func TestStreamGuardRecoversPanic(t *testing.T) {
	guard := streamGuard(zap.NewNop())
	info := &grpc.StreamServerInfo{FullMethod: "/jewelchat.v1.ChatService/WatchEvents", IsServerStream: true}

	err := guard(nil, nil, info, func(any, grpc.ServerStream) error {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}
