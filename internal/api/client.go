package api

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/store"
)

// Client is a typed client for the chat service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a gRPC connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetStatus returns the daemon status.
func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetStatus, &emptypb.Empty{}, out); err != nil {
		return Status{}, err
	}
	return statusFromStruct(out), nil
}

// SetCredentials binds the daemon to a new identity. Empty token and
// userID log out. With persist the credentials are stored in the profile.
func (c *Client) SetCredentials(ctx context.Context, token, userID string, persist bool) error {
	in, err := structpb.NewStruct(map[string]any{"token": token, "userId": userID, "persist": persist})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, MethodSetCredentials, in, &emptypb.Empty{})
}

// ListConversations returns one page of conversation summaries.
func (c *Client) ListConversations(ctx context.Context, limit, offset int) (ConversationPage, error) {
	in, err := structpb.NewStruct(map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		return ConversationPage{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListConversations, in, out); err != nil {
		return ConversationPage{}, err
	}
	return conversationPageFromStruct(out), nil
}

// OpenConversation loads history for peer and returns the merged thread,
// keeping the last limit messages (0 means all).
func (c *Client) OpenConversation(ctx context.Context, peer string, limit int) (Thread, error) {
	in, err := structpb.NewStruct(map[string]any{"peer": peer, "limit": limit})
	if err != nil {
		return Thread{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodOpenConversation, in, out); err != nil {
		return Thread{}, err
	}
	return threadFromStruct(out), nil
}

// GetConversation returns the thread for peer as the daemon holds it.
func (c *Client) GetConversation(ctx context.Context, peer string) (Thread, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetConversation, wrapperspb.String(peer), out); err != nil {
		return Thread{}, err
	}
	return threadFromStruct(out), nil
}

// SendText sends text to peer and returns the optimistic entry.
func (c *Client) SendText(ctx context.Context, peer, text string) (chat.Message, error) {
	in, err := structpb.NewStruct(map[string]any{"peer": peer, "text": text})
	if err != nil {
		return chat.Message{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodSendText, in, out); err != nil {
		return chat.Message{}, err
	}
	return messageFromStruct(out), nil
}

// Resend emits a pending message again.
func (c *Client) Resend(ctx context.Context, peer, tempID string) (chat.Message, error) {
	in, err := structpb.NewStruct(map[string]any{"peer": peer, "tempId": tempID})
	if err != nil {
		return chat.Message{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodResend, in, out); err != nil {
		return chat.Message{}, err
	}
	return messageFromStruct(out), nil
}

// SearchMessages searches the local mirror. An empty peer searches all
// conversations.
func (c *Client) SearchMessages(ctx context.Context, query, peer string, limit int) ([]store.SearchResult, error) {
	in, err := structpb.NewStruct(map[string]any{"query": query, "peer": peer, "limit": limit})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodSearchMessages, in, out); err != nil {
		return nil, err
	}
	return searchResultsFromStruct(out), nil
}

// WatchEvents calls fn for every event until ctx is done, the stream ends
// or fn returns an error. Without prefixes DefaultWatchPrefixes apply.
func (c *Client) WatchEvents(ctx context.Context, prefixes []string, fn func(Event) error) error {
	list := make([]any, 0, len(prefixes))
	for _, p := range prefixes {
		list = append(list, p)
	}
	in, err := structpb.NewStruct(map[string]any{"prefixes": list})
	if err != nil {
		return err
	}

	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchEvents)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(eventFromStruct(out)); err != nil {
			return err
		}
	}
}
