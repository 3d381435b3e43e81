package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/conversation"
	"github.com/matheus3301/jewelchat/internal/outbox"
	"github.com/matheus3301/jewelchat/internal/socket"
	"github.com/matheus3301/jewelchat/internal/status"
	"github.com/matheus3301/jewelchat/internal/store"
	intsync "github.com/matheus3301/jewelchat/internal/sync"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// DefaultWatchPrefixes are the event namespaces WatchEvents streams when the
// request names none.
var DefaultWatchPrefixes = []string{"session.", "conversation.", "notify.", "socket.connected", "socket.disconnected"}

// Sessions is the socket side of the daemon. *socket.Manager satisfies it.
type Sessions interface {
	SetCredentials(socket.Credentials) error
	Credentials() socket.Credentials
	State() status.State
	Generation() uint64
	Current() *socket.Session
}

// Conversations loads history. *sync.Engine satisfies it.
type Conversations interface {
	LoadConversation(ctx context.Context, peer string) error
	OpenPeers() []string
	ChatID(peer string) string
	LastHistoryLoad(peer string) (time.Time, bool)
}

// Messenger sends messages. *outbox.Sender satisfies it.
type Messenger interface {
	Send(ctx context.Context, peer, text string) (chat.Message, error)
	Resend(ctx context.Context, peer, tempID string) (chat.Message, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Profile       string
	Sessions      Sessions
	Conversations Conversations
	Messenger     Messenger
	Registry      *conversation.Registry
	DB            *store.DB
	Bus           *bus.Bus
	Logger        *zap.Logger
	// SaveCredentials persists credentials when a SetCredentials request
	// asks for it. Optional.
	SaveCredentials func(socket.Credentials) error
}

// Service implements ChatServer on top of the daemon components.
type Service struct {
	d         Deps
	startedAt time.Time
}

// NewService creates the chat service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{d: d, startedAt: time.Now()}
}

func (s *Service) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := Status{
		Profile:    s.d.Profile,
		State:      s.d.Sessions.State(),
		UserID:     s.d.Sessions.Credentials().UserID,
		Generation: s.d.Sessions.Generation(),
		UptimeMs:   time.Since(s.startedAt).Milliseconds(),
		OpenPeers:  s.d.Conversations.OpenPeers(),
	}
	if sess := s.d.Sessions.Current(); sess != nil {
		st.Connected = sess.Connected()
		st.RegisteredUserID = sess.RegisteredUserID()
	}
	if s.d.DB != nil {
		if convs, msgs, err := s.d.DB.Counts(); err == nil {
			st.Conversations, st.Messages = convs, msgs
		}
	}
	return st.toStruct()
}

func (s *Service) SetCredentials(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	creds := socket.Credentials{
		Token:  strings.TrimSpace(str(req, "token")),
		UserID: strings.TrimSpace(str(req, "userId")),
	}
	if (creds.Token == "") != (creds.UserID == "") {
		return nil, grpcstatus.Error(codes.InvalidArgument, "token and userId must be set together")
	}
	if err := s.d.Sessions.SetCredentials(creds); err != nil {
		if errors.Is(err, socket.ErrDisposed) {
			return nil, grpcstatus.Error(codes.Unavailable, "daemon is shutting down")
		}
		return nil, grpcstatus.Errorf(codes.Internal, "set credentials: %v", err)
	}
	if boolean(req, "persist") && s.d.SaveCredentials != nil {
		if err := s.d.SaveCredentials(creds); err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "save credentials: %v", err)
		}
	}
	s.d.Logger.Info("credentials updated", zap.String("user_id", creds.UserID), zap.Bool("valid", creds.Valid()))
	return &emptypb.Empty{}, nil
}

func (s *Service) ListConversations(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := pageSize(req)
	offset := int(num(req, "offset"))
	if offset < 0 {
		offset = 0
	}
	convs, err := s.d.DB.ListConversations(limit, offset)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list conversations: %v", err)
	}
	return ConversationPage{Conversations: convs, HasMore: len(convs) == limit}.toStruct()
}

// OpenConversation loads the history of a conversation and returns its
// merged message list. A failed load is not an RPC error: the thread comes
// back with whatever is known locally and HistoryError set.
func (s *Service) OpenConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	peer := strings.TrimSpace(str(req, "peer"))
	if peer == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer is required")
	}
	if !s.d.Sessions.Credentials().Valid() {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "no credentials configured")
	}

	var historyErr string
	if err := s.d.Conversations.LoadConversation(ctx, peer); err != nil {
		if ctx.Err() != nil {
			return nil, grpcstatus.FromContextError(ctx.Err()).Err()
		}
		historyErr = err.Error()
	}
	return s.thread(peer, int(num(req, "limit")), historyErr).toStruct()
}

// GetConversation returns the in-memory thread without contacting the backend.
func (s *Service) GetConversation(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	peer := strings.TrimSpace(req.GetValue())
	if peer == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer is required")
	}
	return s.thread(peer, 0, "").toStruct()
}

func (s *Service) thread(peer string, limit int, historyErr string) Thread {
	t := Thread{
		Peer:         peer,
		ChatID:       s.d.Conversations.ChatID(peer),
		HistoryError: historyErr,
	}
	if st, ok := s.d.Registry.Lookup(peer); ok {
		t.Messages = st.Messages()
	}
	if limit > 0 && len(t.Messages) > limit {
		t.Messages = t.Messages[len(t.Messages)-limit:]
	}
	if at, ok := s.d.Conversations.LastHistoryLoad(peer); ok {
		t.HistoryLoadMs = at.UnixMilli()
	}
	return t
}

func (s *Service) SendText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	msg, err := s.d.Messenger.Send(ctx, str(req, "peer"), str(req, "text"))
	if err != nil {
		return nil, sendError(err)
	}
	return messageStruct(msg)
}

func (s *Service) Resend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	msg, err := s.d.Messenger.Resend(ctx, str(req, "peer"), str(req, "tempId"))
	if err != nil {
		return nil, sendError(err)
	}
	return messageStruct(msg)
}

func (s *Service) SearchMessages(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query := strings.TrimSpace(str(req, "query"))
	if query == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	results, err := s.d.DB.SearchMessages(query, str(req, "peer"), pageSize(req))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}
	return searchResultsToStruct(results)
}

// WatchEvents streams bus events whose kind starts with one of the
// requested prefixes until the client goes away.
func (s *Service) WatchEvents(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	var prefixes []string
	for _, v := range list(req, "prefixes") {
		if p := v.GetStringValue(); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		prefixes = DefaultWatchPrefixes
	}

	ch, unsub := s.d.Bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if !hasAnyPrefix(evt.Kind, prefixes) {
				continue
			}
			out, err := s.toEvent(evt).toStruct()
			if err != nil {
				s.d.Logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *Service) toEvent(evt bus.Event) Event {
	e := Event{
		ID:           uuid.New().String(),
		Profile:      s.d.Profile,
		Kind:         evt.Kind,
		OccurredAtMs: evt.Timestamp.UnixMilli(),
	}
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		e.From, e.To = string(p.From), string(p.To)
	case intsync.Update:
		e.Peer, e.Reason = p.Peer, p.Reason
	case bus.Notice:
		e.Peer, e.Text, e.Err = p.Peer, p.Text, p.Err
	case socket.Event:
		e.UserID, e.Generation = p.UserID, p.Generation
	}
	return e
}

func sendError(err error) error {
	switch {
	case errors.Is(err, socket.ErrNotConnected):
		return grpcstatus.Errorf(codes.Unavailable, "%v", err)
	case errors.Is(err, outbox.ErrNoIdentity):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%v", err)
	case errors.Is(err, outbox.ErrNotPending):
		return grpcstatus.Errorf(codes.NotFound, "%v", err)
	case errors.Is(err, outbox.ErrInvalidMessage):
		return grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	default:
		return grpcstatus.Errorf(codes.Unavailable, "%v", err)
	}
}

func pageSize(req *structpb.Struct) int {
	limit := int(num(req, "limit"))
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func hasAnyPrefix(kind string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}
