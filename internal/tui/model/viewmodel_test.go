package model

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/status"
	"github.com/matheus3301/jewelchat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	status   api.Status
	convs    []store.Conversation
	threads  map[string]api.Thread
	sent     []string
	resent   []string
	creds    [][2]string
	sendErr  error
	getCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{threads: make(map[string]api.Thread)}
}

func (f *fakeBackend) GetStatus(context.Context) (api.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeBackend) SetCredentials(_ context.Context, token, userID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, [2]string{token, userID})
	f.status.UserID = userID
	return nil
}

func (f *fakeBackend) ListConversations(context.Context, int, int) (api.ConversationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.ConversationPage{Conversations: f.convs}, nil
}

func (f *fakeBackend) OpenConversation(_ context.Context, peer string, _ int) (api.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[peer]
	if !ok {
		return api.Thread{}, errors.New("unknown peer")
	}
	return t, nil
}

func (f *fakeBackend) GetConversation(_ context.Context, peer string) (api.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return f.threads[peer], nil
}

func (f *fakeBackend) SendText(_ context.Context, peer, text string) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return chat.Message{}, f.sendErr
	}
	f.sent = append(f.sent, text)
	m := chat.Message{ID: "me-1", FromUserID: "u1", ToUserID: peer, Text: text, Timestamp: 300}
	t := f.threads[peer]
	t.Messages = append(t.Messages, m)
	f.threads[peer] = t
	return m, nil
}

func (f *fakeBackend) Resend(_ context.Context, _, tempID string) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, tempID)
	return chat.Message{ID: tempID}, nil
}

func (f *fakeBackend) SearchMessages(_ context.Context, query, _ string, _ int) ([]store.SearchResult, error) {
	return []store.SearchResult{{PeerID: "p1", Snippet: query}}, nil
}

func TestOpenAndMessagesSorted(t *testing.T) {
	b := newFakeBackend()
	b.threads["p1"] = api.Thread{Peer: "p1", Messages: []chat.Message{
		{ID: "b", Timestamp: 200},
		{ID: "a", Timestamp: 100},
		{ID: "c", Timestamp: 200},
	}}
	vm := NewViewModel(b)

	require.NoError(t, vm.Open(context.Background(), "p1"))
	assert.Equal(t, "p1", vm.ActivePeer())

	var ids []string
	for _, m := range vm.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestOpenWithHistoryErrorWarns(t *testing.T) {
	b := newFakeBackend()
	b.threads["p1"] = api.Thread{Peer: "p1", HistoryError: "timeout"}
	vm := NewViewModel(b)

	require.NoError(t, vm.Open(context.Background(), "p1"))
	msg, ok := vm.Flash.Current()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "timeout")
}

func TestOpenUnknownPeerKeepsPreviousThread(t *testing.T) {
	b := newFakeBackend()
	b.threads["p1"] = api.Thread{Peer: "p1"}
	vm := NewViewModel(b)
	require.NoError(t, vm.Open(context.Background(), "p1"))

	assert.Error(t, vm.Open(context.Background(), "nobody"))
	assert.Equal(t, "p1", vm.ActivePeer())
}

func TestSendReloadsThread(t *testing.T) {
	b := newFakeBackend()
	b.threads["p1"] = api.Thread{Peer: "p1"}
	vm := NewViewModel(b)
	require.NoError(t, vm.Open(context.Background(), "p1"))

	require.NoError(t, vm.Send(context.Background(), "is the ring gold?"))
	assert.Equal(t, []string{"is the ring gold?"}, b.sent)
	require.Len(t, vm.Messages(), 1)
	assert.Equal(t, "me-1", vm.Messages()[0].ID)
}

func TestSendWithoutActivePeerIsNoop(t *testing.T) {
	b := newFakeBackend()
	vm := NewViewModel(b)
	require.NoError(t, vm.Send(context.Background(), "hello"))
	assert.Empty(t, b.sent)
}

func TestResendLast(t *testing.T) {
	b := newFakeBackend()
	b.threads["p1"] = api.Thread{Peer: "p1", Messages: []chat.Message{
		{ID: "me-1", Timestamp: 1, Failed: true},
		{ID: "srv-1", Timestamp: 2, Confirmed: true},
		{ID: "me-2", Timestamp: 3},
	}}
	vm := NewViewModel(b)
	require.NoError(t, vm.Open(context.Background(), "p1"))

	found, err := vm.ResendLast(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"me-2"}, b.resent)
}

func TestResendLastNothingPending(t *testing.T) {
	b := newFakeBackend()
	b.threads["p1"] = api.Thread{Peer: "p1", Messages: []chat.Message{{ID: "srv-1", Confirmed: true}}}
	vm := NewViewModel(b)
	require.NoError(t, vm.Open(context.Background(), "p1"))

	found, err := vm.ResendLast(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, b.resent)
}

func TestLoginAndLogout(t *testing.T) {
	b := newFakeBackend()
	vm := NewViewModel(b)

	require.NoError(t, vm.Login(context.Background(), "tok", "u1", true))
	assert.Equal(t, "u1", vm.Status().UserID)

	require.NoError(t, vm.Logout(context.Background()))
	assert.Equal(t, "", vm.Status().UserID)
	assert.Equal(t, [][2]string{{"tok", "u1"}, {"", ""}}, b.creds)
}

func TestHandleEvent(t *testing.T) {
	b := newFakeBackend()
	b.status = api.Status{State: status.Connected}
	b.convs = []store.Conversation{{PeerID: "p1"}, {PeerID: "p2"}}
	b.threads["p1"] = api.Thread{Peer: "p1"}
	vm := NewViewModel(b)
	ctx := context.Background()
	require.NoError(t, vm.Open(ctx, "p1"))

	t.Run("conversation update for active peer", func(t *testing.T) {
		before := b.getCalls
		ch := vm.HandleEvent(ctx, api.Event{Kind: bus.KindConversationUpdated, Peer: "p1"})
		assert.True(t, ch.Conversations)
		assert.True(t, ch.Thread)
		assert.Equal(t, before+1, b.getCalls)
		assert.Len(t, vm.Conversations(), 2)
	})

	t.Run("conversation update for other peer", func(t *testing.T) {
		ch := vm.HandleEvent(ctx, api.Event{Kind: bus.KindConversationUpdated, Peer: "p2"})
		assert.True(t, ch.Conversations)
		assert.False(t, ch.Thread)
	})

	t.Run("status change", func(t *testing.T) {
		ch := vm.HandleEvent(ctx, api.Event{Kind: bus.KindStatusChanged, From: "CONNECTING", To: "CONNECTED"})
		assert.True(t, ch.Status)
		assert.True(t, ch.Flash)
		assert.Equal(t, status.Connected, vm.Status().State)
	})

	t.Run("send failure notice", func(t *testing.T) {
		ch := vm.HandleEvent(ctx, api.Event{Kind: bus.KindNotifySendFailed, Peer: "p1", Text: "message not sent: offline"})
		assert.True(t, ch.Flash)
		msg, ok := vm.Flash.Current()
		require.True(t, ok)
		assert.Equal(t, "message not sent: offline", msg.Text)
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.False(t, vm.HandleEvent(ctx, api.Event{Kind: "socket.message"}).Any())
	})
}

func TestLastUnconfirmed(t *testing.T) {
	_, ok := LastUnconfirmed(nil)
	assert.False(t, ok)

	m, ok := LastUnconfirmed([]chat.Message{{ID: "me-a"}, {ID: "me-b", Confirmed: true}, {ID: "x"}})
	require.True(t, ok)
	assert.Equal(t, "me-a", m.ID)
}
