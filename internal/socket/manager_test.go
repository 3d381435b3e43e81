package socket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/status"
)

type fakeDialer struct {
	mu    sync.Mutex
	dials []Credentials
	made  []*fakeTransport
}

func (d *fakeDialer) dial(c Credentials) Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	ft := newFakeTransport()
	d.dials = append(d.dials, c)
	d.made = append(d.made, ft)
	return ft
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.made[len(d.made)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.made)
}

func newTestManager(t *testing.T) (*Manager, *fakeDialer, *bus.Bus) {
	t.Helper()
	d := &fakeDialer{}
	b := bus.New()
	m := NewManager(d.dial, b, zap.NewNop())
	t.Cleanup(m.Close)
	return m, d, b
}

func nextEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestManagerRequiresBothCredentials(t *testing.T) {
	m, d, _ := newTestManager(t)

	require.NoError(t, m.SetCredentials(Credentials{Token: "tok"}))
	require.NoError(t, m.SetCredentials(Credentials{UserID: "u1"}))

	assert.Zero(t, d.count())
	assert.Nil(t, m.Current())
	assert.Equal(t, status.Uninitialized, m.State())
	assert.ErrorIs(t, m.SendMessage(OutgoingMessage{Text: "x"}), ErrNotConnected)
}

func TestManagerSameCredentialsIsNoop(t *testing.T) {
	m, d, _ := newTestManager(t)

	require.NoError(t, m.SetCredentials(testCreds))
	first := m.Current()
	require.NoError(t, m.SetCredentials(testCreds))

	assert.Equal(t, 1, d.count())
	assert.Same(t, first, m.Current())
	assert.Equal(t, uint64(1), m.Generation())
}

func TestManagerCredentialChangeTearsDown(t *testing.T) {
	m, d, _ := newTestManager(t)

	require.NoError(t, m.SetCredentials(testCreds))
	oldTransport := d.last()
	old := m.Current()

	require.NoError(t, m.SetCredentials(Credentials{Token: "tok", UserID: "u2"}))

	assert.True(t, oldTransport.closed)
	assert.Zero(t, oldTransport.handlerCount())
	assert.Equal(t, status.Uninitialized, old.State())
	assert.NotSame(t, old, m.Current())
	assert.Equal(t, "u2", m.Credentials().UserID)
	assert.Equal(t, uint64(2), m.Generation())
}

func TestManagerClearingCredentialsTearsDown(t *testing.T) {
	m, d, _ := newTestManager(t)
	require.NoError(t, m.SetCredentials(testCreds))

	require.NoError(t, m.SetCredentials(Credentials{}))

	assert.True(t, d.last().closed)
	assert.Nil(t, m.Current())
}

func TestManagerRepublishesEvents(t *testing.T) {
	m, d, b := newTestManager(t)
	ch, unsub := b.Subscribe("socket.", 10)
	defer unsub()

	require.NoError(t, m.SetCredentials(testCreds))
	ft := d.last()
	ft.setUp(true)

	evt := nextEvent(t, ch)
	assert.Equal(t, bus.KindSocketConnected, evt.Kind)
	se := evt.Payload.(Event)
	assert.Equal(t, uint64(1), se.Generation)
	assert.Equal(t, "u1", se.UserID)

	ft.fire(EventReceiveMessage, map[string]any{"id": "m1", "fromId": "p", "text": "hi"})
	evt = nextEvent(t, ch)
	assert.Equal(t, bus.KindSocketMessage, evt.Kind)
	assert.Equal(t, "m1", evt.Payload.(Event).Message.ID)

	ft.fire(EventChatCreated, map[string]any{"chatId": "c1"})
	evt = nextEvent(t, ch)
	assert.Equal(t, bus.KindSocketChatCreated, evt.Kind)
	assert.Equal(t, "c1", evt.Payload.(Event).Message.ChatID)

	ft.setUp(false)
	evt = nextEvent(t, ch)
	assert.Equal(t, bus.KindSocketDisconnected, evt.Kind)
}

func TestManagerStaleSessionIsSilent(t *testing.T) {
	m, d, b := newTestManager(t)
	require.NoError(t, m.SetCredentials(testCreds))
	stale := d.last()
	var captured []Handler
	stale.mu.Lock()
	for _, h := range stale.handlers[EventReceiveMessage] {
		captured = append(captured, h)
	}
	stale.mu.Unlock()

	require.NoError(t, m.SetCredentials(Credentials{Token: "t2", UserID: "u2"}))

	ch, unsub := b.Subscribe("socket.", 10)
	defer unsub()
	for _, h := range captured {
		h(map[string]any{"text": "late"})
	}

	select {
	case evt := <-ch:
		t.Errorf("stale session published %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManagerSendMessage(t *testing.T) {
	m, d, _ := newTestManager(t)
	require.NoError(t, m.SetCredentials(testCreds))

	assert.ErrorIs(t, m.SendMessage(OutgoingMessage{Text: "early"}), ErrNotConnected)

	d.last().setUp(true)
	require.NoError(t, m.SendMessage(OutgoingMessage{FromUserID: "u1", ToUserID: "p", Text: "now"}))
	assert.Len(t, d.last().emitted(), 2)
}

func TestManagerClose(t *testing.T) {
	m, d, _ := newTestManager(t)
	require.NoError(t, m.SetCredentials(testCreds))

	m.Close()

	assert.True(t, d.last().closed)
	assert.Nil(t, m.Current())
	assert.ErrorIs(t, m.SetCredentials(testCreds), ErrDisposed)
}
