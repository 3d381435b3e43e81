package model

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/store"
	"github.com/matheus3301/jewelchat/internal/tui/ui"
)

const (
	conversationPageSize = 200
	threadLimit          = 500
	searchLimit          = 50
)

// Backend is the daemon API the view model talks to. *client.Client
// satisfies it.
type Backend interface {
	GetStatus(ctx context.Context) (api.Status, error)
	SetCredentials(ctx context.Context, token, userID string, persist bool) error
	ListConversations(ctx context.Context, limit, offset int) (api.ConversationPage, error)
	OpenConversation(ctx context.Context, peer string, limit int) (api.Thread, error)
	GetConversation(ctx context.Context, peer string) (api.Thread, error)
	SendText(ctx context.Context, peer, text string) (chat.Message, error)
	Resend(ctx context.Context, peer, tempID string) (chat.Message, error)
	SearchMessages(ctx context.Context, query, peer string, limit int) ([]store.SearchResult, error)
}

// Change tells the app which parts of the screen an event touched.
type Change struct {
	Status        bool
	Conversations bool
	Thread        bool
	Flash         bool
}

// Any reports whether anything needs redrawing.
func (c Change) Any() bool {
	return c.Status || c.Conversations || c.Thread || c.Flash
}

// ViewModel caches daemon state for the views and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	backend       Backend
	status        api.Status
	conversations []store.Conversation
	thread        api.Thread
	activePeer    string
	Flash         *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a new view model backed by the daemon client.
func NewViewModel(b Backend) *ViewModel {
	return &ViewModel{
		backend:   b,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.backend.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	page, err := vm.backend.ListConversations(ctx, conversationPageSize, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = page.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Open loads the history of peer and makes it the active thread. A failed
// history load still opens the thread with what the daemon knows and raises
// a warning.
func (vm *ViewModel) Open(ctx context.Context, peer string) error {
	t, err := vm.backend.OpenConversation(ctx, peer, threadLimit)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.activePeer = peer
	vm.thread = t
	vm.mu.Unlock()
	if t.HistoryError != "" {
		vm.Flash.Warn("history unavailable: " + t.HistoryError)
	}
	vm.signalRefresh()
	return nil
}

// Close forgets the active thread.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.activePeer = ""
	vm.thread = api.Thread{}
	vm.mu.Unlock()
}

// ReloadThread refreshes the active thread from the daemon's memory.
func (vm *ViewModel) ReloadThread(ctx context.Context) error {
	peer := vm.ActivePeer()
	if peer == "" {
		return nil
	}
	t, err := vm.backend.GetConversation(ctx, peer)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activePeer == peer {
		vm.thread = t
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Send sends text to the active peer. Rejections surface as notify events
// from the daemon, so only transport errors are returned here.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	peer := vm.ActivePeer()
	if peer == "" {
		return nil
	}
	if _, err := vm.backend.SendText(ctx, peer, text); err != nil {
		return err
	}
	return vm.ReloadThread(ctx)
}

// ResendLast resends the newest unconfirmed message of the active thread.
// It returns false when there is nothing to resend.
func (vm *ViewModel) ResendLast(ctx context.Context) (bool, error) {
	peer := vm.ActivePeer()
	m, ok := LastUnconfirmed(vm.Messages())
	if peer == "" || !ok {
		return false, nil
	}
	if _, err := vm.backend.Resend(ctx, peer, m.ID); err != nil {
		return true, err
	}
	return true, vm.ReloadThread(ctx)
}

// Login binds the daemon to new credentials.
func (vm *ViewModel) Login(ctx context.Context, token, userID string, persist bool) error {
	if err := vm.backend.SetCredentials(ctx, token, userID, persist); err != nil {
		return err
	}
	return vm.LoadStatus(ctx)
}

// Logout clears the daemon's credentials.
func (vm *ViewModel) Logout(ctx context.Context) error {
	vm.Close()
	return vm.Login(ctx, "", "", false)
}

// Search runs a message search over the local mirror.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]store.SearchResult, error) {
	return vm.backend.SearchMessages(ctx, query, "", searchLimit)
}

// HandleEvent folds a daemon event into the cache and reports what changed.
func (vm *ViewModel) HandleEvent(ctx context.Context, e api.Event) Change {
	var ch Change
	switch {
	case e.Kind == bus.KindStatusChanged:
		ch.Status = vm.LoadStatus(ctx) == nil
		if e.To != "" {
			vm.Flash.Info("session " + strings.ToLower(e.To))
			ch.Flash = true
		}
	case e.Kind == bus.KindSocketConnected, e.Kind == bus.KindSocketDisconnected:
		ch.Status = vm.LoadStatus(ctx) == nil
	case e.Kind == bus.KindConversationUpdated:
		ch.Conversations = vm.LoadConversations(ctx) == nil
		if e.Peer != "" && e.Peer == vm.ActivePeer() {
			ch.Thread = vm.ReloadThread(ctx) == nil
		}
	case strings.HasPrefix(e.Kind, "notify."):
		text := e.Text
		if text == "" {
			text = e.Err
		}
		if text != "" {
			vm.Flash.Warn(text)
			ch.Flash = true
		}
	}
	return ch
}

// Status returns a snapshot of the daemon status.
func (vm *ViewModel) Status() api.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []store.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.conversations)
}

// Conversation returns the cached summary for peer.
func (vm *ViewModel) Conversation(peer string) (store.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.PeerID == peer {
			return c, true
		}
	}
	return store.Conversation{}, false
}

// ActivePeer returns the peer of the open thread, or empty.
func (vm *ViewModel) ActivePeer() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activePeer
}

// Thread returns a snapshot of the active thread.
func (vm *ViewModel) Thread() api.Thread {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Messages returns the active thread's messages in display order.
func (vm *ViewModel) Messages() []chat.Message {
	vm.mu.RLock()
	msgs := slices.Clone(vm.thread.Messages)
	vm.mu.RUnlock()
	SortMessages(msgs)
	return msgs
}

// SortMessages orders msgs oldest first. Equal timestamps keep arrival order.
func SortMessages(msgs []chat.Message) {
	slices.SortStableFunc(msgs, func(a, b chat.Message) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
}

// LastUnconfirmed returns the newest message still carrying a temporary id.
func LastUnconfirmed(msgs []chat.Message) (chat.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].Confirmed && chat.IsTemp(msgs[i].ID) {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}
