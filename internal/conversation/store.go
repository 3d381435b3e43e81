package conversation

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/jewelchat/internal/chat"
)

// DefaultMatchWindow is how far apart an echo and its optimistic entry may be
// when they are matched on sender and text alone.
const DefaultMatchWindow = 10 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithMatchWindow sets the tolerance for heuristic echo matching.
func WithMatchWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithClock replaces the wall clock used for optimistic ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type entry struct {
	msg     chat.Message
	seq     uint64
	created time.Time
}

// Store is the ordered, de-duplicated message list of one conversation.
// Messages are kept sorted by timestamp, ties broken by arrival order.
type Store struct {
	mu      sync.Mutex
	peer    string
	window  time.Duration
	now     func() time.Time
	entries []entry
	seq     uint64
}

// NewStore creates an empty store for the conversation with peer.
func NewStore(peer string, opts ...Option) *Store {
	s := &Store{
		peer:   peer,
		window: DefaultMatchWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Peer returns the remote participant of this conversation.
func (s *Store) Peer() string { return s.peer }

// AddOptimistic appends a local, unconfirmed entry and returns it. Its id is
// "me-<millis>", suffixed with "-<n>" if that id is already taken.
func (s *Store) AddOptimistic(from, to, text string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ms := now.UnixMilli()
	id := chat.TempIDPrefix + strconv.FormatInt(ms, 10)
	for n := 1; s.indexOfLocked(id) >= 0; n++ {
		id = chat.TempIDPrefix + strconv.FormatInt(ms, 10) + "-" + strconv.Itoa(n)
	}

	msg := chat.Message{
		ID:           id,
		FromUserID:   from,
		ToUserID:     to,
		Text:         text,
		Timestamp:    ms,
		ClientTempID: id,
	}
	s.insertLocked(msg, now)
	return msg
}

// ApplyIncoming merges a server-sourced message. It reports true when the
// message confirmed or updated an existing entry, false when it was appended.
func (s *Store) ApplyIncoming(msg chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(msg)
}

// ReplaceHistory replaces the list with a freshly loaded history. Unconfirmed
// entries created at or after snapshot, and entries marked failed, survive
// and are matched against the history with the same rules as ApplyIncoming.
func (s *Store) ReplaceHistory(snapshot time.Time, msgs []chat.Message) {
	history := make([]chat.Message, len(msgs))
	copy(history, msgs)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp < history[j].Timestamp
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []entry
	for _, e := range s.entries {
		if e.msg.Confirmed {
			continue
		}
		if e.msg.Failed || !e.created.Before(snapshot) {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	for _, m := range history {
		s.applyLocked(m)
	}
}

// MarkFailed flags the unconfirmed entry with tempID as rejected locally.
func (s *Store) MarkFailed(tempID string) bool {
	return s.setFailed(tempID, true)
}

// ClearFailed removes the failed flag, typically before a resend.
func (s *Store) ClearFailed(tempID string) bool {
	return s.setFailed(tempID, false)
}

func (s *Store) setFailed(tempID string, failed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(tempID)
	if i < 0 || s.entries[i].msg.Confirmed {
		return false
	}
	s.entries[i].msg.Failed = failed
	return true
}

// Find returns the entry with the given id.
func (s *Store) Find(id string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLocked(id); i >= 0 {
		return s.entries[i].msg, true
	}
	return chat.Message{}, false
}

// Messages returns a copy of the ordered list.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// Pending returns the unconfirmed entries in list order.
func (s *Store) Pending() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Message
	for _, e := range s.entries {
		if !e.msg.Confirmed {
			out = append(out, e.msg)
		}
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) applyLocked(msg chat.Message) bool {
	msg.Confirmed = true
	msg.Failed = false

	target := s.matchLocked(msg)
	if target < 0 {
		if i := s.indexOfLocked(msg.ID); i >= 0 {
			s.entries[i].msg = mergeConfirmed(s.entries[i].msg, msg)
			s.resortLocked()
			return true
		}
		s.insertLocked(msg, s.now())
		return false
	}

	// The server id may already be present, e.g. from a history load that
	// raced the echo. Keep that entry and drop the optimistic one.
	if dup := s.indexOfLocked(msg.ID); dup >= 0 && dup != target {
		s.entries[dup].msg = mergeConfirmed(s.entries[dup].msg, msg)
		s.entries = append(s.entries[:target], s.entries[target+1:]...)
		s.resortLocked()
		return true
	}

	s.entries[target].msg = mergeConfirmed(s.entries[target].msg, msg)
	s.resortLocked()
	return true
}

// matchLocked finds the unconfirmed entry msg confirms. An echoed temp id is
// authoritative even when it matches nothing here; only echoes without one
// fall back to the oldest unconfirmed entry from the same sender with the
// same text inside the window.
func (s *Store) matchLocked(msg chat.Message) int {
	if msg.ClientTempID != "" {
		for i, e := range s.entries {
			if !e.msg.Confirmed && e.msg.ID == msg.ClientTempID {
				return i
			}
		}
		return -1
	}

	best := -1
	for i, e := range s.entries {
		if e.msg.Confirmed || e.msg.Failed {
			continue
		}
		if e.msg.FromUserID != msg.FromUserID || e.msg.Text != msg.Text {
			continue
		}
		if abs(e.msg.Timestamp-msg.Timestamp) > s.window.Milliseconds() {
			continue
		}
		if best < 0 || older(e, s.entries[best]) {
			best = i
		}
	}
	return best
}

func (s *Store) insertLocked(msg chat.Message, created time.Time) {
	s.seq++
	s.entries = append(s.entries, entry{msg: msg, seq: s.seq, created: created})
	s.resortLocked()
}

func (s *Store) resortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if a.msg.Timestamp != b.msg.Timestamp {
			return a.msg.Timestamp < b.msg.Timestamp
		}
		return a.seq < b.seq
	})
}

func (s *Store) indexOfLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, e := range s.entries {
		if e.msg.ID == id {
			return i
		}
	}
	return -1
}

// mergeConfirmed folds a server copy into an existing entry. Server values
// win; fields the server left empty keep their local value.
func mergeConfirmed(local, server chat.Message) chat.Message {
	out := server
	if out.FromUserID == "" {
		out.FromUserID = local.FromUserID
	}
	if out.ToUserID == "" {
		out.ToUserID = local.ToUserID
	}
	if out.Text == "" {
		out.Text = local.Text
	}
	if out.SenderRole == "" {
		out.SenderRole = local.SenderRole
	}
	if out.SenderName == "" {
		out.SenderName = local.SenderName
	}
	if out.ChatID == "" {
		out.ChatID = local.ChatID
	}
	if out.ClientTempID == "" {
		out.ClientTempID = local.ClientTempID
	}
	out.Confirmed = true
	out.Failed = false
	return out
}

func older(a, b entry) bool {
	if a.msg.Timestamp != b.msg.Timestamp {
		return a.msg.Timestamp < b.msg.Timestamp
	}
	return a.seq < b.seq
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
