package conversation

import (
	"sort"
	"sync"

	"github.com/matheus3301/jewelchat/internal/chat"
)

// Registry holds one Store per peer. Stores are created on first use and
// share the registry's options.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	opts   []Option
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		stores: make(map[string]*Store),
		opts:   opts,
	}
}

// Get returns the store for peer, creating it if needed.
func (r *Registry) Get(peer string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[peer]
	if !ok {
		s = NewStore(peer, r.opts...)
		r.stores[peer] = s
	}
	return s
}

// Lookup returns the store for peer without creating one.
func (r *Registry) Lookup(peer string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[peer]
	return s, ok
}

// Peers returns the peers with a store, sorted.
func (r *Registry) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]string, 0, len(r.stores))
	for p := range r.stores {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// Reset drops every store. Used when the local identity changes.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*Store)
}

// PeerOf returns the conversation msg belongs to from localUserID's side.
// An empty result means the message names no usable participant.
func PeerOf(msg chat.Message, localUserID string) string {
	return msg.Peer(localUserID)
}
