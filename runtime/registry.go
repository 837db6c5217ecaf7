// Package runtime owns the relay's shared state and the queues between
// workers. It coordinates the system without containing wire or domain rules.
package runtime

import (
	"sync"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry is the concurrent directory of live connections, keyed by the
// identifier derived at handshake. Per-key operations are atomic; there is
// no cross-key transactional guarantee.
type Registry struct {
	mu    sync.RWMutex
	peers map[domain.ClientID]contract.Peer
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{peers: make(map[domain.ClientID]contract.Peer)}
}

// Put inserts unconditionally. A peer already present under id is silently
// replaced and returned so the caller can close it; the registry itself
// never touches sockets.
func (r *Registry) Put(id domain.ClientID, p contract.Peer) contract.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.peers[id]
	r.peers[id] = p
	return prev
}

// Remove deletes the entry for id only while it still holds p. Removal is
// idempotent: a second call, or a call made after a newer peer took the
// slot, is a no-op.
func (r *Registry) Remove(id domain.ClientID, p contract.Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.peers[id]
	if !ok || current != p {
		return false
	}
	delete(r.peers, id)
	return true
}

func (r *Registry) Get(id domain.ClientID) (contract.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// SnapshotIDs returns the identifiers present at call time. The snapshot is
// not isolated from concurrent mutation: a peer may be gone by the time a
// consumer reaches it, which surfaces as that peer's write failure.
func (r *Registry) SnapshotIDs() []domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.peers)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
