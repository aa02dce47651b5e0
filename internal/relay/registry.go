package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Role distinguishes the two session kinds the registry tracks, so
// teardown can tell a publisher's session from a viewer's.
type Role int

const (
	RoleIngest Role = iota
	RoleEgress
)

// TrackPair is the (video, audio) pair a single WHEP viewer subscribes
// under a stream key.
type TrackPair struct {
	Video *webrtc.TrackLocalStaticRTP
	Audio *webrtc.TrackLocalStaticRTP
}

// Session is a registry entry: an owning reference to a live peer
// connection, tagged with enough bookkeeping to tear itself down
// correctly.
type Session struct {
	ID        uuid.UUID
	Role      Role
	StreamKey string
	PC        *webrtc.PeerConnection

	// Pair is set only for RoleEgress sessions: the exact slice element
	// this session owns, so teardown removes just this viewer rather than
	// the whole subscription list.
	Pair TrackPair
}

// Registry is the process-wide mapping from session id to peer connection,
// and from stream key to the ordered fanout list of egress track pairs.
// Both maps are guarded by a single mutex each; critical sections are kept
// short except where noted (see Registry.WithFanout).
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	subMu         sync.Mutex
	subscriptions map[string][]TrackPair
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:      make(map[uuid.UUID]*Session),
		subscriptions: make(map[string][]TrackPair),
	}
}

// Put registers a session under its id.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get looks up a session by id.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session's registry entry. It does not close the peer
// connection; callers close it first and then call Delete, as teardown
// does.
func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Subscribe appends pair to key's fanout list, creating the key if absent.
func (r *Registry) Subscribe(key string, pair TrackPair) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscriptions[key] = append(r.subscriptions[key], pair)
}

// Unsubscribe removes a specific pair from key's fanout list (used by
// egress teardown, which must not disturb other viewers of the same key).
func (r *Registry) Unsubscribe(key string, pair TrackPair) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	pairs := r.subscriptions[key]
	for i, p := range pairs {
		if p.Video == pair.Video && p.Audio == pair.Audio {
			r.subscriptions[key] = append(pairs[:i], pairs[i+1:]...)
			return
		}
	}
}

// ClearKey drops key's entire fanout list (ingest teardown: the publisher
// going away takes every viewer of its stream with it).
func (r *Registry) ClearKey(key string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.subscriptions, key)
}

// WithFanout holds the subscriptions lock for the duration of fn, passing
// it the current fanout list for key (inserting an empty one first if
// key is unknown). This is the single-packet-fanout critical section: fn
// may perform the egress writes itself, trading lock hold time for
// simplicity.
func (r *Registry) WithFanout(key string, fn func(pairs []TrackPair)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	pairs, ok := r.subscriptions[key]
	if !ok {
		r.subscriptions[key] = nil
		pairs = nil
	}
	fn(pairs)
}
