package session

import (
	"sort"
	"sync"
	"time"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

// entry is one session in the table. Every field is guarded by mu, which
// serializes all processing for the session.
type entry struct {
	mu      sync.Mutex
	id      domain.SessionID
	role    domain.Role
	peer    domain.HoldingIdentity
	started time.Time

	initiator *authn.Initiator
	responder *authn.Responder
	session   *authn.Session // non-nil once the session is usable
	md        domain.SessionMetadata
	pending   []pendingMessage
	closed    bool
}

type pendingMessage struct {
	id      domain.MessageID
	payload []byte
}

// state names the negotiation progress for inspection.
func (e *entry) state() string {
	switch {
	case e.closed:
		return "Closed"
	case e.initiator != nil:
		return e.initiator.State().String()
	case e.responder != nil:
		return e.responder.State().String()
	case e.session != nil:
		return "Restored"
	default:
		return "Init"
	}
}

func (e *entry) destroy() {
	if e.initiator != nil {
		e.initiator.Destroy()
	}
	if e.responder != nil {
		e.responder.Destroy()
	}
	if e.session != nil {
		e.session.Destroy()
	}
}

// table indexes entries by session id and outbound entries by destination.
// Lock order is entry.mu before table.mu.
type table struct {
	mu     sync.Mutex
	byID   map[domain.SessionID]*entry
	byPeer map[domain.HoldingIdentity]*entry
}

func newTable() *table {
	return &table{
		byID:   make(map[domain.SessionID]*entry),
		byPeer: make(map[domain.HoldingIdentity]*entry),
	}
}

func (t *table) get(id domain.SessionID) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	return e, ok
}

func (t *table) outbound(peer domain.HoldingIdentity) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byPeer[peer]
	return e, ok
}

// insert adds e unless its id, or for an initiator its destination, is
// taken. It returns the entry in the way on conflict.
func (t *table) insert(e *entry) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.byID[e.id]; ok {
		return prev, false
	}
	if e.role == domaintypes.RoleInitiator {
		if prev, ok := t.byPeer[e.peer]; ok {
			return prev, false
		}
		t.byPeer[e.peer] = e
	}
	t.byID[e.id] = e
	return nil, true
}

func (t *table) remove(e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byID[e.id] == e {
		delete(t.byID, e.id)
	}
	if t.byPeer[e.peer] == e {
		delete(t.byPeer, e.peer)
	}
}

// snapshot returns the entries ordered by session id.
func (t *table) snapshot() []*entry {
	t.mu.Lock()
	out := make([]*entry, 0, len(t.byID))
	for _, e := range t.byID {
		out = append(out, e)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
