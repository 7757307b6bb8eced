package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledgerlink/internal/crypto"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/wire"
	"ledgerlink/internal/services/session"
	"ledgerlink/internal/store"
)

var (
	partyA = domaintypes.HoldingIdentity{X500Name: "O=PartyA, L=London, C=GB", GroupID: "group-1"}
	partyB = domaintypes.HoldingIdentity{X500Name: "O=PartyB, L=New York, C=US", GroupID: "group-1"}
	partyC = domaintypes.HoldingIdentity{X500Name: "O=PartyC, L=Paris, C=FR", GroupID: "group-1"}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// directory is an in-memory IdentityResolver.
type directory map[domaintypes.HoldingIdentity]domaintypes.PublicKey

func (d directory) ResolvePublicKey(_ context.Context, id domaintypes.HoldingIdentity) (domaintypes.PublicKey, error) {
	k, ok := d[id]
	if !ok {
		return domaintypes.PublicKey{}, errors.New("not a member")
	}
	return k, nil
}

// node is one manager with its own stores.
type node struct {
	id       domaintypes.HoldingIdentity
	provider *crypto.SoftwareProvider
	metadata *store.MemorySessionStore
	keys     *store.MemoryKeyStore
	mgr      *session.Manager
}

type fixture struct {
	t     *testing.T
	clock *clock
	dir   directory
	a, b  *node
	trace []domaintypes.SessionMessage
}

func newFixture(t *testing.T, cfgA, cfgB session.Config) *fixture {
	t.Helper()
	f := &fixture{t: t, clock: newClock(), dir: directory{}}
	f.a = f.newNode(partyA, cfgA)
	f.b = f.newNode(partyB, cfgB)
	return f
}

func (f *fixture) newNode(id domaintypes.HoldingIdentity, cfg session.Config) *node {
	f.t.Helper()
	pub, priv, err := crypto.GenerateSigningKey(domaintypes.SignatureEd25519)
	if err != nil {
		f.t.Fatalf("GenerateSigningKey: %v", err)
	}
	local := domaintypes.LocalIdentity{Identity: id, Algorithm: domaintypes.SignatureEd25519, Public: pub, Private: priv}
	f.dir[id] = local.PublicKey()
	n := &node{
		id:       id,
		provider: crypto.NewSoftwareProvider(local),
		metadata: store.NewMemorySessionStore(),
		keys:     store.NewMemoryKeyStore(),
	}
	n.mgr = f.manager(n, cfg)
	return n
}

// manager builds a fresh Manager over n's stores, as a restarted process would.
func (f *fixture) manager(n *node, cfg session.Config) *session.Manager {
	f.t.Helper()
	cfg.Now = f.clock.Now
	m, err := session.New(session.Deps{
		Local:    n.id,
		Crypto:   n.provider,
		Resolver: f.dir,
		Metadata: n.metadata,
		Keys:     n.keys,
	}, cfg)
	if err != nil {
		f.t.Fatalf("session.New: %v", err)
	}
	return m
}

// deliver moves the next queued message of src to dst through the wire codec.
func (f *fixture) deliver(src, dst *node) (domaintypes.SessionMessage, error) {
	f.t.Helper()
	out, ok := src.mgr.GetQueuedOutboundMessage()
	if !ok {
		f.t.Fatalf("%s has nothing queued", src.id.X500Name)
	}
	if out.Source != src.id || out.Destination != dst.id {
		f.t.Fatalf("queued message routed %s -> %s", out.Source, out.Destination)
	}
	frame, err := wire.Encode(out.Message)
	if err != nil {
		f.t.Fatalf("wire.Encode: %v", err)
	}
	msg, err := wire.Decode(frame)
	if err != nil {
		f.t.Fatalf("wire.Decode: %v", err)
	}
	f.trace = append(f.trace, msg)
	return msg, dst.mgr.ProcessSessionMessage(context.Background(), msg)
}

func (f *fixture) mustDeliver(src, dst *node) domaintypes.SessionMessage {
	f.t.Helper()
	msg, err := f.deliver(src, dst)
	if err != nil {
		f.t.Fatalf("%s at %s: %v", msg.Kind(), dst.id.X500Name, err)
	}
	return msg
}

// settle delivers in both directions until neither side has anything queued.
func (f *fixture) settle() {
	f.t.Helper()
	for {
		moved := false
		if f.a.mgr.QueuedOutbound() > 0 {
			f.mustDeliver(f.a, f.b)
			moved = true
		}
		if f.b.mgr.QueuedOutbound() > 0 {
			f.mustDeliver(f.b, f.a)
			moved = true
		}
		if !moved {
			return
		}
	}
}

func (f *fixture) send(n *node, to domaintypes.HoldingIdentity, payload string) domaintypes.MessageID {
	f.t.Helper()
	id, err := n.mgr.SendMessage(context.Background(), to, []byte(payload))
	if err != nil {
		f.t.Fatalf("SendMessage: %v", err)
	}
	return id
}

// received drains n's inbound queue.
func received(n *node) []string {
	var out []string
	for {
		msg, ok := n.mgr.GetQueuedInboundMessage()
		if !ok {
			return out
		}
		out = append(out, string(msg.Payload))
	}
}

func kinds(msgs []domaintypes.SessionMessage) []domaintypes.MessageKind {
	out := make([]domaintypes.MessageKind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind()
	}
	return out
}

func encoded(t *testing.T, msg domaintypes.SessionMessage) string {
	t.Helper()
	b, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("wire.Encode: %v", err)
	}
	return string(b)
}

func status(t *testing.T, n *node, id domaintypes.SessionID) domaintypes.SessionStatus {
	t.Helper()
	md, ok, err := n.metadata.Get(id)
	if err != nil || !ok {
		t.Fatalf("metadata for %s: ok=%v err=%v", id, ok, err)
	}
	return md.Status
}
