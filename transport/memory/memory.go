// Package memory is an in-process Transport: every node registered on a
// shared Network gets every other node's broadcasts and unicasts over Go
// channels, with no serialization. It exists for tests and local
// multi-node demos, the same role the teacher's backend_mock.go fakes fill
// for consensus/tendermint/core tests.
package memory

import (
	"context"
	"sync"

	solid "github.com/polybase-io/solid/consensus/solid"
	"github.com/polybase-io/solid/hostiface"
)

// Network is the shared medium a set of in-process Transports attach to.
type Network struct {
	mu    sync.RWMutex
	nodes map[solid.PeerID]*Transport
}

func NewNetwork() *Network {
	return &Network{nodes: make(map[solid.PeerID]*Transport)}
}

// Join registers id and returns its Transport handle.
func (n *Network) Join(id solid.PeerID) *Transport {
	t := &Transport{id: id, net: n, inbox: make(chan hostiface.Envelope, 256)}
	n.mu.Lock()
	n.nodes[id] = t
	n.mu.Unlock()
	return t
}

// Transport is this Network's hostiface.Transport implementation for one
// node.
type Transport struct {
	id    solid.PeerID
	net   *Network
	inbox chan hostiface.Envelope
}

var _ hostiface.Transport = (*Transport)(nil)

func (t *Transport) Broadcast(ctx context.Context, kind string, payload []byte) error {
	env := hostiface.Envelope{Kind: kind, Payload: payload}
	t.net.mu.RLock()
	defer t.net.mu.RUnlock()
	for id, peer := range t.net.nodes {
		if id == t.id {
			continue
		}
		peer.deliver(ctx, env)
	}
	return nil
}

func (t *Transport) Unicast(ctx context.Context, to solid.PeerID, kind string, payload []byte) error {
	t.net.mu.RLock()
	peer, ok := t.net.nodes[to]
	t.net.mu.RUnlock()
	if !ok {
		return nil // peer not joined; treated like a dropped packet
	}
	peer.deliver(ctx, hostiface.Envelope{To: to, Kind: kind, Payload: payload})
	return nil
}

func (t *Transport) Inbox() <-chan hostiface.Envelope { return t.inbox }

func (t *Transport) deliver(ctx context.Context, env hostiface.Envelope) {
	select {
	case t.inbox <- env:
	case <-ctx.Done():
	default:
		// Slow receiver: drop rather than block the sender, matching the
		// core's own "best-effort, non-blocking" outbound posture.
	}
}
