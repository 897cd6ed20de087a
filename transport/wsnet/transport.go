// Package wsnet is a real network Transport for Solid: a websocket mesh
// with a signed handshake, snappy-compressed protobuf framing, and a
// per-connection token bucket that throttles the frames this node writes to
// each peer (inbound frames are not rate-limited) — the wire stack the teacher reaches for once messages leave a
// single process (consensus/tendermint/core only ever talks to its
// backend's p2p.Server; this package is that p2p layer's replacement, built
// from the pieces the rest of the example pack uses for the same job).
package wsnet

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/protobuf/proto" //nolint:staticcheck // legacy shim, matches teacher usage
	"github.com/golang/snappy"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	scommon "github.com/polybase-io/solid/common"
	"github.com/polybase-io/solid/hostiface"
	"github.com/polybase-io/solid/internal/log"
)

const (
	// writeBurst and writeRate bound how fast this node will emit frames to
	// any single peer, independent of how fast the core is producing
	// OutAccept/OutProposal events.
	writeRate  = 200 // frames/sec
	writeBurst = 400
)

type conn struct {
	peer    scommon.PeerID
	ws      *websocket.Conn
	limiter *rate.Limiter
	mu      sync.Mutex // guards concurrent WriteMessage calls
}

// Node is a running wsnet endpoint: it accepts inbound connections, dials
// outbound ones, and satisfies hostiface.Transport over the resulting mesh.
type Node struct {
	identity Identity
	logger   *log.Logger

	mu    sync.RWMutex
	conns map[scommon.PeerID]*conn

	inbox chan hostiface.Envelope
}

var _ hostiface.Transport = (*Node)(nil)

func NewNode(identity Identity, logger *log.Logger) *Node {
	return &Node{
		identity: identity,
		logger:   logger,
		conns:    make(map[scommon.PeerID]*conn),
		inbox:    make(chan hostiface.Envelope, 1024),
	}
}

// ServeHTTP upgrades an inbound connection and runs the server side of the
// handshake once it's open.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn("wsnet: upgrade failed", "err", err)
		return
	}
	n.accept(ws)
}

// Dial opens an outbound connection to addr and runs the client side of the
// handshake.
func (n *Node) Dial(addr string) error {
	ws, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("wsnet: dial %s: %w", addr, err)
	}
	hello, err := n.identity.hello()
	if err != nil {
		ws.Close()
		return err
	}
	if err := writeProto(ws, hello); err != nil {
		ws.Close()
		return err
	}
	peer, err := n.readHello(ws)
	if err != nil {
		ws.Close()
		return err
	}
	n.register(peer, ws)
	return nil
}

func (n *Node) accept(ws *websocket.Conn) {
	peer, err := n.readHello(ws)
	if err != nil {
		n.logger.Warn("wsnet: handshake failed", "err", err)
		ws.Close()
		return
	}
	hello, err := n.identity.hello()
	if err != nil {
		ws.Close()
		return
	}
	if err := writeProto(ws, hello); err != nil {
		ws.Close()
		return
	}
	n.register(peer, ws)
}

func (n *Node) readHello(ws *websocket.Conn) (scommon.PeerID, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return scommon.PeerID{}, err
	}
	var hello handshakeHello
	if err := proto.Unmarshal(data, &hello); err != nil {
		return scommon.PeerID{}, err
	}
	return verify(&hello)
}

func (n *Node) register(peer scommon.PeerID, ws *websocket.Conn) {
	c := &conn{peer: peer, ws: ws, limiter: rate.NewLimiter(writeRate, writeBurst)}
	n.mu.Lock()
	n.conns[peer] = c
	n.mu.Unlock()
	go n.readLoop(c)
}

func (n *Node) readLoop(c *conn) {
	defer func() {
		n.mu.Lock()
		delete(n.conns, c.peer)
		n.mu.Unlock()
		c.ws.Close()
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		raw, err := snappy.Decode(nil, data)
		if err != nil {
			n.logger.Warn("wsnet: snappy decode failed", "peer", c.peer, "err", err)
			continue
		}
		var env wireEnvelope
		if err := proto.Unmarshal(raw, &env); err != nil {
			n.logger.Warn("wsnet: envelope decode failed", "peer", c.peer, "err", err)
			continue
		}
		e := hostiface.Envelope{Kind: env.Kind, Payload: env.Payload}
		if len(env.To) > 0 {
			e.To = scommon.BytesToPeerID(env.To)
		}
		select {
		case n.inbox <- e:
		default:
			n.logger.Warn("wsnet: inbox full, dropping frame", "peer", c.peer)
		}
	}
}

func writeProto(ws *websocket.Conn, m proto.Message) error {
	b, err := proto.Marshal(m)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.BinaryMessage, b)
}

func (n *Node) send(ctx context.Context, c *conn, kind string, to scommon.PeerID, payload []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	env := &wireEnvelope{Kind: kind, Payload: payload}
	if to != (scommon.PeerID{}) {
		env.To = to.Bytes()
	}
	b, err := proto.Marshal(env)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, b)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteMessage(websocket.BinaryMessage, compressed)
}

func (n *Node) Broadcast(ctx context.Context, kind string, payload []byte) error {
	n.mu.RLock()
	conns := make([]*conn, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.RUnlock()
	var firstErr error
	for _, c := range conns {
		if err := n.send(ctx, c, kind, scommon.PeerID{}, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *Node) Unicast(ctx context.Context, to scommon.PeerID, kind string, payload []byte) error {
	n.mu.RLock()
	c, ok := n.conns[to]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsnet: no connection to peer %s", to)
	}
	return n.send(ctx, c, kind, to, payload)
}

func (n *Node) Inbox() <-chan hostiface.Envelope { return n.inbox }
