package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	solid "github.com/polybase-io/solid/consensus/solid"
	"github.com/polybase-io/solid/hostiface"
)

func peerID(b byte) solid.PeerID {
	var p solid.PeerID
	p[31] = b
	return p
}

func recv(t *testing.T, tr *Transport) hostiface.Envelope {
	t.Helper()
	select {
	case env := <-tr.Inbox():
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an envelope")
		return hostiface.Envelope{}
	}
}

func TestBroadcastReachesEveryOtherNode(t *testing.T) {
	net := NewNetwork()
	a := net.Join(peerID(1))
	b := net.Join(peerID(2))
	c := net.Join(peerID(3))

	require.NoError(t, a.Broadcast(context.Background(), "proposal", []byte("hi")))

	envB := recv(t, b)
	require.Equal(t, "proposal", envB.Kind)
	envC := recv(t, c)
	require.Equal(t, "proposal", envC.Kind)

	select {
	case <-a.Inbox():
		t.Fatal("broadcaster must not receive its own broadcast")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnicastReachesOnlyTheAddressee(t *testing.T) {
	net := NewNetwork()
	a := net.Join(peerID(1))
	b := net.Join(peerID(2))
	c := net.Join(peerID(3))

	require.NoError(t, a.Unicast(context.Background(), peerID(2), "accept", []byte("vote")))

	env := recv(t, b)
	require.Equal(t, "accept", env.Kind)

	select {
	case <-c.Inbox():
		t.Fatal("unicast must not reach a peer other than the addressee")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnicastToUnjoinedPeerIsANoop(t *testing.T) {
	net := NewNetwork()
	a := net.Join(peerID(1))
	require.NoError(t, a.Unicast(context.Background(), peerID(9), "accept", nil))
}
