package solid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polybase-io/solid/internal/log"
	"github.com/polybase-io/solid/solidcrypto"
)

func newTestRegister(peers PeerSet) *Register {
	return NewRegister(peers, Confirmed{}, solidcrypto.SHA256, log.New("test", "register"))
}

func TestInsertFreshThenDuplicate(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	r := newTestRegister(peers)

	m := ProposalManifest{Height: 1, Skips: 0, LeaderID: A, Peers: peers}
	outcome, h, err := r.Insert(m, m.canonicalBytes())
	require.NoError(t, err)
	require.Equal(t, Fresh, outcome)

	outcome2, h2, err2 := r.Insert(m, m.canonicalBytes())
	require.NoError(t, err2)
	require.Equal(t, Duplicate, outcome2)
	require.Equal(t, h, h2)
}

func TestInsertRejectsWrongLeader(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	r := newTestRegister(peers)

	m := ProposalManifest{Height: 1, Skips: 0, LeaderID: B, Peers: peers}
	_, _, err := r.Insert(m, nil)
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestInsertRejectsBelowConfirmedHeight(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	r := NewRegister(peers, Confirmed{Height: 5}, solidcrypto.SHA256, log.New("test", "register"))

	m := ProposalManifest{Height: 3, Skips: 0, LeaderID: LeaderFor(0, peers), Peers: peers}
	_, _, err := r.Insert(m, nil)
	require.Error(t, err)
	require.Equal(t, KindOutOfDate, KindOf(err))
}

func TestInsertBuffersFutureHeight(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	r := newTestRegister(peers)

	m := ProposalManifest{Height: 5, Skips: 0, LeaderID: A, Peers: peers}
	outcome, h, err := r.Insert(m, m.canonicalBytes())
	require.Error(t, err)
	require.Equal(t, KindOutOfSync, KindOf(err))
	require.Equal(t, Fresh, outcome)

	got, ok := r.Get(h)
	require.True(t, ok, "future-height manifest should still be stored")
	require.Equal(t, m, got)
}

// S6: a committed height drops sibling forks but keeps descendants of the
// committed hash.
func TestDropForksKeepsDescendantsDropsSiblings(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	r := newTestRegister(peers)

	winner := ProposalManifest{Height: 1, Skips: 0, LeaderID: A, Peers: peers, Txns: []byte("winner")}
	_, winnerHash, err := r.Insert(winner, winner.canonicalBytes())
	require.NoError(t, err)

	loser := ProposalManifest{Height: 1, Skips: 1, LeaderID: B, Peers: peers, Txns: []byte("loser")}
	_, loserHash, err := r.Insert(loser, loser.canonicalBytes())
	require.NoError(t, err)

	// Height 2 is ahead of last_confirmed+1, so the child is stored but
	// reported as out-of-sync.
	child := ProposalManifest{Height: 2, Skips: 0, LeaderID: A, Peers: peers, LastProposalHash: winnerHash}
	_, childHash, err := r.Insert(child, child.canonicalBytes())
	require.Equal(t, KindOutOfSync, KindOf(err))

	r.DropForks(winnerHash, 1)

	_, ok := r.Get(loserHash)
	require.False(t, ok, "sibling fork must be dropped")
	_, ok = r.Get(childHash)
	require.True(t, ok, "descendant of the committed hash must survive")
}

func TestAdvancePrunesBelowNewHeight(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	r := newTestRegister(peers)

	m := ProposalManifest{Height: 1, Skips: 0, LeaderID: A, Peers: peers}
	_, h, err := r.Insert(m, m.canonicalBytes())
	require.NoError(t, err)

	sibling := ProposalManifest{Height: 1, Skips: 1, LeaderID: B, Peers: peers}
	_, siblingHash, err := r.Insert(sibling, sibling.canonicalBytes())
	require.NoError(t, err)

	r.Advance(Confirmed{Hash: h, Height: 1})
	_, ok := r.Get(siblingHash)
	require.False(t, ok, "a non-confirmed manifest at the new height is pruned")
	_, ok = r.Get(h)
	require.True(t, ok, "the committed manifest itself stays as last_confirmed")
	require.Equal(t, Confirmed{Hash: h, Height: 1}, r.Confirmed())
}
