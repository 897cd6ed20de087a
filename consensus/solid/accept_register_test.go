package solid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcceptRegisterQuorumAndIdempotence(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	ar := NewAcceptRegister(peers)

	h := Hash{0x01}
	require.False(t, ar.HasQuorum(1, 0, h))

	ar.Record(Accept{Height: 1, Skips: 0, ProposalHash: h, From: A})
	require.Equal(t, 1, ar.Count(1, 0, h))
	require.False(t, ar.HasQuorum(1, 0, h))

	// duplicate vote from the same peer must not inflate the tally.
	ar.Record(Accept{Height: 1, Skips: 0, ProposalHash: h, From: A})
	require.Equal(t, 1, ar.Count(1, 0, h))

	ar.Record(Accept{Height: 1, Skips: 0, ProposalHash: h, From: B})
	require.True(t, ar.HasQuorum(1, 0, h), "2 of 3 is a strict majority")
}

func TestAcceptRegisterTriplesAreIndependent(t *testing.T) {
	A, B, C := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, C)
	ar := NewAcceptRegister(peers)

	h1, h2 := Hash{0x01}, Hash{0x02}
	ar.Record(Accept{Height: 1, Skips: 0, ProposalHash: h1, From: A})
	ar.Record(Accept{Height: 1, Skips: 0, ProposalHash: h2, From: B})

	require.Equal(t, 1, ar.Count(1, 0, h1))
	require.Equal(t, 1, ar.Count(1, 0, h2))
	require.False(t, ar.HasQuorum(1, 0, h1))
	require.False(t, ar.HasQuorum(1, 0, h2))
}

func TestAcceptRegisterDropBelowAndReset(t *testing.T) {
	A, B, _ := peer(1), peer(2), peer(3)
	peers := NewPeerSet(A, B, peer(3))
	ar := NewAcceptRegister(peers)

	h := Hash{0x01}
	ar.Record(Accept{Height: 1, Skips: 0, ProposalHash: h, From: A})
	ar.Record(Accept{Height: 2, Skips: 0, ProposalHash: h, From: B})

	ar.DropBelow(1)
	require.Equal(t, 0, ar.Count(1, 0, h))
	require.Equal(t, 1, ar.Count(2, 0, h))

	ar.Reset()
	require.Equal(t, 0, ar.Count(2, 0, h))
}
