package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	solid "github.com/polybase-io/solid/consensus/solid"
)

func TestStoreRoundTripsConfirmedHeights(t *testing.T) {
	s := New()

	last, err := s.LastConfirmed()
	require.NoError(t, err)
	require.Equal(t, solid.Confirmed{}, last, "an empty store reports the zero confirmed point")

	h1 := solid.Hash{0x01}
	m1 := solid.ProposalManifest{Height: 1}
	require.NoError(t, s.PutConfirmed(1, h1, m1))

	got, gotHash, ok, err := s.GetConfirmed(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h1, gotHash)
	require.Equal(t, m1, got)

	last, err = s.LastConfirmed()
	require.NoError(t, err)
	require.Equal(t, solid.Confirmed{Hash: h1, Height: 1}, last)
}

func TestStoreLastConfirmedTracksHighestHeight(t *testing.T) {
	s := New()
	require.NoError(t, s.PutConfirmed(5, solid.Hash{0x05}, solid.ProposalManifest{Height: 5}))
	require.NoError(t, s.PutConfirmed(2, solid.Hash{0x02}, solid.ProposalManifest{Height: 2}))
	require.NoError(t, s.PutConfirmed(9, solid.Hash{0x09}, solid.ProposalManifest{Height: 9}))

	last, err := s.LastConfirmed()
	require.NoError(t, err)
	require.Equal(t, uint64(9), last.Height)
}

func TestStoreGetConfirmedMiss(t *testing.T) {
	s := New()
	_, _, ok, err := s.GetConfirmed(42)
	require.NoError(t, err)
	require.False(t, ok)
}
