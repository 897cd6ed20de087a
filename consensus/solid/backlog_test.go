package solid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBacklogRecordIsFirstWriteWins(t *testing.T) {
	b := NewBacklog()
	round := Round{Height: 1, Skips: 0}

	h1, h2 := Hash{0x01}, Hash{0x02}
	b.Record(round, h1)
	b.Record(round, h2)

	got, ok := b.Lookup(round)
	require.True(t, ok)
	require.Equal(t, h1, got, "the first hash recorded for a round wins")
}

func TestBacklogLookupMiss(t *testing.T) {
	b := NewBacklog()
	_, ok := b.Lookup(Round{Height: 1, Skips: 0})
	require.False(t, ok)
}

func TestBacklogDropBelowHeight(t *testing.T) {
	b := NewBacklog()
	b.Record(Round{Height: 1, Skips: 0}, Hash{0x01})
	b.Record(Round{Height: 2, Skips: 0}, Hash{0x02})

	b.DropBelowHeight(1)

	_, ok := b.Lookup(Round{Height: 1, Skips: 0})
	require.False(t, ok)
	_, ok = b.Lookup(Round{Height: 2, Skips: 0})
	require.True(t, ok)
}

func TestBacklogReset(t *testing.T) {
	b := NewBacklog()
	b.Record(Round{Height: 1, Skips: 0}, Hash{0x01})
	b.Reset()
	_, ok := b.Lookup(Round{Height: 1, Skips: 0})
	require.False(t, ok)
}
