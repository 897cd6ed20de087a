// Package solid implements the Solid BFT core: the proposer/acceptor state
// machine, the proposal/accept/commit protocol, leader election with
// leader-skip on timeout, and the pending-proposal DAG (spec.md §§2-4).
//
// The package is deliberately payload-agnostic and I/O-free. A
// consensus/solid.Core is driven entirely through Submit (inbound events,
// spec §6) and its own round timers while Run is active, and appends to an
// outbound queue the host empties with Drain;
// wiring those to an actual network and disk is the host's job, done in the
// sibling transport/ and storage/ packages.
package solid

import (
	"fmt"

	scommon "github.com/polybase-io/solid/common"
	mapset "github.com/deckarep/golang-set"
)

// PeerID identifies a participant. Equality is bitwise (spec §3).
type PeerID = scommon.PeerID

// Hash is a 32-byte content digest, used both for ProposalHash and for the
// skip sentinel (spec §3, §4.5 Open Questions).
type Hash = scommon.Hash

// PeerSet is the frozen, ordered list of participants a Core was started
// with. Index order is the only thing the Leader Schedule reads (spec
// §4.1).
type PeerSet struct {
	ordered []PeerID
	index   map[PeerID]int
}

// NewPeerSet freezes peers in the given order. The order is significant: it
// defines leader rotation (spec §4.1) and callers must pass every node the
// same order.
func NewPeerSet(peers ...PeerID) PeerSet {
	ps := PeerSet{
		ordered: append([]PeerID(nil), peers...),
		index:   make(map[PeerID]int, len(peers)),
	}
	for i, p := range ps.ordered {
		ps.index[p] = i
	}
	return ps
}

func (ps PeerSet) Len() int { return len(ps.ordered) }

// At returns the peer at position i mod Len(), which is how the leader
// schedule turns an unbounded skip counter into a rotation (spec §4.1).
func (ps PeerSet) At(i uint64) PeerID {
	return ps.ordered[int(i%uint64(ps.Len()))]
}

// Members returns the peer set in its frozen order, for callers (storage
// encoders, CLI listings) that need the plain slice rather than index
// lookups.
func (ps PeerSet) Members() []PeerID {
	return append([]PeerID(nil), ps.ordered...)
}

func (ps PeerSet) Contains(p PeerID) bool {
	_, ok := ps.index[p]
	return ok
}

// Quorum returns floor(N/2)+1, the strict majority over an odd N (spec
// §3 "Quorum").
func (ps PeerSet) Quorum() int {
	return ps.Len()/2 + 1
}

// Equal reports whether two peer sets have the same members in the same
// order — manifests must be proposed and validated against the exact same
// frozen set (spec §4.2 validation rule 2).
func (ps PeerSet) Equal(other PeerSet) bool {
	if len(ps.ordered) != len(other.ordered) {
		return false
	}
	for i, p := range ps.ordered {
		if other.ordered[i] != p {
			return false
		}
	}
	return true
}

// AsSet returns the members as a mapset.Set, used where membership checks
// matter more than order (e.g. "children: set<ProposalHash>" in spec §3).
func (ps PeerSet) AsSet() mapset.Set {
	s := mapset.NewThreadUnsafeSet()
	for _, p := range ps.ordered {
		s.Add(p)
	}
	return s
}

// Round is the (height, skips) coordinate that identifies a single leader
// attempt (spec §3 Glossary "Round").
type Round struct {
	Height uint64
	Skips  uint64
}

func (r Round) String() string {
	return fmt.Sprintf("(h=%d,s=%d)", r.Height, r.Skips)
}

// Next is the round that follows a commit: height+1, skips reset to 0
// (spec §4.4 "the round advances to (height+1, 0) on commit").
func (r Round) Next() Round { return Round{Height: r.Height + 1, Skips: 0} }

// Skip is the round that follows a timeout: same height, skips+1 (spec
// §4.4 "the round advances to (height, skips+1) on timeout").
func (r Round) Skip() Round { return Round{Height: r.Height, Skips: r.Skips + 1} }

// ProposalManifest is the leader's request to extend the chain (spec §3).
// It is immutable once constructed; Hash() is a pure function of its
// fields under the configured canonical encoder and digest.
type ProposalManifest struct {
	LastProposalHash Hash
	Skips            uint64
	Height           uint64
	LeaderID         PeerID
	Peers            PeerSet
	Txns             []byte
}

// Accept is a peer's vote extending the chain at (Height, Skips) with the
// proposal-or-skip identified by ProposalHash (spec §3).
type Accept struct {
	ProposalHash Hash
	Height       uint64
	Skips        uint64
	From         PeerID
}

func (a Accept) Round() Round { return Round{Height: a.Height, Skips: a.Skips} }

// Commit is emitted exactly once per committed block on each correct node
// (spec §3).
type Commit struct {
	ProposalHash Hash
	Height       uint64
	Manifest     ProposalManifest
}

// Confirmed anchors the pending DAG: the most recently committed (hash,
// height) pair (spec §3 "Confirmed chain").
type Confirmed struct {
	Hash   Hash
	Height uint64
}
