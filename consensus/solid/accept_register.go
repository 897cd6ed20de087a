package solid

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
)

// acceptKey is the (height, skips, proposal_hash) triple accepts are tallied
// under (spec §3 "Accept register").
type acceptKey struct {
	height uint64
	skips  uint64
	hash   Hash
}

// AcceptRegister tallies accept votes per round/hash triple, after the way
// the teacher's MsgStore tallies consensus messages per
// height/round/type/sender (consensus/tendermint/core/msg_store.go): one
// flat map from the (height, skips, hash) triple to its bag, here a mapset
// so quorum cardinality is a single Cardinality() call instead of a loop.
type AcceptRegister struct {
	mu    sync.RWMutex
	peers PeerSet
	bags  map[acceptKey]mapset.Set
}

func NewAcceptRegister(peers PeerSet) *AcceptRegister {
	return &AcceptRegister{peers: peers, bags: make(map[acceptKey]mapset.Set)}
}

// Record inserts a into its triple's bag. Recording is idempotent: the same
// peer voting twice for the same triple has no additional effect (spec §3
// "Duplicate accepts from the same peer for the same triple are
// idempotent").
func (a *AcceptRegister) Record(acc Accept) {
	key := acceptKey{height: acc.Height, skips: acc.Skips, hash: acc.ProposalHash}
	a.mu.Lock()
	defer a.mu.Unlock()
	bag, ok := a.bags[key]
	if !ok {
		bag = mapset.NewThreadUnsafeSet()
		a.bags[key] = bag
	}
	bag.Add(acc.From)
}

// HasQuorum reports whether the triple's bag has reached the peer set's
// strict majority (spec §3 "Quorum").
func (a *AcceptRegister) HasQuorum(height, skips uint64, hash Hash) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bag, ok := a.bags[acceptKey{height: height, skips: skips, hash: hash}]
	if !ok {
		return false
	}
	return bag.Cardinality() >= a.peers.Quorum()
}

// Count returns the number of distinct peers recorded for the triple,
// exposed for tests verifying Testable Property 3 (Quorum necessity).
func (a *AcceptRegister) Count(height, skips uint64, hash Hash) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bag, ok := a.bags[acceptKey{height: height, skips: skips, hash: hash}]
	if !ok {
		return 0
	}
	return bag.Cardinality()
}

// DropBelow removes every triple's bag for a height at or below height
// (spec §4.3 "drop_below").
func (a *AcceptRegister) DropBelow(height uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.bags {
		if key.height <= height {
			delete(a.bags, key)
		}
	}
}

// Reset discards every tally, used by the out-of-sync sync_complete path
// (spec §4.5) alongside Register.ResetTo.
func (a *AcceptRegister) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bags = make(map[acceptKey]mapset.Set)
}
