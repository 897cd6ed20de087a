package solid

import "sync"

// Backlog remembers, for each round coordinate, the first proposal hash the
// Register accepted at that round — so that when the event loop later
// enters that round (after one or more skips), it can replay the
// already-stored manifest instead of waiting for re-delivery.
//
// This adapts the teacher's per-validator backlog priority queue
// (other_examples core.go: `backlogs map[validator.Validator]*prque.Prque`)
// to Solid's round granularity: Solid's rounds are per-skip, not
// per-validator, so the natural key here is (height, skips), not a sender
// identity.
type Backlog struct {
	mu      sync.RWMutex
	byRound map[Round]Hash
}

func NewBacklog() *Backlog {
	return &Backlog{byRound: make(map[Round]Hash)}
}

// Record keeps the first hash seen for round; later calls for the same
// round are no-ops, mirroring "only the first is accepted" for a given
// leader/round (spec §4.4 tie-break).
func (b *Backlog) Record(round Round, hash Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byRound[round]; !ok {
		b.byRound[round] = hash
	}
}

func (b *Backlog) Lookup(round Round) (Hash, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.byRound[round]
	return h, ok
}

// DropBelowHeight discards entries for rounds the chain has already moved
// past, keeping the backlog bounded the same way Register.PruneBelow keeps
// the DAG bounded.
func (b *Backlog) DropBelowHeight(height uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for round := range b.byRound {
		if round.Height <= height {
			delete(b.byRound, round)
		}
	}
}

func (b *Backlog) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byRound = make(map[Round]Hash)
}
