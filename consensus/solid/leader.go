package solid

// LeaderFor is the Leader Schedule (spec §4.1): a pure, deterministic
// function of (skips, peers). It is not a method on Core because every
// correct node must be able to compute it identically without touching any
// node-local state — that's the whole point of the contract in §4.1.
//
// Deliberately keyed by skips, not by height: a skip at height h promotes
// the next peer regardless of h, so after a commit the round restarts at
// skips=0 and the first-registered peer proposes again (spec §9 "Leader
// election without round-robin per height").
func LeaderFor(skips uint64, peers PeerSet) PeerID {
	return peers.At(skips)
}
