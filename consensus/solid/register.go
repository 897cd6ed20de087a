package solid

import (
	"hash"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	farm "github.com/dgryski/go-farm"
	lru "github.com/hashicorp/golang-lru/v2"
	bloomfilter "github.com/holiman/bloomfilter/v2"
	mapset "github.com/deckarep/golang-set"

	"github.com/polybase-io/solid/internal/log"
)

// InsertOutcome is the result of Register.Insert (spec §4.2).
type InsertOutcome int

const (
	Fresh InsertOutcome = iota
	Duplicate
)

type node struct {
	manifest ProposalManifest
	hash     Hash
	parent   Hash
	hasParent bool
	children mapset.Set
}

// Register is the Proposal Register (spec §4.2): a cycle-free DAG of
// pending proposals, arena-backed (a slice plus a hash->index map) rather
// than a graph of pointers, per the Design Note in spec §9. Pruning below
// the committed height keeps both bounded.
type Register struct {
	mu sync.RWMutex

	digest Digest
	peers  PeerSet

	confirmed Confirmed

	arena []node
	index map[Hash]int

	// seen is a fast, false-positives-allowed front-line check: if it says
	// "no", the hash is definitely not in the register, so most duplicate
	// checks never touch the index map at all (spec §9 register notes).
	seen *bloomfilter.Filter

	// recentlyPruned remembers hashes that were pruned (committed-and-gone,
	// or forked-and-dropped) so a late duplicate of a since-pruned proposal
	// is still reported as Duplicate: the bloom filter alone cannot tell a
	// pruned hash from a false positive, and this cache is consulted only
	// when the filter reports the hash as seen.
	recentlyPruned *lru.Cache[Hash, struct{}]

	// rawBytes hands back the exact bytes a manifest arrived as, so the
	// host can re-gossip byte-identical wire data without re-encoding
	// (spec §6 "the raw bytes whose digest equals the hash").
	rawBytes *fastcache.Cache

	logger *log.Logger
}

// NewRegister builds an empty register anchored at confirmed, validating
// future inserts against peers under digest.
func NewRegister(peers PeerSet, confirmed Confirmed, digest Digest, logger *log.Logger) *Register {
	seen, err := bloomfilter.NewOptimal(1<<16, 0.001)
	if err != nil {
		panic(err)
	}
	pruned, err := lru.New[Hash, struct{}](4096)
	if err != nil {
		panic(err)
	}
	return &Register{
		digest:         digest,
		peers:          peers,
		confirmed:      confirmed,
		index:          make(map[Hash]int),
		seen:           seen,
		recentlyPruned: pruned,
		rawBytes:       fastcache.New(8 << 20),
		logger:         logger,
	}
}

// hash64 adapts a farm hash into the hash.Hash64 the bloom filter wants,
// keeping the filter's fast non-cryptographic hash strictly separate from
// the content-addressing Digest used for ProposalHash (spec §9).
type hash64 uint64

func (h hash64) Sum64() uint64                 { return uint64(h) }
func (h hash64) Write(p []byte) (int, error)   { return len(p), nil }
func (h hash64) Reset()                        {}
func (h hash64) Sum(b []byte) []byte           { return b }
func (h hash64) Size() int                     { return 8 }
func (h hash64) BlockSize() int                { return 8 }

var _ hash.Hash64 = hash64(0)

func farmOf(h Hash) hash64 { return hash64(farm.Hash64(h[:])) }

// Insert validates and stores m, returning Fresh the first time a given
// hash is seen and Duplicate on every subsequent attempt (spec §4.2).
// Any other rejection is returned as an error whose Kind (via KindOf)
// tells the caller whether to emit OutOutOfDate or OutOutOfSync.
func (r *Register) Insert(m ProposalManifest, raw []byte) (InsertOutcome, Hash, error) {
	h := m.Hash(r.digest)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen.Contains(farmOf(h)) {
		if _, ok := r.index[h]; ok {
			return Duplicate, h, nil
		}
		if _, ok := r.recentlyPruned.Get(h); ok {
			return Duplicate, h, nil
		}
		// bloom false positive: fall through to a real insert attempt.
	}

	if m.Height <= r.confirmed.Height {
		return 0, h, wrapKind(KindOutOfDate, errBadHeight)
	}
	if LeaderFor(m.Skips, m.Peers) != m.LeaderID {
		return 0, h, wrapKind(KindValidation, errWrongLeader)
	}
	if !m.Peers.Equal(r.peers) {
		return 0, h, wrapKind(KindValidation, errWrongPeerSet)
	}

	isNextHeight := m.Height == r.confirmed.Height+1
	if isNextHeight && m.LastProposalHash != r.confirmed.Hash {
		return 0, h, wrapKind(KindValidation, errWrongParent)
	}

	n := node{manifest: m, hash: h, children: mapset.NewThreadUnsafeSet()}
	if parent, ok := r.index[m.LastProposalHash]; ok {
		n.parent = m.LastProposalHash
		n.hasParent = true
		r.arena[parent].children.Add(h)
	} else if isNextHeight {
		// Parent is last_confirmed itself, which isn't stored in the arena.
		n.parent = m.LastProposalHash
		n.hasParent = true
	}

	idx := len(r.arena)
	r.arena = append(r.arena, n)
	r.index[h] = idx
	r.seen.Add(farmOf(h))
	r.rawBytes.Set(h[:], raw)

	if !isNextHeight {
		// Future height: buffered, but the caller (event loop) must still
		// surface OutOutOfSync and refrain from treating this as an
		// in-round proposal (spec §4.2 validation rule 3).
		return Fresh, h, wrapKind(KindOutOfSync, newKind(KindOutOfSync, "future height manifest buffered"))
	}

	r.logger.Debug("proposal inserted", "hash", h, "height", m.Height, "skips", m.Skips)
	return Fresh, h, nil
}

// Get returns the manifest for hash, if still pending.
func (r *Register) Get(h Hash) (ProposalManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.index[h]
	if !ok {
		return ProposalManifest{}, false
	}
	return r.arena[idx].manifest, true
}

// RawBytes returns the bytes a manifest was received as, if still cached.
func (r *Register) RawBytes(h Hash) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b := r.rawBytes.Get(nil, h[:])
	return b, b != nil
}

// ChildrenOf returns the hashes of manifests whose last_proposal_hash is h.
func (r *Register) ChildrenOf(h Hash) []Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.index[h]
	if !ok {
		return nil
	}
	out := make([]Hash, 0, r.arena[idx].children.Cardinality())
	for _, c := range r.arena[idx].children.ToSlice() {
		out = append(out, c.(Hash))
	}
	return out
}

// PruneBelow removes every manifest at or below height that isn't the
// confirmed proposal itself (spec §4.2 "prune_below").
func (r *Register) PruneBelow(height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneBelowLocked(height)
}

func (r *Register) pruneBelowLocked(height uint64) {
	for h, idx := range r.index {
		n := r.arena[idx]
		if n.manifest.Height <= height && h != r.confirmed.Hash {
			delete(r.index, h)
			r.rawBytes.Del(h[:])
			r.recentlyPruned.Add(h, struct{}{})
		}
	}
	// Compact the arena down to the surviving nodes (including any dropped
	// earlier by DropForks) so pruned entries release their memory.
	arena := make([]node, 0, len(r.index))
	for h, idx := range r.index {
		r.index[h] = len(arena)
		arena = append(arena, r.arena[idx])
	}
	r.arena = arena
}

// DropForks removes every pending manifest at height h that is not the
// hash that just committed, and is not a descendant of it — implementing
// the fork-resolution step of "On commit of p at height h" (spec §4.4, S6).
func (r *Register) DropForks(committed Hash, height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := map[Hash]bool{committed: true}
	// descendants of committed, computed transitively over the remaining
	// arena entries.
	changed := true
	for changed {
		changed = false
		for h, idx := range r.index {
			if keep[h] {
				continue
			}
			n := r.arena[idx]
			if n.hasParent && keep[n.parent] {
				keep[h] = true
				changed = true
			}
		}
	}
	for h, idx := range r.index {
		n := r.arena[idx]
		if n.manifest.Height <= height && !keep[h] {
			delete(r.index, h)
			r.rawBytes.Del(h[:])
			r.recentlyPruned.Add(h, struct{}{})
		}
	}
}

// Advance records a new last_confirmed and prunes everything at or below
// its height except the confirmed proposal itself, called when a commit
// lands (spec §3 "Confirmed chain").
func (r *Register) Advance(confirmed Confirmed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = confirmed
	r.pruneBelowLocked(confirmed.Height)
}

// ResetTo implements the Out-of-Sync Protocol's sync_complete handling: the
// register is pruned and re-anchored at the host-supplied confirmed point
// (spec §4.5).
func (r *Register) ResetTo(confirmed Confirmed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = confirmed
	r.arena = r.arena[:0]
	r.index = make(map[Hash]int)
	r.pruneBelowLocked(confirmed.Height)
}

func (r *Register) Confirmed() Confirmed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.confirmed
}
