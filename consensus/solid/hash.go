package solid

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

// Digest hashes a canonically-encoded byte string into a Hash. A Core is
// parameterized over one (spec §6); solidcrypto.SHA256 is the usual choice.
type Digest func([]byte) Hash

var canonicalEncMode = func() cbor.EncMode {
	// Core deterministic encoding: sorted map keys, shortest-form integers,
	// no indefinite-length items. Two manifests with the same field values
	// always produce the same bytes, which is the one property
	// content-addressed hashing needs (spec §3 "hash = digest of canonical
	// encoding of all fields").
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err) // options are a compile-time constant; cannot fail
	}
	return mode
}()

// wireManifest is the encoded shape of ProposalManifest. PeerSet isn't
// itself CBOR-friendly (it carries a derived index map), so we encode the
// ordered member slice instead — order is exactly what the leader schedule
// and validation rule 2 care about (spec §4.1, §4.2).
type wireManifest struct {
	LastProposalHash []byte
	Skips            uint64
	Height           uint64
	LeaderID         []byte
	Peers            [][]byte
	Txns             []byte
}

func (m ProposalManifest) canonicalBytes() []byte {
	w := wireManifest{
		LastProposalHash: m.LastProposalHash.Bytes(),
		Skips:            m.Skips,
		Height:           m.Height,
		LeaderID:         m.LeaderID.Bytes(),
		Txns:             m.Txns,
	}
	for _, p := range m.Peers.ordered {
		w.Peers = append(w.Peers, p.Bytes())
	}
	b, err := canonicalEncMode.Marshal(w)
	if err != nil {
		panic(err) // wireManifest has no cyclic/unsupported types
	}
	return b
}

// Hash computes the content-addressed ProposalHash for m under digest.
func (m ProposalManifest) Hash(digest Digest) Hash {
	return digest(m.canonicalBytes())
}

const skipSentinelDomain = "solid/skip/v1"

// SkipSentinel is the hash standing in for "no valid proposal at this
// round" in a skip-Accept (spec §4.4, §4.5 Open Questions). It is derived
// from a domain-separated prefix so it can never collide with a real
// ProposalManifest hash short of a digest collision: every real manifest
// hash's preimage is a wireManifest CBOR encoding, which never begins with
// the skipSentinelDomain string followed by two uint64s.
func SkipSentinel(digest Digest, round Round) Hash {
	buf := make([]byte, len(skipSentinelDomain)+16)
	n := copy(buf, skipSentinelDomain)
	binary.BigEndian.PutUint64(buf[n:], round.Height)
	binary.BigEndian.PutUint64(buf[n+8:], round.Skips)
	return digest(buf)
}
