package solid

import (
	"github.com/fxamacker/cbor/v2"

	scommon "github.com/polybase-io/solid/common"
)

// EncodeManifest renders m in the same canonical CBOR shape used for
// hashing (wireManifest), so a Transport can carry it as an OutProposal's
// payload and a peer's InProposal.Raw is exactly the bytes its hash covers
// (spec §6 "the raw bytes whose digest equals the hash").
func EncodeManifest(m ProposalManifest) []byte {
	return m.canonicalBytes()
}

// DecodeManifest reverses EncodeManifest.
func DecodeManifest(b []byte) (ProposalManifest, error) {
	var w wireManifest
	if err := cbor.Unmarshal(b, &w); err != nil {
		return ProposalManifest{}, err
	}
	peers := make([]PeerID, 0, len(w.Peers))
	for _, p := range w.Peers {
		peers = append(peers, scommon.BytesToPeerID(p))
	}
	return ProposalManifest{
		LastProposalHash: scommon.BytesToHash(w.LastProposalHash),
		Skips:            w.Skips,
		Height:           w.Height,
		LeaderID:         scommon.BytesToPeerID(w.LeaderID),
		Peers:            NewPeerSet(peers...),
		Txns:             w.Txns,
	}, nil
}

// wireAccept is the encoded shape of Accept, the Transport-facing sibling
// of wireManifest (spec §6 "accepts arrive already deserialized" — this is
// the concrete encoding this package offers a host that doesn't want to
// invent its own).
type wireAccept struct {
	ProposalHash []byte
	Height       uint64
	Skips        uint64
	From         []byte
}

// EncodeAccept renders a in the canonical CBOR shape used for wire
// transmission (accepts are never hashed, so this has no bearing on
// ProposalHash — only manifests are content-addressed).
func EncodeAccept(a Accept) []byte {
	w := wireAccept{
		ProposalHash: a.ProposalHash.Bytes(),
		Height:       a.Height,
		Skips:        a.Skips,
		From:         a.From.Bytes(),
	}
	b, err := canonicalEncMode.Marshal(w)
	if err != nil {
		panic(err) // wireAccept has no cyclic/unsupported types
	}
	return b
}

// DecodeAccept reverses EncodeAccept.
func DecodeAccept(b []byte) (Accept, error) {
	var w wireAccept
	if err := cbor.Unmarshal(b, &w); err != nil {
		return Accept{}, err
	}
	return Accept{
		ProposalHash: scommon.BytesToHash(w.ProposalHash),
		Height:       w.Height,
		Skips:        w.Skips,
		From:         scommon.BytesToPeerID(w.From),
	}, nil
}
