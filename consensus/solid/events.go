package solid

// Inbound events (host -> core), spec §6.

// InProposal carries a host-deserialized manifest plus the raw bytes whose
// digest equals its hash, so the register can hand the exact bytes back
// out for re-gossip.
type InProposal struct {
	Manifest ProposalManifest
	Raw      []byte
}

type InAccept struct {
	Accept Accept
}

// ProposeTransactions supplies the payload for the next locally produced
// proposal, consumed the next time this node is leader.
type ProposeTransactions struct {
	Txns []byte
}

// SyncComplete answers a prior OutOutOfSync: the host has obtained a
// snapshot and is reporting the resulting confirmed point (spec §4.5).
type SyncComplete struct {
	Confirmed Confirmed
}

type Shutdown struct{}

// Outbound events (core -> host), spec §6.

type OutProposal struct {
	Manifest ProposalManifest
}

type OutAccept struct {
	Accept Accept
	To     PeerID
}

type OutCommit struct {
	Manifest ProposalManifest
}

type OutOutOfSync struct {
	TargetHeight uint64
}

type OutOutOfDate struct {
	Hash Hash
}

type OutDuplicate struct {
	Hash Hash
}
