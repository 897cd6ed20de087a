// Package hostiface defines the two collaborator contracts Solid's host is
// responsible for (spec §1, §6): moving bytes between peers, and keeping
// enough of the confirmed chain on disk to answer a restart or a
// SyncComplete. consensus/solid never imports an implementation of either —
// it only ever sees events built from what a Transport and Storage reported.
package hostiface

import (
	"context"

	solid "github.com/polybase-io/solid/consensus/solid"
)

// Envelope is the wire-level unit a Transport moves: an outbound message
// addressed either to one peer (accepts) or to everyone (proposals).
type Envelope struct {
	// To is the zero PeerID for a broadcast.
	To      solid.PeerID
	Kind    string
	Payload []byte
}

// Transport carries Solid's wire traffic. Implementations live in
// transport/memory (in-process, for tests) and transport/wsnet (a real
// websocket mesh).
type Transport interface {
	// Broadcast sends payload to every peer.
	Broadcast(ctx context.Context, kind string, payload []byte) error
	// Unicast sends payload to exactly one peer.
	Unicast(ctx context.Context, to solid.PeerID, kind string, payload []byte) error
	// Inbox delivers envelopes this node received.
	Inbox() <-chan Envelope
}

// Storage persists confirmed manifests so a restarted node (or one
// recovering from a SyncComplete) doesn't need the whole pending DAG
// replayed from peers. Implementations live in storage/memstore (tests) and
// storage/leveldb (a real embedded index + WAL).
type Storage interface {
	// PutConfirmed records that hash committed at height with manifest m.
	PutConfirmed(height uint64, hash solid.Hash, m solid.ProposalManifest) error
	// GetConfirmed returns the manifest committed at height, if known.
	GetConfirmed(height uint64) (solid.ProposalManifest, solid.Hash, bool, error)
	// LastConfirmed returns the highest height Storage has recorded.
	LastConfirmed() (solid.Confirmed, error)
	Close() error
}
