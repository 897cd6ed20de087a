// Package common holds the small value types shared across the solid
// module: content hashes and peer identifiers. It plays the same role the
// teacher's own `common` package plays for `common.Hash`/`common.Address` —
// a single place every other package imports instead of redeclaring byte
// array aliases.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the number of bytes in a ProposalHash/digest output.
const HashLength = 32

// Hash is a 32-byte content digest. The core treats it as an opaque,
// comparable, map-keyable value — it never inspects the bytes.
type Hash [HashLength]byte

// BytesToHash right-aligns b into a Hash, truncating on the left if b is
// longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the zero hash, used as the genesis sentinel
// for `last_confirmed` on cold start (spec §6 "genesis: None").
func (h Hash) IsZero() bool { return h == Hash{} }

// HexToHash decodes a "0x"-prefixed (or bare) hex string into a Hash. It is
// a test/CLI convenience; the wire path never round-trips through hex.
func HexToHash(s string) Hash {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return BytesToHash(b)
}

// PeerIDLength bounds the opaque peer identifier; the spec only requires
// "opaque byte sequence, stable" (§3), so we pick a fixed size matching a
// public key or equivalent stable fingerprint.
const PeerIDLength = 32

// PeerID is an opaque, stable peer identifier. Two peers are equal iff their
// ids are bitwise equal (spec §3).
type PeerID [PeerIDLength]byte

func BytesToPeerID(b []byte) PeerID {
	var p PeerID
	if len(b) > PeerIDLength {
		b = b[len(b)-PeerIDLength:]
	}
	copy(p[PeerIDLength-len(b):], b)
	return p
}

func (p PeerID) Bytes() []byte { return p[:] }

func (p PeerID) Hex() string { return "0x" + hex.EncodeToString(p[:]) }

func (p PeerID) String() string {
	s := p.Hex()
	if len(s) <= 12 {
		return s
	}
	return fmt.Sprintf("%s..%s", s[:8], s[len(s)-4:])
}

func (p PeerID) IsZero() bool { return p == PeerID{} }

// HexToPeerID decodes a "0x"-prefixed (or bare) hex string into a PeerID.
func HexToPeerID(s string) PeerID {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return BytesToPeerID(b)
}
