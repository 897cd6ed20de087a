// Package solidcrypto provides the digest functions the core is
// parameterized over (spec §6: "The core is parameterized over the digest;
// it treats hashes as opaque 32-byte values"). The core never imports this
// package directly — a host picks one of these (or its own) and passes it
// into consensus/solid.Config.Digest.
package solidcrypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"

	scommon "github.com/polybase-io/solid/common"
)

// Digest hashes a canonically-encoded byte string into a 32-byte value.
type Digest func([]byte) scommon.Hash

// SHA256 is the default digest, matching the example given in spec §6
// ("e.g., SHA-2-256").
func SHA256(b []byte) scommon.Hash {
	return scommon.Hash(sha256.Sum256(b))
}

// Keccak256 mirrors the teacher's own default (autonitycrypto.Keccak256),
// offered here for hosts migrating data hashed under that convention.
func Keccak256(b []byte) scommon.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out scommon.Hash
	h.Sum(out[:0])
	return out
}
