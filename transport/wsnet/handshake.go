package wsnet

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec"

	scommon "github.com/polybase-io/solid/common"
)

// Identity is this node's long-lived handshake keypair. PeerID is derived
// from the public key so a dialed peer can be authenticated without a
// separate certificate authority — the same "identity is a keypair"
// posture the teacher's p2p layer takes for node IDs.
type Identity struct {
	priv *btcec.PrivateKey
}

func GenerateIdentity() (Identity, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return Identity{}, err
	}
	return Identity{priv: priv}, nil
}

func (id Identity) PeerID() scommon.PeerID {
	return scommon.BytesToPeerID(sha256Sum(id.priv.PubKey().SerializeCompressed()))
}

func sha256Sum(b []byte) []byte {
	s := sha256.Sum256(b)
	return s[:]
}

// hello builds this side's handshakeHello: a fresh nonce signed with the
// long-lived key, proving PublicKey really controls the claimed PeerID.
func (id Identity) hello() (*handshakeHello, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	digest := sha256Sum(nonce)
	sig, err := id.priv.Sign(digest)
	if err != nil {
		return nil, err
	}
	pid := id.PeerID()
	return &handshakeHello{
		PeerID:    pid.Bytes(),
		PublicKey: id.priv.PubKey().SerializeCompressed(),
		Nonce:     nonce,
		Signature: sig.Serialize(),
	}, nil
}

// verify checks that h's signature was produced by the private key behind
// PublicKey, and that PeerID really is that key's hash.
func verify(h *handshakeHello) (scommon.PeerID, error) {
	pub, err := btcec.ParsePubKey(h.PublicKey, btcec.S256())
	if err != nil {
		return scommon.PeerID{}, fmt.Errorf("wsnet: bad handshake public key: %w", err)
	}
	sig, err := btcec.ParseSignature(h.Signature, btcec.S256())
	if err != nil {
		return scommon.PeerID{}, fmt.Errorf("wsnet: bad handshake signature: %w", err)
	}
	digest := sha256Sum(h.Nonce)
	if !sig.Verify(digest, pub) {
		return scommon.PeerID{}, fmt.Errorf("wsnet: handshake signature does not verify")
	}
	claimed := scommon.BytesToPeerID(h.PeerID)
	derived := scommon.BytesToPeerID(sha256Sum(pub.SerializeCompressed()))
	if claimed != derived {
		return scommon.PeerID{}, fmt.Errorf("wsnet: claimed peer id does not match public key")
	}
	return claimed, nil
}
