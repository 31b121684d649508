package crypto

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/snapcoin/snapwallet/internal/model"
)

const (
	// AddressVersion is the base58check version byte of snap addresses.
	// 0x3f makes every address start with 'S'.
	AddressVersion = 0x3f

	addressPayloadLen = 20
	privateKeyLen     = 32
)

// KeyPair wraps a secp256k1 keypair. The private scalar exists only in
// memory; call Zero when the pair goes out of scope.
type KeyPair struct {
	priv *btcec.PrivateKey
	pub  *btcec.PublicKey
}

// GenerateKeyPair creates a fresh random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// KeyPairFromPrivate rebuilds a keypair from raw 32-byte private key material.
// Returns model.ErrKeyMalformed for anything that is not a valid scalar.
func KeyPairFromPrivate(raw []byte) (*KeyPair, error) {
	if len(raw) != privateKeyLen {
		return nil, model.ErrKeyMalformed
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	// A scalar of zero or one >= the curve order does not round-trip.
	if !bytes.Equal(priv.Serialize(), raw) || priv.Key.IsZero() {
		priv.Zero()
		return nil, model.ErrKeyMalformed
	}
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// PublicKey returns the compressed 33-byte public key.
func (kp *KeyPair) PublicKey() []byte {
	return kp.pub.SerializeCompressed()
}

// PrivateBytes returns a copy of the raw private key. The caller owns the
// copy and must wipe it after use.
func (kp *KeyPair) PrivateBytes() []byte {
	return kp.priv.Serialize()
}

// Address returns the wallet's network address.
func (kp *KeyPair) Address() string {
	return DeriveAddress(kp.PublicKey())
}

// Sign produces a deterministic (RFC6979) ECDSA signature over a 32-byte
// digest. Deterministic nonces rule out nonce reuse leaking the key.
func (kp *KeyPair) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return ecdsa.Sign(kp.priv, digest).Serialize(), nil
}

// Zero wipes the private scalar from memory.
func (kp *KeyPair) Zero() {
	if kp.priv != nil {
		kp.priv.Zero()
	}
}

// DeriveAddress maps a compressed public key to its base58check address.
func DeriveAddress(publicKey []byte) string {
	return base58.CheckEncode(btcutil.Hash160(publicKey), AddressVersion)
}

// ValidateAddress checks that s is a well-formed snap address.
func ValidateAddress(s string) error {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}
	if version != AddressVersion {
		return fmt.Errorf("invalid address %q: wrong version byte 0x%02x", s, version)
	}
	if len(payload) != addressPayloadLen {
		return fmt.Errorf("invalid address %q: payload is %d bytes", s, len(payload))
	}
	return nil
}

// Verify checks a DER signature over a 32-byte digest against a compressed
// public key. It never returns an error: any malformed input is just false.
func Verify(publicKey, digest, sig []byte) bool {
	if len(digest) != 32 {
		return false
	}
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, pub)
}
