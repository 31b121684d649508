// Package vault derives an AES-256-GCM key from a 6-digit PIN with scrypt
// and uses it to protect private keys at rest. The KDF is deliberately
// expensive: together with unlock rate limiting it is what makes the tiny
// 10^6 PIN space survivable.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/snapcoin/snapwallet/internal/model"
)

const (
	pinLen   = 6
	saltLen  = 32
	nonceLen = 12
)

// ValidatePIN checks the PIN format: exactly six ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) != pinLen {
		return fmt.Errorf("PIN must be exactly %d digits", pinLen)
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return fmt.Errorf("PIN must contain only digits")
		}
	}
	return nil
}

// DeriveKey stretches a PIN and salt into a symmetric key.
func DeriveKey(pin string, salt []byte, p model.KDFParams) ([]byte, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(pin), salt, p.N, p.R, p.P, p.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts a private key under a PIN with a fresh salt and nonce.
// Returned values are raw bytes; the caller base64-encodes for persistence.
func Seal(pin string, privateKey []byte, p model.KDFParams) (salt, nonce, cipherText []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err = io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce = make([]byte, nonceLen)
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := DeriveKey(pin, salt, p)
	if err != nil {
		return nil, nil, nil, err
	}
	defer clear(key)

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	cipherText = aesGCM.Seal(nil, nonce, privateKey, nil)
	return salt, nonce, cipherText, nil
}

// Open decrypts a wallet record's private key. Any failure, wrong PIN or a
// tampered record, is the same model.ErrAuthentication: a corrupted salt,
// nonce or ciphertext field is indistinguishable from tampered ciphertext.
func Open(pin string, w *model.EncryptedWallet) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(w.Salt)
	if err != nil {
		return nil, model.ErrAuthentication
	}

	nonce, err := base64.StdEncoding.DecodeString(w.Nonce)
	if err != nil {
		return nil, model.ErrAuthentication
	}

	cipherText, err := base64.StdEncoding.DecodeString(w.CipherText)
	if err != nil {
		return nil, model.ErrAuthentication
	}

	key, err := DeriveKey(pin, salt, w.KDF)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, model.ErrAuthentication
	}
	return plaintext, nil
}

// ChangePIN re-seals a wallet record under a new PIN with a fresh salt and
// nonce. The input record is never mutated: the caller swaps in the returned
// copy only after it is durably persisted.
func ChangePIN(oldPIN, newPIN string, w model.EncryptedWallet, p model.KDFParams) (model.EncryptedWallet, error) {
	if err := ValidatePIN(newPIN); err != nil {
		return model.EncryptedWallet{}, err
	}

	privateKey, err := Open(oldPIN, &w)
	if err != nil {
		return model.EncryptedWallet{}, err
	}
	defer clear(privateKey)

	salt, nonce, cipherText, err := Seal(newPIN, privateKey, p)
	if err != nil {
		return model.EncryptedWallet{}, err
	}

	resealed := w
	resealed.Salt = base64.StdEncoding.EncodeToString(salt)
	resealed.Nonce = base64.StdEncoding.EncodeToString(nonce)
	resealed.CipherText = base64.StdEncoding.EncodeToString(cipherText)
	resealed.KDF = p
	return resealed, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
