// Package store persists the collection of encrypted wallets. Every mutation
// is durably written before it returns success, copy-then-swap: the previous
// file stays intact until the replacement is fully on disk.
package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/model"
	"github.com/snapcoin/snapwallet/internal/vault"
)

// storeVersion is the current on-disk format version.
const storeVersion = 1

// Options carries the policy knobs the store needs.
type Options struct {
	KDF          model.KDFParams
	UnlockBurst  int
	UnlockPerMin int
}

// Store is the on-disk collection of named wallets plus the current pointer.
type Store struct {
	path    string
	kdf     model.KDFParams
	limiter *unlockLimiter

	mu   sync.Mutex
	file model.StoreFile
}

// Load reads the wallet store from path, creating an empty store in memory
// when the file does not exist yet.
func Load(path string, opts Options) (*Store, error) {
	s := &Store{
		path:    path,
		kdf:     opts.KDF,
		limiter: newUnlockLimiter(opts.UnlockPerMin, opts.UnlockBurst),
		file: model.StoreFile{
			Version: storeVersion,
			Wallets: make(map[string]model.EncryptedWallet),
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet store: %w", err)
	}

	if err := json.Unmarshal(data, &s.file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet store: %w", err)
	}
	if s.file.Wallets == nil {
		s.file.Wallets = make(map[string]model.EncryptedWallet)
	}
	// A dangling current pointer is repaired, not fatal.
	if s.file.Current != "" {
		if _, ok := s.file.Wallets[s.file.Current]; !ok {
			s.file.Current = ""
		}
	}
	return s, nil
}

// Create generates a new wallet under name, or imports privateKey when it is
// non-nil, and seals it under pin. The first wallet becomes current.
func (s *Store) Create(name, pin string, privateKey []byte) (model.WalletSummary, error) {
	if name == "" {
		return model.WalletSummary{}, fmt.Errorf("wallet name cannot be empty")
	}
	if err := vault.ValidatePIN(pin); err != nil {
		return model.WalletSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.file.Wallets[name]; ok {
		return model.WalletSummary{}, &model.DuplicateNameError{Name: name}
	}

	var kp *crypto.KeyPair
	var err error
	if privateKey == nil {
		kp, err = crypto.GenerateKeyPair()
	} else {
		kp, err = crypto.KeyPairFromPrivate(privateKey)
	}
	if err != nil {
		return model.WalletSummary{}, err
	}
	defer kp.Zero()

	raw := kp.PrivateBytes()
	defer clear(raw)

	salt, nonce, cipherText, err := vault.Seal(pin, raw, s.kdf)
	if err != nil {
		return model.WalletSummary{}, fmt.Errorf("failed to encrypt wallet: %w", err)
	}

	address := kp.Address()
	qr, err := addressQR(address)
	if err != nil {
		return model.WalletSummary{}, err
	}

	record := model.EncryptedWallet{
		Address:    address,
		PublicKey:  base64.StdEncoding.EncodeToString(kp.PublicKey()),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(cipherText),
		KDF:        s.kdf,
		QR:         qr,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}

	s.file.Wallets[name] = record
	prevCurrent := s.file.Current
	if s.file.Current == "" {
		s.file.Current = name
	}
	if err := s.persistLocked(); err != nil {
		delete(s.file.Wallets, name)
		s.file.Current = prevCurrent
		return model.WalletSummary{}, err
	}

	return model.WalletSummary{
		Name:      name,
		Address:   address,
		PublicKey: record.PublicKey,
		Current:   s.file.Current == name,
	}, nil
}

// List returns wallet summaries ordered by name. Never private material.
func (s *Store) List() []model.WalletSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.file.Wallets))
	for name := range s.file.Wallets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.WalletSummary, 0, len(names))
	for _, name := range names {
		w := s.file.Wallets[name]
		out = append(out, model.WalletSummary{
			Name:      name,
			Address:   w.Address,
			PublicKey: w.PublicKey,
			Current:   s.file.Current == name,
		})
	}
	return out
}

// Get returns the persisted record for a wallet (public fields only are
// meaningful to callers; the ciphertext is opaque without the PIN).
func (s *Store) Get(name string) (model.EncryptedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.file.Wallets[name]
	if !ok {
		return model.EncryptedWallet{}, &model.NotFoundError{Name: name}
	}
	return w, nil
}

// Current returns the name of the current wallet, empty when unset.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Current
}

// Switch sets the current wallet pointer.
func (s *Store) Switch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.file.Wallets[name]; !ok {
		return &model.NotFoundError{Name: name}
	}
	prev := s.file.Current
	s.file.Current = name
	if err := s.persistLocked(); err != nil {
		s.file.Current = prev
		return err
	}
	return nil
}

// Delete removes a wallet. Deleting the current wallet leaves current unset;
// the caller must switch or create before further wallet-scoped operations.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.file.Wallets[name]
	if !ok {
		return &model.NotFoundError{Name: name}
	}
	prevCurrent := s.file.Current

	delete(s.file.Wallets, name)
	if s.file.Current == name {
		s.file.Current = ""
	}
	if err := s.persistLocked(); err != nil {
		s.file.Wallets[name] = record
		s.file.Current = prevCurrent
		return err
	}
	return nil
}

// Unlock decrypts a wallet's private key and returns the live keypair.
// Attempts are rate-limited; callers must Zero the keypair after use.
func (s *Store) Unlock(name, pin string) (*crypto.KeyPair, error) {
	if ok, retryAfter := s.limiter.allow(name); !ok {
		return nil, &model.RateLimitError{RetryAfter: retryAfter}
	}

	record, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	raw, err := vault.Open(pin, &record)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	kp, err := crypto.KeyPairFromPrivate(raw)
	if err != nil {
		return nil, err
	}
	// The record's address must re-derive from the decrypted key.
	if kp.Address() != record.Address {
		kp.Zero()
		return nil, model.ErrAuthentication
	}

	s.limiter.reset(name)
	return kp, nil
}

// ChangePIN re-encrypts a wallet under a new PIN with a fresh salt. The old
// record is replaced only after the new one is durably on disk.
func (s *Store) ChangePIN(name, oldPIN, newPIN string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.file.Wallets[name]
	if !ok {
		return &model.NotFoundError{Name: name}
	}

	resealed, err := vault.ChangePIN(oldPIN, newPIN, old, s.kdf)
	if err != nil {
		return err
	}

	s.file.Wallets[name] = resealed
	if err := s.persistLocked(); err != nil {
		s.file.Wallets[name] = old
		return err
	}
	return nil
}

// persistLocked writes the full store: temp file in the same directory,
// fsync, then rename over the old file. Callers hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(&s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal wallet store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snap-wallet-*")
	if err != nil {
		return fmt.Errorf("failed to create temp wallet file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write wallet store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync wallet store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close wallet store: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod wallet store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace wallet store: %w", err)
	}
	return nil
}

// addressQR renders the address as a base64 PNG for receive flows.
func addressQR(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
