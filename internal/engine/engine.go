// Package engine exposes one function per interactive wallet command. All
// wallet-scoped operations hang off an explicit Session holding the unlocked
// keypair — there is no ambient current-wallet state in the engine.
package engine

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapcoin/snapwallet/internal/builder"
	"github.com/snapcoin/snapwallet/internal/ledger"
	"github.com/snapcoin/snapwallet/internal/model"
	"github.com/snapcoin/snapwallet/internal/node"
	"github.com/snapcoin/snapwallet/internal/store"
)

// Engine ties the wallet store and the node client together.
type Engine struct {
	store      *store.Store
	node       *node.Client
	policy     builder.FeePolicy
	dust       uint64
	pendingTTL time.Duration
	log        *zap.Logger
}

// New builds an engine. dust and policy come from configuration.
func New(s *store.Store, n *node.Client, policy builder.FeePolicy, dust uint64, pendingTTL time.Duration, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:      s,
		node:       n,
		policy:     policy,
		dust:       dust,
		pendingTTL: pendingTTL,
		log:        log,
	}
}

// Wallets lists all wallets, current one flagged.
func (e *Engine) Wallets() []model.WalletSummary {
	return e.store.List()
}

// CurrentWallet returns the persisted current wallet name, empty when unset.
func (e *Engine) CurrentWallet() string {
	return e.store.Current()
}

// CreateWallet creates (or, with privateKey set, imports) a wallet.
func (e *Engine) CreateWallet(name, pin string, privateKey []byte) (model.WalletSummary, error) {
	summary, err := e.store.Create(name, pin, privateKey)
	if err != nil {
		return model.WalletSummary{}, err
	}
	e.log.Info("wallet created", zap.String("wallet", name), zap.String("address", summary.Address))
	return summary, nil
}

// DeleteWallet removes a wallet from the store.
func (e *Engine) DeleteWallet(name string) error {
	return e.store.Delete(name)
}

// SwitchWallet moves the current pointer.
func (e *Engine) SwitchWallet(name string) error {
	return e.store.Switch(name)
}

// RevealPublic returns the public summary and QR code of a wallet.
func (e *Engine) RevealPublic(name string) (model.WalletSummary, string, error) {
	record, err := e.store.Get(name)
	if err != nil {
		return model.WalletSummary{}, "", err
	}
	return model.WalletSummary{
		Name:      name,
		Address:   record.Address,
		PublicKey: record.PublicKey,
		Current:   e.store.Current() == name,
	}, record.QR, nil
}

// RevealPrivate decrypts and returns the hex private key. The PIN is checked
// freshly here, rate limit included, even inside an unlocked session.
func (e *Engine) RevealPrivate(name, pin string) (string, error) {
	kp, err := e.store.Unlock(name, pin)
	if err != nil {
		return "", err
	}
	defer kp.Zero()

	raw := kp.PrivateBytes()
	defer clear(raw)
	return hex.EncodeToString(raw), nil
}

// ChangePIN re-encrypts a wallet under a new PIN.
func (e *Engine) ChangePIN(name, oldPIN, newPIN string) error {
	if err := e.store.ChangePIN(name, oldPIN, newPIN); err != nil {
		return err
	}
	e.log.Info("wallet PIN changed", zap.String("wallet", name))
	return nil
}

// VerifyPIN checks a PIN against a wallet without keeping the key around.
// Used for confirmation prompts (send, delete).
func (e *Engine) VerifyPIN(name, pin string) error {
	kp, err := e.store.Unlock(name, pin)
	if err != nil {
		return err
	}
	kp.Zero()
	return nil
}

// Unlock opens a wallet session: PIN verification, then a live keypair with
// its own UTXO ledger and transaction builder.
func (e *Engine) Unlock(name, pin string) (*Session, error) {
	kp, err := e.store.Unlock(name, pin)
	if err != nil {
		return nil, err
	}

	address := kp.Address()
	l := ledger.New(e.node, address, e.pendingTTL)

	s := &Session{
		ID:      uuid.New(),
		Wallet:  name,
		address: address,
		keys:    kp,
		ledger:  l,
		builder: builder.New(l, e.node, e.policy, e.dust, e.log),
		node:    e.node,
		log:     e.log,
	}
	e.log.Info("wallet unlocked",
		zap.String("wallet", name),
		zap.String("session", s.ID.String()))
	return s, nil
}
