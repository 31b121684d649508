package engine

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapcoin/snapwallet/internal/builder"
	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/ledger"
	"github.com/snapcoin/snapwallet/internal/model"
	"github.com/snapcoin/snapwallet/internal/node"
)

// Session is one unlocked wallet: the live keypair plus the per-wallet UTXO
// ledger and builder. Sessions are not safe for concurrent Send calls from
// multiple goroutines by design intent, but ledger mutations they trigger
// are serialized internally.
type Session struct {
	ID     uuid.UUID
	Wallet string

	address string
	keys    *crypto.KeyPair
	ledger  *ledger.Ledger
	builder *builder.Builder
	node    *node.Client
	log     *zap.Logger
}

// Address returns the session wallet's address.
func (s *Session) Address() string { return s.address }

// Balance returns the node-reported balance. It is advisory: the node can
// lie, and there is no local proof for this figure.
func (s *Session) Balance(ctx context.Context) (model.BalanceView, error) {
	balance, err := s.node.GetBalance(ctx, s.address)
	if err != nil {
		return model.BalanceView{}, err
	}
	return model.BalanceView{Address: s.address, NodeReported: balance}, nil
}

// Available refreshes the ledger and returns the spendable set: the node's
// current view minus any outputs committed to in-flight sends.
func (s *Session) Available(ctx context.Context) ([]model.UTXO, error) {
	if err := s.ledger.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.ledger.Available(), nil
}

// History returns the node's transaction history for this wallet.
func (s *Session) History(ctx context.Context) ([]model.TransactionRecord, error) {
	return s.node.GetHistory(ctx, s.address)
}

// TxInfo fetches one transaction's detail by its hex id.
func (s *Session) TxInfo(ctx context.Context, id string) (*model.TransactionDetail, error) {
	txid, err := chainhash.NewHashFromStr(id)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", id, err)
	}
	return s.node.GetTransaction(ctx, *txid)
}

// Send pays the recipients: refresh, select, sign, submit. Inputs are marked
// pending only at submission; abandoning before that has no side effects.
func (s *Session) Send(ctx context.Context, recipients []model.TxOutput) (chainhash.Hash, error) {
	if err := s.ledger.Refresh(ctx); err != nil {
		return chainhash.Hash{}, err
	}

	unsigned, err := s.builder.Build(recipients)
	if err != nil {
		return chainhash.Hash{}, err
	}

	signed, err := s.builder.Sign(unsigned, s.keys)
	if err != nil {
		return chainhash.Hash{}, err
	}

	txid, err := s.builder.Submit(ctx, signed)
	if err != nil {
		return chainhash.Hash{}, err
	}

	s.log.Info("send complete",
		zap.String("session", s.ID.String()),
		zap.String("txId", txid.String()),
		zap.Int("recipients", len(recipients)),
		zap.Uint64("fee", signed.Fee))
	return txid, nil
}

// Close wipes the session's key material.
func (s *Session) Close() {
	if s.keys != nil {
		s.keys.Zero()
	}
}
