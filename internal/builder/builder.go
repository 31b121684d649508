// Package builder turns payment requests into signed transactions: greedy
// coin selection over the ledger's available set, size-based fees, change
// and dust handling, deterministic signing, submission.
package builder

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/ledger"
	"github.com/snapcoin/snapwallet/internal/model"
)

// FeePolicy prices a transaction by its size in inputs and outputs.
type FeePolicy struct {
	Base      uint64
	PerInput  uint64
	PerOutput uint64
}

// Fee returns the fee in nano for a transaction of the given shape.
func (p FeePolicy) Fee(nInputs, nOutputs int) uint64 {
	return p.Base + p.PerInput*uint64(nInputs) + p.PerOutput*uint64(nOutputs)
}

// Submitter hands a signed transaction to the network. Satisfied by the node
// client.
type Submitter interface {
	Submit(ctx context.Context, tx *model.SignedTransaction) (chainhash.Hash, error)
}

// Builder builds, signs and submits transactions for one wallet.
type Builder struct {
	ledger *ledger.Ledger
	node   Submitter
	policy FeePolicy
	dust   uint64
	log    *zap.Logger
}

// New wires a builder over a wallet's ledger. dust is the smallest change
// worth creating an output for; anything below folds into the fee.
func New(l *ledger.Ledger, node Submitter, policy FeePolicy, dust uint64, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{ledger: l, node: node, policy: policy, dust: dust, log: log}
}

// Build selects inputs for the recipients and computes fee and change.
// Selection is greedy largest-first with a lexicographic outpoint tiebreak,
// so the same available set always yields the same transaction.
func (b *Builder) Build(recipients []model.TxOutput) (*model.UnsignedTransaction, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("recipient list cannot be empty")
	}

	var total uint64
	for _, r := range recipients {
		if r.Amount == 0 {
			return nil, fmt.Errorf("recipient amount must be positive")
		}
		if err := crypto.ValidateAddress(r.Address); err != nil {
			return nil, err
		}
		if total > math.MaxUint64-r.Amount {
			return nil, fmt.Errorf("requested total overflows nano units")
		}
		total += r.Amount
	}

	available := b.ledger.Available()
	// Largest first; outpoint breaks amount ties so selection is total-ordered.
	sort.Slice(available, func(i, j int) bool {
		if available[i].Amount != available[j].Amount {
			return available[i].Amount > available[j].Amount
		}
		return available[i].Outpoint() < available[j].Outpoint()
	})

	var availableSum uint64
	for _, u := range available {
		availableSum += u.Amount
	}

	nOut := len(recipients)
	// The fee only grows the required total; a request this close to the
	// integer ceiling cannot be paid for and would wrap every comparison below.
	if maxFee := b.policy.Fee(len(available), nOut+1); total > math.MaxUint64-maxFee {
		return nil, fmt.Errorf("requested total overflows nano units")
	}

	var selected []model.UTXO
	var selectedSum uint64
	for _, u := range available {
		if selectedSum >= total && selectedSum-total >= b.policy.Fee(len(selected), nOut+1) {
			break
		}
		selected = append(selected, u)
		selectedSum += u.Amount
	}

	feeWithChange := b.policy.Fee(len(selected), nOut+1)
	feeNoChange := b.policy.Fee(len(selected), nOut)

	tx := &model.UnsignedTransaction{Inputs: selected}
	switch {
	case selectedSum >= total && selectedSum-total >= feeWithChange:
		remainder := selectedSum - total - feeWithChange
		if remainder >= b.dust {
			tx.Outputs = append(append([]model.TxOutput{}, recipients...),
				model.TxOutput{Address: b.ledger.Address(), Amount: remainder})
			tx.Fee = feeWithChange
		} else {
			// Dust change is not worth an output; it folds into the fee.
			tx.Outputs = append([]model.TxOutput{}, recipients...)
			tx.Fee = selectedSum - total
		}
	case selectedSum >= total && selectedSum-total >= feeNoChange:
		tx.Outputs = append([]model.TxOutput{}, recipients...)
		tx.Fee = selectedSum - total
	default:
		return nil, &model.InsufficientFundsError{
			Required:  total + b.policy.Fee(len(available), nOut+1),
			Available: availableSum,
		}
	}

	if tx.InputSum() != tx.OutputSum()+tx.Fee {
		return nil, &model.InternalInvariantError{
			Msg: fmt.Sprintf("input sum %d != output sum %d + fee %d", tx.InputSum(), tx.OutputSum(), tx.Fee),
		}
	}
	return tx, nil
}

// Sign attaches one witness per input over the canonical digest and fixes
// the transaction id. Every input must belong to the signing key's address.
func (b *Builder) Sign(tx *model.UnsignedTransaction, kp *crypto.KeyPair) (*model.SignedTransaction, error) {
	owner := kp.Address()
	for _, in := range tx.Inputs {
		if in.Address != owner {
			return nil, fmt.Errorf("input %s belongs to %s, not to the signing wallet", in.Outpoint(), in.Address)
		}
	}

	digest := Digest(tx)
	publicKey := kp.PublicKey()

	witnesses := make([]model.InputWitness, 0, len(tx.Inputs))
	for range tx.Inputs {
		sig, err := kp.Sign(digest[:])
		if err != nil {
			return nil, err
		}
		if !crypto.Verify(publicKey, digest[:], sig) {
			return nil, &model.InternalInvariantError{Msg: "fresh signature failed self-verification"}
		}
		witnesses = append(witnesses, model.InputWitness{PublicKey: publicKey, Signature: sig})
	}

	return &model.SignedTransaction{
		UnsignedTransaction: *tx,
		Witnesses:           witnesses,
		TxID:                txid(tx, witnesses),
	}, nil
}

// Submit marks the inputs pending and hands the transaction to the node.
// On rejection or transport failure the marks are rolled back and the error
// surfaces; nothing is retried.
func (b *Builder) Submit(ctx context.Context, tx *model.SignedTransaction) (chainhash.Hash, error) {
	b.ledger.MarkPending(tx.TxID, tx.Inputs)

	confirmed, err := b.node.Submit(ctx, tx)
	if err != nil {
		b.ledger.ClearPending(tx.TxID)
		return chainhash.Hash{}, err
	}
	b.log.Info("inputs marked pending",
		zap.String("txId", confirmed.String()),
		zap.Int("inputs", len(tx.Inputs)))
	return confirmed, nil
}
