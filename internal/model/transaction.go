package model

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Direction classifies a history entry relative to the wallet's address.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionSelf     Direction = "self"
)

// UTXO is a spendable output. Identity is (TxID, Index).
// Confirmations are node-reported and carry no cryptographic guarantee.
type UTXO struct {
	TxID          chainhash.Hash
	Index         uint32
	Address       string
	Amount        uint64 // nano
	Confirmations uint64
}

// Outpoint returns the canonical "txid:index" identity string.
func (u UTXO) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxID.String(), u.Index)
}

// TxOutput is one (address, amount) pair of a transaction.
type TxOutput struct {
	Address string
	Amount  uint64 // nano
}

// UnsignedTransaction holds selected inputs, outputs and the exact fee.
// Invariant: sum(inputs) == sum(outputs) + fee, no rounding anywhere.
type UnsignedTransaction struct {
	Inputs  []UTXO
	Outputs []TxOutput
	Fee     uint64 // nano
}

// InputSum returns the total of all input amounts.
func (t *UnsignedTransaction) InputSum() uint64 {
	var sum uint64
	for _, in := range t.Inputs {
		sum += in.Amount
	}
	return sum
}

// OutputSum returns the total of all output amounts, fee excluded.
func (t *UnsignedTransaction) OutputSum() uint64 {
	var sum uint64
	for _, out := range t.Outputs {
		sum += out.Amount
	}
	return sum
}

// InputWitness authorizes one input: a signature over the canonical digest
// plus the compressed public key it verifies against.
type InputWitness struct {
	PublicKey []byte
	Signature []byte
}

// SignedTransaction is an UnsignedTransaction plus one witness per input.
type SignedTransaction struct {
	UnsignedTransaction
	Witnesses []InputWitness
	TxID      chainhash.Hash
}

// TransactionRecord is a read-only history entry derived from node data.
// Confirmations are node-reported, not locally verified.
type TransactionRecord struct {
	TxID             chainhash.Hash
	Direction        Direction
	Amount           uint64 // nano
	CounterAddresses []string
	Confirmations    uint64
	Timestamp        time.Time
}

// TransactionDetail is the node's full view of a single transaction.
type TransactionDetail struct {
	TxID          chainhash.Hash
	Inputs        []UTXO
	Outputs       []TxOutput
	Fee           uint64
	Confirmations uint64 // node-reported
	Timestamp     time.Time
}
