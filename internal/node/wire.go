package node

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/snapcoin/snapwallet/internal/model"
)

// Wire types for the node's JSON API (v1). Hashes travel as hex strings,
// byte blobs as base64.

type balanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type utxoWire struct {
	TxID          string `json:"txId"`
	Index         uint32 `json:"index"`
	Address       string `json:"address"`
	Amount        uint64 `json:"amount"`
	Confirmations uint64 `json:"confirmations"`
}

type utxosResponse struct {
	Address string     `json:"address"`
	UTXOs   []utxoWire `json:"utxos"`
}

type recordWire struct {
	TxID             string    `json:"txId"`
	Direction        string    `json:"direction"`
	Amount           uint64    `json:"amount"`
	CounterAddresses []string  `json:"counterAddresses"`
	Confirmations    uint64    `json:"confirmations"`
	Timestamp        time.Time `json:"timestamp"`
}

type historyResponse struct {
	Address      string       `json:"address"`
	Transactions []recordWire `json:"transactions"`
}

type outputWire struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type detailResponse struct {
	TxID          string       `json:"txId"`
	Inputs        []utxoWire   `json:"inputs"`
	Outputs       []outputWire `json:"outputs"`
	Fee           uint64       `json:"fee"`
	Confirmations uint64       `json:"confirmations"`
	Timestamp     time.Time    `json:"timestamp"`
}

type witnessWire struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type submitRequest struct {
	TxID      string        `json:"txId"`
	Inputs    []utxoWire    `json:"inputs"`
	Outputs   []outputWire  `json:"outputs"`
	Fee       uint64        `json:"fee"`
	Witnesses []witnessWire `json:"witnesses"`
}

type submitResponse struct {
	TxID     string `json:"txId"`
	Rejected string `json:"rejected,omitempty"`
}

func (u utxoWire) toModel() (model.UTXO, error) {
	txid, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return model.UTXO{}, fmt.Errorf("invalid txid %q: %w", u.TxID, err)
	}
	return model.UTXO{
		TxID:          *txid,
		Index:         u.Index,
		Address:       u.Address,
		Amount:        u.Amount,
		Confirmations: u.Confirmations,
	}, nil
}

func utxoToWire(u model.UTXO) utxoWire {
	return utxoWire{
		TxID:          u.TxID.String(),
		Index:         u.Index,
		Address:       u.Address,
		Amount:        u.Amount,
		Confirmations: u.Confirmations,
	}
}

func submitRequestFrom(tx *model.SignedTransaction) submitRequest {
	req := submitRequest{
		TxID: tx.TxID.String(),
		Fee:  tx.Fee,
	}
	for _, in := range tx.Inputs {
		req.Inputs = append(req.Inputs, utxoToWire(in))
	}
	for _, out := range tx.Outputs {
		req.Outputs = append(req.Outputs, outputWire{Address: out.Address, Amount: out.Amount})
	}
	for _, w := range tx.Witnesses {
		req.Witnesses = append(req.Witnesses, witnessWire{
			PublicKey: base64.StdEncoding.EncodeToString(w.PublicKey),
			Signature: base64.StdEncoding.EncodeToString(w.Signature),
		})
	}
	return req
}
