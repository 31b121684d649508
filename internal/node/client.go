// Package node talks to the remote snap node over its JSON/HTTP API. The
// node is untrusted: everything it returns is advisory, and whatever can be
// re-checked locally is re-checked before it leaves this package.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/model"
)

const apiPrefix = "/api/v1"

// Client is the engine's request/response contract with the node.
type Client struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// New builds a client for the node at host:port. A malformed address is a
// fatal ConfigurationError.
func New(addr string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" || port == "" {
		return nil, &model.ConfigurationError{Reason: fmt.Sprintf("node address must be <host>:<port>, got %q", addr)}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: "http://" + net.JoinHostPort(host, port) + apiPrefix,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}, nil
}

// GetBalance returns the node-reported balance in nano. There is no local
// proof for this figure; callers must present it as node-reported.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var resp balanceResponse
	if err := c.get(ctx, "balance", "/balance/"+url.PathEscape(address), &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// GetUTXOs fetches unspent outputs for an address. Entries that do not carry
// the queried address, carry a zero amount, or repeat an outpoint are dropped:
// the node cannot plant foreign or duplicate outputs in the ledger.
func (c *Client) GetUTXOs(ctx context.Context, address string) ([]model.UTXO, error) {
	if err := crypto.ValidateAddress(address); err != nil {
		return nil, err
	}

	var resp utxosResponse
	if err := c.get(ctx, "utxos", "/utxos/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(resp.UTXOs))
	out := make([]model.UTXO, 0, len(resp.UTXOs))
	for _, w := range resp.UTXOs {
		u, err := w.toModel()
		if err != nil {
			c.log.Warn("dropping malformed utxo from node", zap.Error(err))
			continue
		}
		if u.Address != address {
			c.log.Warn("dropping utxo with foreign address",
				zap.String("outpoint", u.Outpoint()),
				zap.String("address", u.Address))
			continue
		}
		if u.Amount == 0 {
			c.log.Warn("dropping zero-amount utxo", zap.String("outpoint", u.Outpoint()))
			continue
		}
		if seen[u.Outpoint()] {
			c.log.Warn("dropping duplicate utxo", zap.String("outpoint", u.Outpoint()))
			continue
		}
		seen[u.Outpoint()] = true
		out = append(out, u)
	}
	return out, nil
}

// GetHistory returns the node's transaction history for an address, newest
// first as the node orders it. Confirmations are node-reported.
func (c *Client) GetHistory(ctx context.Context, address string) ([]model.TransactionRecord, error) {
	var resp historyResponse
	if err := c.get(ctx, "history", "/history/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}

	out := make([]model.TransactionRecord, 0, len(resp.Transactions))
	for _, w := range resp.Transactions {
		txid, err := chainhash.NewHashFromStr(w.TxID)
		if err != nil {
			c.log.Warn("dropping history entry with malformed txid", zap.String("txId", w.TxID))
			continue
		}
		dir := model.Direction(w.Direction)
		switch dir {
		case model.DirectionIncoming, model.DirectionOutgoing, model.DirectionSelf:
		default:
			c.log.Warn("dropping history entry with unknown direction", zap.String("direction", w.Direction))
			continue
		}
		out = append(out, model.TransactionRecord{
			TxID:             *txid,
			Direction:        dir,
			Amount:           w.Amount,
			CounterAddresses: w.CounterAddresses,
			Confirmations:    w.Confirmations,
			Timestamp:        w.Timestamp,
		})
	}
	return out, nil
}

// GetTransaction fetches one transaction's detail by id.
func (c *Client) GetTransaction(ctx context.Context, txid chainhash.Hash) (*model.TransactionDetail, error) {
	var resp detailResponse
	if err := c.get(ctx, "tx-info", "/tx/"+txid.String(), &resp); err != nil {
		return nil, err
	}

	parsed, err := chainhash.NewHashFromStr(resp.TxID)
	if err != nil || *parsed != txid {
		return nil, &model.NetworkError{Op: "tx-info", Err: fmt.Errorf("node returned detail for %q, asked for %s", resp.TxID, txid)}
	}

	detail := &model.TransactionDetail{
		TxID:          txid,
		Fee:           resp.Fee,
		Confirmations: resp.Confirmations,
		Timestamp:     resp.Timestamp,
	}
	for _, w := range resp.Inputs {
		u, err := w.toModel()
		if err != nil {
			return nil, &model.NetworkError{Op: "tx-info", Err: err}
		}
		detail.Inputs = append(detail.Inputs, u)
	}
	for _, o := range resp.Outputs {
		detail.Outputs = append(detail.Outputs, model.TxOutput{Address: o.Address, Amount: o.Amount})
	}
	return detail, nil
}

// Submit hands a signed transaction to the node. A refusal comes back as a
// RejectionError; it is never retried here.
func (c *Client) Submit(ctx context.Context, tx *model.SignedTransaction) (chainhash.Hash, error) {
	body, err := json.Marshal(submitRequestFrom(tx))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", bytes.NewReader(body))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	httpResp, err := c.client.Do(req)
	if err != nil {
		return chainhash.Hash{}, &model.NetworkError{Op: "submit", Err: err}
	}
	defer httpResp.Body.Close()

	var resp submitResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return chainhash.Hash{}, &model.NetworkError{Op: "submit", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if resp.Rejected != "" {
		return chainhash.Hash{}, &model.RejectionError{TxID: tx.TxID.String(), Reason: resp.Rejected}
	}
	if httpResp.StatusCode != http.StatusOK {
		return chainhash.Hash{}, &model.NetworkError{Op: "submit", Err: fmt.Errorf("status %d", httpResp.StatusCode)}
	}

	txid, err := chainhash.NewHashFromStr(resp.TxID)
	if err != nil {
		return chainhash.Hash{}, &model.NetworkError{Op: "submit", Err: fmt.Errorf("invalid txid in response: %w", err)}
	}
	c.log.Info("transaction submitted", zap.String("txId", txid.String()))
	return *txid, nil
}

// get performs one GET with a correlation id and decodes JSON into out.
func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &model.NetworkError{Op: op, Err: fmt.Errorf("not found")}
	}
	if resp.StatusCode != http.StatusOK {
		return &model.NetworkError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
