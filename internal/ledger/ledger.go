// Package ledger caches the wallet's unspent outputs between node refreshes
// and keeps in-flight sends from double-spending an output before the
// network reflects the first spend.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/snapcoin/snapwallet/internal/model"
)

// UTXOSource fetches unspent outputs for an address. Satisfied by the node
// client; tests plug in fakes.
type UTXOSource interface {
	GetUTXOs(ctx context.Context, address string) ([]model.UTXO, error)
}

type pendingSpend struct {
	outpoints []string
	markedAt  time.Time
}

// Ledger is a per-wallet snapshot of unspent outputs. It is a cache, not a
// source of truth: the snapshot is replaced wholesale on every refresh, and
// only pending-spend markers survive refreshes.
type Ledger struct {
	address string
	source  UTXOSource
	ttl     time.Duration

	mu        sync.Mutex
	snapshot  []model.UTXO
	fetchedAt uint64 // logical refresh counter
	// pending groups by marking txid; the reverse index is by outpoint.
	pending          map[chainhash.Hash]*pendingSpend
	pendingOutpoints map[string]chainhash.Hash
}

// New builds an empty ledger for address. ttl bounds how long a pending
// marker survives without the node ever showing the inputs as spent.
func New(source UTXOSource, address string, ttl time.Duration) *Ledger {
	return &Ledger{
		address:          address,
		source:           source,
		ttl:              ttl,
		pending:          make(map[chainhash.Hash]*pendingSpend),
		pendingOutpoints: make(map[string]chainhash.Hash),
	}
}

// Address returns the owner address of this ledger.
func (l *Ledger) Address() string { return l.address }

// Refresh replaces the snapshot with the node's current view. The network
// call happens outside the lock. Pending markers are preserved, except
// groups whose inputs the node no longer reports (spent) or whose session
// TTL has elapsed — those are cleared.
func (l *Ledger) Refresh(ctx context.Context) error {
	utxos, err := l.source.GetUTXOs(ctx, l.address)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.snapshot = utxos
	l.fetchedAt++

	current := make(map[string]bool, len(utxos))
	for _, u := range utxos {
		current[u.Outpoint()] = true
	}

	now := time.Now()
	for txid, p := range l.pending {
		anyStillUnspent := false
		for _, op := range p.outpoints {
			if current[op] {
				anyStillUnspent = true
				break
			}
		}
		if !anyStillUnspent || (l.ttl > 0 && now.Sub(p.markedAt) > l.ttl) {
			l.clearPendingLocked(txid)
		}
	}
	return nil
}

// Available returns the snapshot minus all pending-spend outputs.
func (l *Ledger) Available() []model.UTXO {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.UTXO, 0, len(l.snapshot))
	for _, u := range l.snapshot {
		if _, marked := l.pendingOutpoints[u.Outpoint()]; marked {
			continue
		}
		out = append(out, u)
	}
	return out
}

// FetchedAt returns the logical timestamp of the current snapshot.
func (l *Ledger) FetchedAt() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetchedAt
}

// MarkPending records that txid has consumed the given inputs. Until the
// marker clears, those outputs are invisible to Available regardless of what
// the node reports.
func (l *Ledger) MarkPending(txid chainhash.Hash, inputs []model.UTXO) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := &pendingSpend{markedAt: time.Now()}
	for _, in := range inputs {
		op := in.Outpoint()
		p.outpoints = append(p.outpoints, op)
		l.pendingOutpoints[op] = txid
	}
	l.pending[txid] = p
}

// ClearPending drops the marker for txid, e.g. after the node rejected it.
func (l *Ledger) ClearPending(txid chainhash.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearPendingLocked(txid)
}

func (l *Ledger) clearPendingLocked(txid chainhash.Hash) {
	p, ok := l.pending[txid]
	if !ok {
		return
	}
	for _, op := range p.outpoints {
		if l.pendingOutpoints[op] == txid {
			delete(l.pendingOutpoints, op)
		}
	}
	delete(l.pending, txid)
}

// PendingCount reports how many in-flight transactions hold markers.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
