package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapcoin/snapwallet/internal/model"
)

const owner = "STestOwnerAddress"

type fakeSource struct {
	utxos []model.UTXO
	err   error
	calls int
}

func (f *fakeSource) GetUTXOs(_ context.Context, _ string) ([]model.UTXO, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.UTXO{}, f.utxos...), nil
}

func utxo(seed byte, index uint32, amount uint64) model.UTXO {
	var txid chainhash.Hash
	txid[0] = seed
	return model.UTXO{TxID: txid, Index: index, Address: owner, Amount: amount}
}

func outpoints(utxos []model.UTXO) []string {
	out := make([]string, len(utxos))
	for i, u := range utxos {
		out[i] = u.Outpoint()
	}
	return out
}

func TestRefreshReplacesSnapshotWholesale(t *testing.T) {
	src := &fakeSource{utxos: []model.UTXO{utxo(1, 0, 70), utxo(2, 0, 50)}}
	l := New(src, owner, time.Hour)

	require.NoError(t, l.Refresh(context.Background()))
	assert.Len(t, l.Available(), 2)
	assert.Equal(t, uint64(1), l.FetchedAt())

	// The node stops reporting one output; it must vanish, not linger.
	src.utxos = []model.UTXO{utxo(2, 0, 50)}
	require.NoError(t, l.Refresh(context.Background()))
	avail := l.Available()
	require.Len(t, avail, 1)
	assert.Equal(t, uint64(50), avail[0].Amount)
	assert.Equal(t, uint64(2), l.FetchedAt())
}

func TestRefreshIdempotent(t *testing.T) {
	src := &fakeSource{utxos: []model.UTXO{utxo(1, 0, 70), utxo(2, 1, 50)}}
	l := New(src, owner, time.Hour)

	require.NoError(t, l.Refresh(context.Background()))
	first := l.Available()
	require.NoError(t, l.Refresh(context.Background()))
	second := l.Available()
	assert.Equal(t, outpoints(first), outpoints(second))
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	src := &fakeSource{utxos: []model.UTXO{utxo(1, 0, 70)}}
	l := New(src, owner, time.Hour)
	require.NoError(t, l.Refresh(context.Background()))

	src.err = context.DeadlineExceeded
	assert.Error(t, l.Refresh(context.Background()))
	assert.Len(t, l.Available(), 1, "failed refresh must not clobber the cache")
}

func TestPendingExcludedFromAvailable(t *testing.T) {
	inputs := []model.UTXO{utxo(1, 0, 70), utxo(2, 0, 50)}
	src := &fakeSource{utxos: append([]model.UTXO{utxo(3, 0, 30)}, inputs...)}
	l := New(src, owner, time.Hour)
	require.NoError(t, l.Refresh(context.Background()))

	var txid chainhash.Hash
	txid[31] = 0xaa
	l.MarkPending(txid, inputs)

	avail := l.Available()
	require.Len(t, avail, 1)
	assert.Equal(t, uint64(30), avail[0].Amount)

	// A refresh where the node still reports the inputs as unspent must not
	// resurrect them.
	require.NoError(t, l.Refresh(context.Background()))
	avail = l.Available()
	require.Len(t, avail, 1)
	assert.Equal(t, uint64(30), avail[0].Amount)
	assert.Equal(t, 1, l.PendingCount())
}

func TestPendingClearedWhenInputsSpent(t *testing.T) {
	inputs := []model.UTXO{utxo(1, 0, 70)}
	src := &fakeSource{utxos: append([]model.UTXO{utxo(3, 0, 30)}, inputs...)}
	l := New(src, owner, time.Hour)
	require.NoError(t, l.Refresh(context.Background()))

	var txid chainhash.Hash
	txid[31] = 0xbb
	l.MarkPending(txid, inputs)

	// Node no longer reports the marked input: the spend went through.
	src.utxos = []model.UTXO{utxo(3, 0, 30)}
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, 0, l.PendingCount())
}

func TestPendingExpiresAfterTTL(t *testing.T) {
	inputs := []model.UTXO{utxo(1, 0, 70)}
	src := &fakeSource{utxos: inputs}
	l := New(src, owner, 10*time.Millisecond)
	require.NoError(t, l.Refresh(context.Background()))

	var txid chainhash.Hash
	l.MarkPending(txid, inputs)
	assert.Empty(t, l.Available())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, 0, l.PendingCount())
	assert.Len(t, l.Available(), 1)
}

func TestClearPending(t *testing.T) {
	inputs := []model.UTXO{utxo(1, 0, 70)}
	src := &fakeSource{utxos: inputs}
	l := New(src, owner, time.Hour)
	require.NoError(t, l.Refresh(context.Background()))

	var txid chainhash.Hash
	l.MarkPending(txid, inputs)
	assert.Empty(t, l.Available())

	l.ClearPending(txid)
	assert.Len(t, l.Available(), 1)
	assert.Equal(t, 0, l.PendingCount())
}
