package engine_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapcoin/snapwallet/internal/builder"
	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/engine"
	"github.com/snapcoin/snapwallet/internal/model"
	"github.com/snapcoin/snapwallet/internal/node"
	"github.com/snapcoin/snapwallet/internal/store"
)

// fakeNode is an in-memory snap node speaking the v1 JSON API. It serves a
// mutable UTXO set and either accepts or rejects submissions.
type fakeNode struct {
	mu        sync.Mutex
	balance   uint64
	utxos     []map[string]any
	rejectAll string // non-empty: reject every submission with this reason
	submitted int
	nextSeed  byte
}

func (f *fakeNode) setUTXOs(address string, amounts ...uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utxos = f.utxos[:0]
	f.balance = 0
	for _, a := range amounts {
		f.nextSeed++
		var txid chainhash.Hash
		txid[0] = f.nextSeed
		f.utxos = append(f.utxos, map[string]any{
			"txId":    txid.String(),
			"index":   0,
			"address": address,
			"amount":  a,
		})
		f.balance += a
	}
}

func (f *fakeNode) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/balance/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"balance": f.balance})
	})
	mux.HandleFunc("GET /api/v1/utxos/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"utxos": f.utxos})
	})
	mux.HandleFunc("GET /api/v1/history/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"transactions": []any{}})
	})
	mux.HandleFunc("POST /api/v1/tx", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitted++

		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if f.rejectAll != "" {
			json.NewEncoder(w).Encode(map[string]any{"rejected": f.rejectAll})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"txId": req["txId"]})
	})
	return mux
}

type fixture struct {
	eng  *engine.Engine
	node *fakeNode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fn := &fakeNode{}
	srv := httptest.NewServer(fn.handler())
	t.Cleanup(srv.Close)

	client, err := node.New(strings.TrimPrefix(srv.URL, "http://"), 5*time.Second, nil)
	require.NoError(t, err)

	s, err := store.Load(filepath.Join(t.TempDir(), "wallet.json"), store.Options{
		KDF:          model.KDFParams{N: 1024, R: 8, P: 1, KeyLen: 32},
		UnlockBurst:  100,
		UnlockPerMin: 100,
	})
	require.NoError(t, err)

	policy := builder.FeePolicy{Base: 1, PerInput: 1, PerOutput: 1}
	return &fixture{
		eng:  engine.New(s, client, policy, 1, time.Hour, nil),
		node: fn,
	}
}

const alicePIN = "123456"

func (f *fixture) createAlice(t *testing.T) model.WalletSummary {
	t.Helper()
	summary, err := f.eng.CreateWallet("alice", alicePIN, nil)
	require.NoError(t, err)
	return summary
}

func TestUnlockSession(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)

	sess, err := f.eng.Unlock("alice", alicePIN)
	require.NoError(t, err)
	defer sess.Close()
	assert.Equal(t, summary.Address, sess.Address())
	assert.Equal(t, "alice", sess.Wallet)

	_, err = f.eng.Unlock("alice", "000000")
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestBalanceIsNodeReported(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)
	f.node.setUTXOs(summary.Address, 70, 50)

	sess, err := f.eng.Unlock("alice", alicePIN)
	require.NoError(t, err)
	defer sess.Close()

	view, err := sess.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.Address, view.Address)
	assert.Equal(t, uint64(120), view.NodeReported)
}

func TestSendExcludesSpentInputsUntilConfirmed(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)
	f.node.setUTXOs(summary.Address, 70, 50, 30)

	sess, err := f.eng.Unlock("alice", alicePIN)
	require.NoError(t, err)
	defer sess.Close()

	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	defer recipient.Zero()

	txid, err := sess.Send(context.Background(), []model.TxOutput{
		{Address: recipient.Address(), Amount: 100},
	})
	require.NoError(t, err)
	assert.NotEqual(t, chainhash.Hash{}, txid)

	// The node still reports all three outputs as unspent, but the 70 and 50
	// are committed to the in-flight send: only the 30 may be offered.
	avail, err := sess.Available(context.Background())
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, uint64(30), avail[0].Amount)

	// Once the node stops reporting the spent outputs, the marker clears.
	f.node.setUTXOs(summary.Address, 30)
	avail, err = sess.Available(context.Background())
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, uint64(30), avail[0].Amount)
}

func TestSendRejectionRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)
	f.node.setUTXOs(summary.Address, 70, 50, 30)
	f.node.rejectAll = "mempool conflict"

	sess, err := f.eng.Unlock("alice", alicePIN)
	require.NoError(t, err)
	defer sess.Close()

	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	defer recipient.Zero()

	_, err = sess.Send(context.Background(), []model.TxOutput{
		{Address: recipient.Address(), Amount: 100},
	})
	var rejErr *model.RejectionError
	require.ErrorAs(t, err, &rejErr)
	assert.Equal(t, "mempool conflict", rejErr.Reason)

	avail, err := sess.Available(context.Background())
	require.NoError(t, err)
	assert.Len(t, avail, 3, "a rejected send must not strand its inputs")
}

func TestInsufficientFundsSubmitsNothing(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)
	f.node.setUTXOs(summary.Address, 10, 10)

	sess, err := f.eng.Unlock("alice", alicePIN)
	require.NoError(t, err)
	defer sess.Close()

	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	defer recipient.Zero()

	_, err = sess.Send(context.Background(), []model.TxOutput{
		{Address: recipient.Address(), Amount: 100},
	})
	var insErr *model.InsufficientFundsError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, uint64(20), insErr.Available)
	assert.Equal(t, 0, f.node.submitted)
}

func TestRevealPrivateRoundTrips(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)

	hexKey, err := f.eng.RevealPrivate("alice", alicePIN)
	require.NoError(t, err)

	raw, err := hex.DecodeString(hexKey)
	require.NoError(t, err)
	kp, err := crypto.KeyPairFromPrivate(raw)
	require.NoError(t, err)
	defer kp.Zero()
	assert.Equal(t, summary.Address, kp.Address())

	_, err = f.eng.RevealPrivate("alice", "999999")
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestRevealPublic(t *testing.T) {
	f := newFixture(t)
	summary := f.createAlice(t)

	got, qr, err := f.eng.RevealPublic("alice")
	require.NoError(t, err)
	assert.Equal(t, summary.Address, got.Address)
	assert.True(t, got.Current)
	assert.NotEmpty(t, qr)

	_, _, err = f.eng.RevealPublic("nobody")
	var nfErr *model.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestChangePIN(t *testing.T) {
	f := newFixture(t)
	f.createAlice(t)

	require.NoError(t, f.eng.ChangePIN("alice", alicePIN, "654321"))

	assert.ErrorIs(t, f.eng.VerifyPIN("alice", alicePIN), model.ErrAuthentication)
	require.NoError(t, f.eng.VerifyPIN("alice", "654321"))

	sess, err := f.eng.Unlock("alice", "654321")
	require.NoError(t, err)
	sess.Close()
}

func TestTxInfoRejectsMalformedID(t *testing.T) {
	f := newFixture(t)
	f.createAlice(t)

	sess, err := f.eng.Unlock("alice", alicePIN)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.TxInfo(context.Background(), "not-a-txid")
	assert.Error(t, err)
}
