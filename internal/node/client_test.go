package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	addr := strings.TrimPrefix(srv.URL, "http://")
	c, err := New(addr, 5*time.Second, nil)
	require.NoError(t, err)
	return c, srv
}

func testAddress(t *testing.T) string {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	defer kp.Zero()
	return kp.Address()
}

func someHash(seed byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = seed
	return h
}

func TestNewRejectsMalformedAddress(t *testing.T) {
	for _, addr := range []string{"", "localhost", ":3003", "127.0.0.1:", "127.0.0.1 3003"} {
		_, err := New(addr, time.Second, nil)
		var cfgErr *model.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr, "address %q", addr)
	}
}

func TestGetBalance(t *testing.T) {
	addr := testAddress(t)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/balance/"+addr, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		json.NewEncoder(w).Encode(balanceResponse{Address: addr, Balance: 12_500_000_000})
	}))

	balance, err := c.GetBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_500_000_000), balance)
}

func TestGetUTXOsFiltersUntrustedEntries(t *testing.T) {
	owner := testAddress(t)
	other := testAddress(t)
	good := utxoWire{TxID: someHash(1).String(), Index: 0, Address: owner, Amount: 70}

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(utxosResponse{Address: owner, UTXOs: []utxoWire{
			good,
			{TxID: "zz-not-hex", Index: 0, Address: owner, Amount: 10},
			{TxID: someHash(2).String(), Index: 0, Address: other, Amount: 10},
			{TxID: someHash(3).String(), Index: 0, Address: owner, Amount: 0},
			good, // duplicate outpoint
		}})
	}))

	utxos, err := c.GetUTXOs(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, owner, utxos[0].Address)
	assert.Equal(t, uint64(70), utxos[0].Amount)
}

func TestGetUTXOsRejectsInvalidQueryAddress(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the node for an invalid address")
	}))

	_, err := c.GetUTXOs(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestGetHistoryDropsMalformedEntries(t *testing.T) {
	owner := testAddress(t)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(historyResponse{Address: owner, Transactions: []recordWire{
			{TxID: someHash(1).String(), Direction: "incoming", Amount: 500, Confirmations: 3},
			{TxID: "bogus", Direction: "incoming", Amount: 1},
			{TxID: someHash(2).String(), Direction: "sideways", Amount: 1},
			{TxID: someHash(3).String(), Direction: "outgoing", Amount: 200},
		}})
	}))

	records, err := c.GetHistory(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.DirectionIncoming, records[0].Direction)
	assert.Equal(t, model.DirectionOutgoing, records[1].Direction)
}

func TestGetTransactionVerifiesEchoedID(t *testing.T) {
	owner := testAddress(t)
	want := someHash(7)

	t.Run("matching id", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/tx/"+want.String(), r.URL.Path)
			json.NewEncoder(w).Encode(detailResponse{
				TxID:    want.String(),
				Inputs:  []utxoWire{{TxID: someHash(1).String(), Index: 0, Address: owner, Amount: 100}},
				Outputs: []outputWire{{Address: owner, Amount: 95}},
				Fee:     5,
			})
		}))
		detail, err := c.GetTransaction(context.Background(), want)
		require.NoError(t, err)
		assert.Equal(t, want, detail.TxID)
		assert.Equal(t, uint64(5), detail.Fee)
	})

	t.Run("mismatched id", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(detailResponse{TxID: someHash(8).String()})
		}))
		_, err := c.GetTransaction(context.Background(), want)
		var netErr *model.NetworkError
		assert.ErrorAs(t, err, &netErr)
	})
}

func TestSubmit(t *testing.T) {
	signed := &model.SignedTransaction{
		UnsignedTransaction: model.UnsignedTransaction{
			Inputs:  []model.UTXO{{TxID: someHash(1), Index: 0, Address: "Sx", Amount: 100}},
			Outputs: []model.TxOutput{{Address: "Sy", Amount: 95}},
			Fee:     5,
		},
		Witnesses: []model.InputWitness{{PublicKey: []byte{0x02}, Signature: []byte{0x30}}},
		TxID:      someHash(9),
	}

	t.Run("accepted", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/v1/tx", r.URL.Path)

			var req submitRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, signed.TxID.String(), req.TxID)
			require.Len(t, req.Witnesses, 1)

			json.NewEncoder(w).Encode(submitResponse{TxID: signed.TxID.String()})
		}))

		txid, err := c.Submit(context.Background(), signed)
		require.NoError(t, err)
		assert.Equal(t, signed.TxID, txid)
	})

	t.Run("rejected", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(submitResponse{Rejected: "double spend"})
		}))

		_, err := c.Submit(context.Background(), signed)
		var rejErr *model.RejectionError
		require.ErrorAs(t, err, &rejErr)
		assert.Equal(t, "double spend", rejErr.Reason)
	})
}

func TestNetworkFailuresWrapped(t *testing.T) {
	owner := testAddress(t)

	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.GetBalance(context.Background(), owner)
	var netErr *model.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "balance", netErr.Op)
	assert.NotNil(t, netErr.Err)
}

func TestNotFoundAndServerErrors(t *testing.T) {
	owner := testAddress(t)

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := c.GetHistory(context.Background(), owner)
	var netErr *model.NetworkError
	assert.ErrorAs(t, err, &netErr)

	c2, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err = c2.GetBalance(context.Background(), owner)
	assert.ErrorAs(t, err, &netErr)
}
