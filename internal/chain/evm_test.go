package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     uint64            `json:"id"`
}

// rpcMock creates a test HTTP server that serves a fixed JSON-RPC response
// per method. Pass method→result pairs; any unknown method returns an RPC error.
func rpcMock(t *testing.T, responses map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if result, ok := responses[req.Method]; ok {
			json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  result,
			})
		} else {
			json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			})
		}
	}))
}

// rpcErrorServer creates a test HTTP server that always returns a JSON-RPC error.
func rpcErrorServer(t *testing.T, code int, msg string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": code, "message": msg},
		})
	}))
}

// rpcBadJSON creates a server that returns malformed JSON.
func rpcBadJSON(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not valid json`)) //nolint:errcheck
	}))
}

func sampleBlock() map[string]interface{} {
	return map[string]interface{}{
		"number":    "0x69",
		"hash":      "0xb10c",
		"timestamp": "0x6553f100",
		"transactions": []interface{}{
			map[string]interface{}{
				"hash":        "0xaa",
				"from":        "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
				"to":          "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
				"value":       "0xde0b6b3a7640000",
				"gas":         "0x5208",
				"gasPrice":    "0x3b9aca00",
				"nonce":       "0x7",
				"blockNumber": "0x69",
				"input":       "0x",
			},
			map[string]interface{}{
				"hash":        "0xbb",
				"from":        "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
				"to":          nil,
				"value":       "0x0",
				"gas":         "0x186a0",
				"nonce":       "0x8",
				"blockNumber": "0x69",
				"input":       "0x6080",
			},
		},
	}
}

// ---------------------------------------------------------------------------
// WeiToETH
// ---------------------------------------------------------------------------

func TestWeiToETHZero(t *testing.T) {
	assert.Equal(t, "0.000000000000000000", WeiToETH(big.NewInt(0)))
}

func TestWeiToETHOneEther(t *testing.T) {
	assert.Equal(t, "1.000000000000000000", WeiToETH(big.NewInt(1_000_000_000_000_000_000)))
}

func TestWeiToETHOneWei(t *testing.T) {
	assert.Equal(t, "0.000000000000000001", WeiToETH(big.NewInt(1)))
}

func TestWeiToETHNil(t *testing.T) {
	assert.Equal(t, "0", WeiToETH(nil))
}

// ---------------------------------------------------------------------------
// CurrentHeight
// ---------------------------------------------------------------------------

func TestCurrentHeight(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_blockNumber": "0x3e8"})
	defer srv.Close()

	n, err := NewEVMClient(srv.URL).CurrentHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), n)
}

func TestCurrentHeightRPCError(t *testing.T) {
	srv := rpcErrorServer(t, -32005, "rate limited")
	defer srv.Close()

	_, err := NewEVMClient(srv.URL).CurrentHeight(context.Background())
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32005, rpcErr.Code)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCurrentHeightBadJSON(t *testing.T) {
	srv := rpcBadJSON(t)
	defer srv.Close()

	_, err := NewEVMClient(srv.URL).CurrentHeight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing response")
}

func TestCurrentHeightBadQuantity(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_blockNumber": "not-hex"})
	defer srv.Close()

	_, err := NewEVMClient(srv.URL).CurrentHeight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing result")
}

func TestCurrentHeightHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewEVMClient(srv.URL).CurrentHeight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestCurrentHeightConnectionRefused(t *testing.T) {
	_, err := NewEVMClient("http://127.0.0.1:19991").CurrentHeight(context.Background())
	require.Error(t, err)
}

func TestCurrentHeightCancelledContext(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_blockNumber": "0x1"})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEVMClient(srv.URL).CurrentHeight(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// BlockWithTransactions
// ---------------------------------------------------------------------------

func TestBlockWithTransactions(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_getBlockByNumber": sampleBlock()})
	defer srv.Close()

	b, err := NewEVMClient(srv.URL).BlockWithTransactions(context.Background(), 105)
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, uint64(105), b.Number)
	assert.Equal(t, "0xb10c", b.Hash)
	assert.Equal(t, uint64(0x6553f100), b.Timestamp)
	require.Len(t, b.Transactions, 2)

	tx := b.Transactions[0]
	assert.Equal(t, "0xaa", tx.Hash)
	assert.Equal(t, "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359", tx.To)
	assert.Equal(t, "1.000000000000000000", tx.ValueETH)
	assert.Equal(t, uint64(21000), tx.Gas)
	assert.Equal(t, "1000000000", tx.GasPrice.String())
	assert.Equal(t, uint64(7), tx.Nonce)
	assert.Equal(t, uint64(105), tx.BlockNumber)
	assert.False(t, tx.IsContractCreation())

	create := b.Transactions[1]
	assert.True(t, create.IsContractCreation())
	assert.Equal(t, "", create.To)
	assert.Nil(t, create.GasPrice)
	assert.Equal(t, 0, create.Value.Sign())
}

func TestBlockWithTransactionsSendsHeightAndFullFlag(t *testing.T) {
	var got rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewEVMClient(srv.URL).BlockWithTransactions(context.Background(), 255)
	require.NoError(t, err)

	assert.Equal(t, "eth_getBlockByNumber", got.Method)
	require.Len(t, got.Params, 2)
	assert.JSONEq(t, `"0xff"`, string(got.Params[0]))
	assert.JSONEq(t, `true`, string(got.Params[1]))
}

func TestBlockWithTransactionsMissingBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`)) //nolint:errcheck
	}))
	defer srv.Close()

	b, err := NewEVMClient(srv.URL).BlockWithTransactions(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, b, "null result means no block at that height")
}

func TestBlockWithTransactionsRPCError(t *testing.T) {
	srv := rpcErrorServer(t, -32000, "header not found")
	defer srv.Close()

	_, err := NewEVMClient(srv.URL).BlockWithTransactions(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eth_getBlockByNumber")
}

func TestRequestIDsIncrease(t *testing.T) {
	var ids []uint64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		ids = append(ids, req.ID)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewEVMClient(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.CurrentHeight(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}

// ---------------------------------------------------------------------------
// Balance / ChainID / Ping
// ---------------------------------------------------------------------------

func TestBalance(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_getBalance": "0x1bc16d674ec80000"})
	defer srv.Close()

	bal, err := NewEVMClient(srv.URL).Balance(context.Background(), "0x9492c313f500319e87937F1dA86b7938757627AD")
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", bal.Wei.String())
	assert.Equal(t, "2.000000000000000000", bal.ETH)
}

func TestChainID(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_chainId": "0x38"})
	defer srv.Close()

	id, err := NewEVMClient(srv.URL).ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(56), id)
}

func TestPing(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"eth_blockNumber": "0x64"})
	defer srv.Close()

	latency, block, err := NewEVMClient(srv.URL).Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), block)
	assert.Greater(t, latency, time.Duration(0))
}

func TestNewEVMClientWithTimeoutDefaults(t *testing.T) {
	c := NewEVMClientWithTimeout("http://example.invalid", 0)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
	assert.Equal(t, "http://example.invalid", c.URL())
}
