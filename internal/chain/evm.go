package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultTimeout bounds a single JSON-RPC round trip.
const DefaultTimeout = 15 * time.Second

// EVMClient is a minimal JSON-RPC client for EVM chains. It satisfies the
// scanner's ChainProvider interface.
type EVMClient struct {
	url    string
	client *http.Client
	nextID atomic.Uint64
}

// Block is a block fetched with full transaction objects.
type Block struct {
	Number       uint64
	Hash         string
	Timestamp    uint64
	Transactions []Transaction
}

// Transaction holds the fields of a transaction the scanner and CLI consume.
type Transaction struct {
	Hash        string
	From        string
	To          string // empty for contract creation
	Value       *big.Int
	ValueETH    string
	Gas         uint64
	GasPrice    *big.Int
	Nonce       uint64
	BlockNumber uint64
	Input       string
}

// IsContractCreation reports whether the transaction has no recipient.
func (t *Transaction) IsContractCreation() bool { return t.To == "" }

// Balance holds a native balance result.
type Balance struct {
	Wei *big.Int
	ETH string
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewEVMClient creates a client for url with DefaultTimeout.
func NewEVMClient(url string) *EVMClient {
	return NewEVMClientWithTimeout(url, DefaultTimeout)
}

// NewEVMClientWithTimeout creates a client whose HTTP calls time out after d.
func NewEVMClientWithTimeout(url string, d time.Duration) *EVMClient {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &EVMClient{
		url:    url,
		client: &http.Client{Timeout: d},
	}
}

// URL returns the endpoint this client talks to.
func (c *EVMClient) URL() string { return c.url }

// CurrentHeight returns the latest block number.
func (c *EVMClient) CurrentHeight(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// BlockWithTransactions fetches the block at height with full transaction
// objects. It returns nil, nil when the node has no block at that height.
func (c *EVMClient) BlockWithTransactions(ctx context.Context, height uint64) (*Block, error) {
	var rb *rawBlock
	if err := c.call(ctx, "eth_getBlockByNumber", &rb, hexutil.EncodeUint64(height), true); err != nil {
		return nil, err
	}
	if rb == nil {
		return nil, nil
	}
	return rb.toBlock(), nil
}

// Balance returns the latest native balance of address.
func (c *EVMClient) Balance(ctx context.Context, address string) (*Balance, error) {
	var wei hexutil.Big
	if err := c.call(ctx, "eth_getBalance", &wei, address, "latest"); err != nil {
		return nil, err
	}
	w := wei.ToInt()
	return &Balance{Wei: w, ETH: WeiToETH(w)}, nil
}

// ChainID returns the chain's ID.
func (c *EVMClient) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.call(ctx, "eth_chainId", &id); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Ping tests the endpoint and returns latency + block number.
func (c *EVMClient) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.CurrentHeight(ctx)
	return time.Since(start), blockNum, err
}

// --- internal JSON-RPC plumbing ---

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// call performs method and decodes the result into out. A JSON null result
// leaves out untouched.
func (c *EVMClient) call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: RPC request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", method, resp.StatusCode)
		}
		return fmt.Errorf("%s: parsing response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("%s: response has no result", method)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%s: parsing result: %w", method, err)
	}
	return nil
}

type rawBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         string         `json:"hash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []rawTx        `json:"transactions"`
}

func (rb *rawBlock) toBlock() *Block {
	b := &Block{
		Number:       uint64(rb.Number),
		Hash:         rb.Hash,
		Timestamp:    uint64(rb.Timestamp),
		Transactions: make([]Transaction, 0, len(rb.Transactions)),
	}
	for i := range rb.Transactions {
		tx := rb.Transactions[i].toTx()
		if tx.BlockNumber == 0 {
			tx.BlockNumber = b.Number
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return b
}

type rawTx struct {
	Hash        string          `json:"hash"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       *hexutil.Big    `json:"value"`
	Gas         hexutil.Uint64  `json:"gas"`
	GasPrice    *hexutil.Big    `json:"gasPrice"`
	Nonce       hexutil.Uint64  `json:"nonce"`
	BlockNumber *hexutil.Uint64 `json:"blockNumber"`
	Input       string          `json:"input"`
}

func (rt *rawTx) toTx() Transaction {
	tx := Transaction{
		Hash:  rt.Hash,
		From:  rt.From,
		To:    rt.To,
		Gas:   uint64(rt.Gas),
		Nonce: uint64(rt.Nonce),
		Input: rt.Input,
	}
	if rt.Value != nil {
		tx.Value = rt.Value.ToInt()
	} else {
		tx.Value = new(big.Int)
	}
	tx.ValueETH = WeiToETH(tx.Value)
	if rt.GasPrice != nil {
		tx.GasPrice = rt.GasPrice.ToInt()
	}
	if rt.BlockNumber != nil {
		tx.BlockNumber = uint64(*rt.BlockNumber)
	}
	return tx
}

// --- math helpers ---

var eth1 = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// WeiToETH converts a wei amount to an ETH decimal string.
func WeiToETH(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, eth1)
	return f.Text('f', 18)
}
