// Package chain is a façade over the upstream Ethereum JSON-RPC node
// exposing the handful of calls the gateway needs.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

var jsonNull = []byte("null")

// Client talks to the upstream node. It is safe for concurrent use,
// connections are pooled by the underlying RPC client.
type Client struct {
	c   *rpc.Client
	eth *ethclient.Client
	log *zap.Logger
}

// Dial connects a new Client to the given JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint string, log *zap.Logger) (*Client, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{c: c, eth: ethclient.NewClient(c), log: log}, nil
}

// Balance returns the confirmed balance of addr.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, addr, nil)
}

// TransactionCount returns the node's pending-inclusive transaction
// count for addr.
func (c *Client) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, addr)
}

// SendRawTransaction broadcasts an encoded signed transaction and
// returns its hash. It is never retried: a duplicate broadcast after a
// nonce change could double-spend.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.c.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw))
	if err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionByHash returns the node's view of the given transaction
// as raw JSON, or nil when the node doesn't know the hash.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.c.CallContext(ctx, &raw, "eth_getTransactionByHash", hash)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return nil, nil
	}
	return raw, nil
}

// Close shuts the underlying RPC connection down.
func (c *Client) Close() {
	c.c.Close()
}
