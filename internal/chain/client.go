// Package chain wraps the Ethereum JSON-RPC transport: connection handling,
// read calls, and the chunked event-log reader the discovery and polling
// layers are built on.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ClientConfig holds connection parameters for the RPC client.
type ClientConfig struct {
	Endpoint    string
	DialTimeout time.Duration
}

// Client wraps an ethclient connection. Timeouts on individual calls are the
// caller's concern (via ctx); the client itself only bounds the dial.
type Client struct {
	eth      *ethclient.Client
	rpc      *rpc.Client
	endpoint string
	logger   *slog.Logger
}

// Dial connects to the endpoint and verifies the connection with a ChainID
// call before returning.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("chain: endpoint is required")
	}
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.Endpoint, err)
	}

	c := &Client{
		eth:      ethclient.NewClient(rpcClient),
		rpc:      rpcClient,
		endpoint: cfg.Endpoint,
		logger:   logger.With(slog.String("component", "chain")),
	}

	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("chain: ping %s: %w", cfg.Endpoint, err)
	}

	c.logger.Info("connected to rpc endpoint",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("chain_id", chainID.String()),
	)
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// Endpoint returns the RPC endpoint the client is connected to.
func (c *Client) Endpoint() string { return c.endpoint }

// ChainID returns the chain id reported by the endpoint.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// FilterLogs fetches event logs for the given query in one provider call.
// Callers with wide block windows should go through LogReader instead.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return c.eth.FilterLogs(ctx, q)
}

// CallContract executes a read-only call at the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, block)
}

// EstimateGas simulates the call and returns a gas estimate; a revert during
// simulation surfaces here.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.eth.EstimateGas(ctx, msg)
}

// SuggestGasPrice returns the endpoint's current gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

// PendingNonceAt returns the next nonce for the account including pending
// transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt for a mined transaction, or
// ethereum.NotFound while it is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, txHash)
}
