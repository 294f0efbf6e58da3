package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrNoSigner is returned by write operations when the client was built
// without a signing key.
var ErrNoSigner = errors.New("chain: client has no signing key")

const (
	receiptPollInterval = time.Second

	readRetries    = 2
	readRetryDelay = 200 * time.Millisecond
)

// Client wraps go-ethereum RPC and provides the read and write helpers the
// swap core needs. The signing key is optional; read-only clients work
// without one.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	chainID *big.Int
	key     *ecdsa.PrivateKey
	sender  common.Address
}

// NewClient creates a new chain client from the RPC URL. privateKeyHex may
// be empty for a read-only client.
func NewClient(ctx context.Context, rpcURL string, privateKeyHex string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	ethClient := ethclient.NewClient(rpcClient)
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	c := &Client{
		rpcClient: rpcClient,
		ethClient: ethClient,
		chainID:   chainID,
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.key = key
		c.sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the connected chain's id.
func (c *Client) ChainID() uint64 {
	return c.chainID.Uint64()
}

// Sender returns the address of the signing key, or the zero address for a
// read-only client.
func (c *Client) Sender() common.Address {
	return c.sender
}

// CanSign reports whether the client can submit transactions.
func (c *Client) CanSign() bool {
	return c.key != nil
}

// CallContract performs an eth_call against the latest block, retrying
// transient RPC failures with exponential backoff.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := withRetry(ctx, readRetries, readRetryDelay, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.ethClient.CallContract(ctx, msg, nil)
		return callErr
	})
	return out, err
}

// BalanceAt returns the native balance of an address at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := withRetry(ctx, readRetries, readRetryDelay, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.ethClient.BalanceAt(ctx, account, nil)
		return callErr
	})
	return out, err
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// SendCall signs and submits a contract call with the given calldata and
// returns the transaction hash.
func (c *Client) SendCall(ctx context.Context, to common.Address, calldata []byte, value *big.Int) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.ethClient.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := c.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.sender,
		To:    &to,
		Value: value,
		Data:  calldata,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.ethClient.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash(), nil
}

// WaitMined blocks until the transaction with the given hash is mined and
// returns its receipt. A mined-but-reverted transaction is an error.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("get receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
