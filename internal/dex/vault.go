package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Swap kinds understood by the vault contract.
const (
	SwapKindGivenIn  uint8 = 0
	SwapKindGivenOut uint8 = 1
)

// SwapParams describes one single-swap submission through the vault.
type SwapParams struct {
	PoolID    [32]byte
	Kind      uint8
	AssetIn   common.Address
	AssetOut  common.Address
	Amount    *big.Int
	Sender    common.Address
	Recipient common.Address
	Limit     *big.Int
	Deadline  *big.Int
}

type vaultSingleSwap struct {
	PoolId   [32]byte
	Kind     uint8
	AssetIn  common.Address
	AssetOut common.Address
	Amount   *big.Int
	UserData []byte
}

type vaultFundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// Vault wraps the vault contract: pool token reads and the swap call.
type Vault struct {
	address common.Address
	writer  Writer
}

// NewVault validates the contract address and builds the service.
func NewVault(address common.Address, writer Writer) (*Vault, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("vault address is zero")
	}
	if writer == nil {
		return nil, fmt.Errorf("chain writer is nil")
	}
	return &Vault{address: address, writer: writer}, nil
}

// PoolTokens returns the registered tokens and actual balances the vault
// holds for a pool. Balances are positionally aligned with the tokens.
func (v *Vault) PoolTokens(ctx context.Context, poolID [32]byte) ([]common.Address, []*big.Int, error) {
	parsed, err := vaultABIInstance()
	if err != nil {
		return nil, nil, fmt.Errorf("parse vault abi: %w", err)
	}
	values, err := callMethod(ctx, v.writer, v.address, parsed, "getPoolTokens", poolID)
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 2 {
		return nil, nil, fmt.Errorf("getPoolTokens returned %d values", len(values))
	}

	tokens, err := asAddressSlice(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("tokens: %w", err)
	}
	balances, err := asBigIntSlice(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("balances: %w", err)
	}
	return tokens, balances, nil
}

// Swap submits the swap transaction and waits for its receipt.
func (v *Vault) Swap(ctx context.Context, params SwapParams) (common.Hash, *types.Receipt, error) {
	parsed, err := vaultABIInstance()
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("parse vault abi: %w", err)
	}

	single := vaultSingleSwap{
		PoolId:   params.PoolID,
		Kind:     params.Kind,
		AssetIn:  params.AssetIn,
		AssetOut: params.AssetOut,
		Amount:   params.Amount,
		UserData: []byte{},
	}
	funds := vaultFundManagement{
		Sender:    params.Sender,
		Recipient: params.Recipient,
	}

	calldata, err := parsed.Pack("swap", single, funds, params.Limit, params.Deadline)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("pack swap: %w", err)
	}

	hash, err := v.writer.SendCall(ctx, v.address, calldata, nil)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("submit swap: %w", err)
	}

	receipt, err := v.writer.WaitMined(ctx, hash)
	if err != nil {
		return hash, receipt, fmt.Errorf("wait swap receipt: %w", err)
	}
	return hash, receipt, nil
}
