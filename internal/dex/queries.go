package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapInfo is the detailed quote breakdown returned by the queries contract
// for a single GIVEN_IN swap.
type SwapInfo struct {
	AmountOut         *big.Int
	AmountInAfterFees *big.Int
	FeeAmount         *big.Int
	VirtualBalanceIn  *big.Int
	VirtualBalanceOut *big.Int
	WeightIn          *big.Int
	WeightOut         *big.Int
	SwapFeePercentage *big.Int
}

// PoolBalances is the token list, balances and pool id reported by the
// queries contract. Balances are positionally aligned with Tokens.
type PoolBalances struct {
	Tokens   []common.Address
	Balances []*big.Int
	PoolID   [32]byte
}

// PoolQueries reads swap quotes and pool prices from the range pool
// queries contract.
type PoolQueries struct {
	address common.Address
	caller  Caller
}

// NewPoolQueries validates the contract address and builds the read service.
func NewPoolQueries(address common.Address, caller Caller) (*PoolQueries, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("pool queries address is zero")
	}
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	return &PoolQueries{address: address, caller: caller}, nil
}

// AmountOut quotes the output amount for a given input amount.
func (q *PoolQueries) AmountOut(ctx context.Context, pool common.Address, amountIn *big.Int, assetIn, assetOut common.Address) (*big.Int, error) {
	parsed, err := poolQueriesABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse queries abi: %w", err)
	}
	values, err := callMethod(ctx, q.caller, q.address, parsed, "getAmountOut", pool, amountIn, assetIn, assetOut)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// AmountIn quotes the input amount needed for a given output amount.
func (q *PoolQueries) AmountIn(ctx context.Context, pool common.Address, amountOut *big.Int, assetIn, assetOut common.Address) (*big.Int, error) {
	parsed, err := poolQueriesABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse queries abi: %w", err)
	}
	values, err := callMethod(ctx, q.caller, q.address, parsed, "getAmountIn", pool, amountOut, assetIn, assetOut)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// SwapInfo returns the full quote breakdown for a given input amount.
func (q *PoolQueries) SwapInfo(ctx context.Context, pool common.Address, amountIn *big.Int, assetIn, assetOut common.Address) (SwapInfo, error) {
	parsed, err := poolQueriesABIInstance()
	if err != nil {
		return SwapInfo{}, fmt.Errorf("parse queries abi: %w", err)
	}
	values, err := callMethod(ctx, q.caller, q.address, parsed, "getSwapInfo", pool, amountIn, assetIn, assetOut)
	if err != nil {
		return SwapInfo{}, err
	}
	if len(values) < 8 {
		return SwapInfo{}, fmt.Errorf("getSwapInfo returned %d values", len(values))
	}

	fields := make([]*big.Int, 8)
	for i := 0; i < 8; i++ {
		fields[i], err = asBigInt(values[i])
		if err != nil {
			return SwapInfo{}, fmt.Errorf("getSwapInfo field %d: %w", i, err)
		}
	}

	return SwapInfo{
		AmountOut:         fields[0],
		AmountInAfterFees: fields[1],
		FeeAmount:         fields[2],
		VirtualBalanceIn:  fields[3],
		VirtualBalanceOut: fields[4],
		WeightIn:          fields[5],
		WeightOut:         fields[6],
		SwapFeePercentage: fields[7],
	}, nil
}

// MinPrice returns the pool's minimum price for the token pair, 1e18 scaled.
func (q *PoolQueries) MinPrice(ctx context.Context, pool, tokenA, tokenB common.Address) (*big.Int, error) {
	return q.pricePoint(ctx, "getMinPrice", pool, tokenA, tokenB)
}

// MaxPrice returns the pool's maximum price for the token pair, 1e18 scaled.
func (q *PoolQueries) MaxPrice(ctx context.Context, pool, tokenA, tokenB common.Address) (*big.Int, error) {
	return q.pricePoint(ctx, "getMaxPrice", pool, tokenA, tokenB)
}

func (q *PoolQueries) pricePoint(ctx context.Context, method string, pool, tokenA, tokenB common.Address) (*big.Int, error) {
	parsed, err := poolQueriesABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse queries abi: %w", err)
	}
	values, err := callMethod(ctx, q.caller, q.address, parsed, method, pool, tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PoolState returns the pool's registered tokens, balances and id.
func (q *PoolQueries) PoolState(ctx context.Context, pool common.Address) (PoolBalances, error) {
	parsed, err := poolQueriesABIInstance()
	if err != nil {
		return PoolBalances{}, fmt.Errorf("parse queries abi: %w", err)
	}
	values, err := callMethod(ctx, q.caller, q.address, parsed, "getPoolBalances", pool)
	if err != nil {
		return PoolBalances{}, err
	}
	if len(values) < 3 {
		return PoolBalances{}, fmt.Errorf("getPoolBalances returned %d values", len(values))
	}

	tokens, err := asAddressSlice(values[0])
	if err != nil {
		return PoolBalances{}, fmt.Errorf("tokens: %w", err)
	}
	balances, err := asBigIntSlice(values[1])
	if err != nil {
		return PoolBalances{}, fmt.Errorf("balances: %w", err)
	}
	poolID, err := asBytes32(values[2])
	if err != nil {
		return PoolBalances{}, fmt.Errorf("pool id: %w", err)
	}

	return PoolBalances{Tokens: tokens, Balances: balances, PoolID: poolID}, nil
}
