package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"rangeswap/internal/numeric"
	"rangeswap/internal/registry"
)

const priceDecimals = 18

// PoolData is the raw on-chain snapshot of the active pool. The balance
// slices are positionally aligned with Tokens.
type PoolData struct {
	PoolID          [32]byte
	Tokens          []common.Address
	VirtualBalances []*big.Int
	ActualBalances  []*big.Int
	MinPrice        *big.Int
	MaxPrice        *big.Int
}

// FormattedPoolData is PoolData with every integer scaled into decimals by
// its token's own precision, prices by 1e18.
type FormattedPoolData struct {
	PoolID          [32]byte
	Tokens          []common.Address
	VirtualBalances []decimal.Decimal
	ActualBalances  []decimal.Decimal
	MinPrice        decimal.Decimal
	MaxPrice        decimal.Decimal
}

// PoolDataFetcher collects the full pool snapshot: pool id and virtual
// balances from the pool contract, actual balances from the vault, and the
// min/max price band from the queries contract.
type PoolDataFetcher struct {
	pool    common.Address
	caller  Caller
	vault   *Vault
	queries *PoolQueries
}

func NewPoolDataFetcher(pool common.Address, caller Caller, vault *Vault, queries *PoolQueries) (*PoolDataFetcher, error) {
	if pool == (common.Address{}) {
		return nil, fmt.Errorf("pool address is zero")
	}
	if caller == nil || vault == nil || queries == nil {
		return nil, fmt.Errorf("pool data fetcher dependency is nil")
	}
	return &PoolDataFetcher{pool: pool, caller: caller, vault: vault, queries: queries}, nil
}

// PoolID reads the pool's vault id.
func (f *PoolDataFetcher) PoolID(ctx context.Context) ([32]byte, error) {
	parsed, err := rangePoolABIInstance()
	if err != nil {
		return [32]byte{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, f.caller, f.pool, parsed, "getPoolId")
	if err != nil {
		return [32]byte{}, err
	}
	return asBytes32(values[0])
}

// Fetch performs the four read calls and assembles the snapshot for the
// given token pair.
func (f *PoolDataFetcher) Fetch(ctx context.Context, tokenA, tokenB common.Address) (*PoolData, error) {
	poolID, err := f.PoolID(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool id: %w", err)
	}

	parsed, err := rangePoolABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, f.caller, f.pool, parsed, "getVirtualBalances")
	if err != nil {
		return nil, fmt.Errorf("virtual balances: %w", err)
	}
	virtual, err := asBigIntSlice(values[0])
	if err != nil {
		return nil, fmt.Errorf("virtual balances: %w", err)
	}

	tokens, actual, err := f.vault.PoolTokens(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("pool tokens: %w", err)
	}

	minPrice, err := f.queries.MinPrice(ctx, f.pool, tokenA, tokenB)
	if err != nil {
		return nil, fmt.Errorf("min price: %w", err)
	}
	maxPrice, err := f.queries.MaxPrice(ctx, f.pool, tokenA, tokenB)
	if err != nil {
		return nil, fmt.Errorf("max price: %w", err)
	}

	return &PoolData{
		PoolID:          poolID,
		Tokens:          tokens,
		VirtualBalances: virtual,
		ActualBalances:  actual,
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
	}, nil
}

// FormatPoolData scales the raw snapshot by each token's decimals. Tokens
// missing from the registry slice format as zero.
func FormatPoolData(data *PoolData, tokens []registry.Token) *FormattedPoolData {
	if data == nil {
		return nil
	}

	decimalsFor := func(address common.Address) (int32, bool) {
		for _, t := range tokens {
			if !t.IsNative && t.Address == address {
				return t.Decimals, true
			}
		}
		return 0, false
	}

	formatAll := func(balances []*big.Int) []decimal.Decimal {
		out := make([]decimal.Decimal, len(balances))
		for i, b := range balances {
			if i >= len(data.Tokens) {
				break
			}
			if d, ok := decimalsFor(data.Tokens[i]); ok {
				out[i] = numeric.FormatUnits(b, d)
			}
		}
		return out
	}

	return &FormattedPoolData{
		PoolID:          data.PoolID,
		Tokens:          data.Tokens,
		VirtualBalances: formatAll(data.VirtualBalances),
		ActualBalances:  formatAll(data.ActualBalances),
		MinPrice:        numeric.FormatUnits(data.MinPrice, priceDecimals),
		MaxPrice:        numeric.FormatUnits(data.MaxPrice, priceDecimals),
	}
}
