package dex

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMeta is on-chain token metadata.
type TokenMeta struct {
	Symbol   string
	Decimals uint8
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Metadata reads a token's symbol and decimals from the contract, serving
// repeat lookups from the cache.
func (e *ERC20) Metadata(ctx context.Context, cache *TokenMetaCache, token common.Address) (TokenMeta, error) {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta, nil
		}
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		return TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := callMethod(ctx, e.writer, token, parsed, "symbol")
	if err != nil {
		return TokenMeta{}, fmt.Errorf("token symbol: %w", err)
	}
	symbol, ok := values[0].(string)
	if !ok {
		return TokenMeta{}, fmt.Errorf("unexpected symbol type %T", values[0])
	}

	values, err = callMethod(ctx, e.writer, token, parsed, "decimals")
	if err != nil {
		return TokenMeta{}, fmt.Errorf("token decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return TokenMeta{}, fmt.Errorf("unexpected decimals type %T", values[0])
	}

	meta := TokenMeta{Symbol: symbol, Decimals: decimals}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta, nil
}
