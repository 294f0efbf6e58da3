package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangeswap/internal/registry"
)

// NativeReader reads native-asset balances.
type NativeReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// Portfolio reads wallet balances across a token list. One token's failed
// lookup never aborts the batch; it is recorded as zero for that token only.
type Portfolio struct {
	native NativeReader
	erc20  *ERC20
	logger *zap.Logger
}

func NewPortfolio(native NativeReader, erc20 *ERC20, logger *zap.Logger) (*Portfolio, error) {
	if native == nil || erc20 == nil {
		return nil, fmt.Errorf("portfolio dependency is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{native: native, erc20: erc20, logger: logger}, nil
}

// Balance reads a single token balance for the owner.
func (p *Portfolio) Balance(ctx context.Context, owner common.Address, token registry.Token) (*big.Int, error) {
	if token.IsNative {
		return p.native.BalanceAt(ctx, owner)
	}
	return p.erc20.BalanceOf(ctx, token.Address, owner)
}

// FetchAll reads every token's balance for the owner, keyed by symbol.
func (p *Portfolio) FetchAll(ctx context.Context, owner common.Address, tokens []registry.Token) map[string]*big.Int {
	out := make(map[string]*big.Int, len(tokens))
	for _, token := range tokens {
		balance, err := p.Balance(ctx, owner, token)
		if err != nil {
			p.logger.Warn("balance fetch failed",
				zap.String("symbol", token.Symbol),
				zap.String("owner", owner.Hex()),
				zap.Error(err),
			)
			out[token.Symbol] = new(big.Int)
			continue
		}
		out[token.Symbol] = balance
	}
	return out
}
