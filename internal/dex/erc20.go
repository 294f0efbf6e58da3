package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ERC20 provides balance, allowance and approval access to token contracts.
type ERC20 struct {
	writer Writer
}

func NewERC20(writer Writer) (*ERC20, error) {
	if writer == nil {
		return nil, fmt.Errorf("chain writer is nil")
	}
	return &ERC20{writer: writer}, nil
}

// BalanceOf returns the token balance of an account.
func (e *ERC20) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, e.writer, token, parsed, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Allowance returns the amount the spender may move on behalf of owner.
func (e *ERC20) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, e.writer, token, parsed, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Approve submits an approval transaction and waits until it is mined.
func (e *ERC20) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, *types.Receipt, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	calldata, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("pack approve: %w", err)
	}

	hash, err := e.writer.SendCall(ctx, token, calldata, nil)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("submit approve: %w", err)
	}

	receipt, err := e.writer.WaitMined(ctx, hash)
	if err != nil {
		return hash, receipt, fmt.Errorf("wait approve receipt: %w", err)
	}
	return hash, receipt, nil
}
