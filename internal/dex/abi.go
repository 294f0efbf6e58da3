package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const rangePoolABIJSON = `[
  {"inputs": [], "name": "getPoolId", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getVirtualBalances", "outputs": [{"type": "uint256[]"}], "stateMutability": "view", "type": "function"}
]`

const vaultABIJSON = `[
  {
    "inputs": [{"name": "poolId", "type": "bytes32"}],
    "name": "getPoolTokens",
    "outputs": [
      {"name": "tokens", "type": "address[]"},
      {"name": "balances", "type": "uint256[]"},
      {"name": "lastChangeBlock", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {
        "name": "singleSwap",
        "type": "tuple",
        "components": [
          {"name": "poolId", "type": "bytes32"},
          {"name": "kind", "type": "uint8"},
          {"name": "assetIn", "type": "address"},
          {"name": "assetOut", "type": "address"},
          {"name": "amount", "type": "uint256"},
          {"name": "userData", "type": "bytes"}
        ]
      },
      {
        "name": "funds",
        "type": "tuple",
        "components": [
          {"name": "sender", "type": "address"},
          {"name": "fromInternalBalance", "type": "bool"},
          {"name": "recipient", "type": "address"},
          {"name": "toInternalBalance", "type": "bool"}
        ]
      },
      {"name": "limit", "type": "uint256"},
      {"name": "deadline", "type": "uint256"}
    ],
    "name": "swap",
    "outputs": [{"name": "amountCalculated", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const poolQueriesABIJSON = `[
  {
    "inputs": [
      {"name": "pool", "type": "address"},
      {"name": "amountIn", "type": "uint256"},
      {"name": "assetIn", "type": "address"},
      {"name": "assetOut", "type": "address"}
    ],
    "name": "getAmountOut",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "pool", "type": "address"},
      {"name": "amountOut", "type": "uint256"},
      {"name": "assetIn", "type": "address"},
      {"name": "assetOut", "type": "address"}
    ],
    "name": "getAmountIn",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "pool", "type": "address"},
      {"name": "amountIn", "type": "uint256"},
      {"name": "assetIn", "type": "address"},
      {"name": "assetOut", "type": "address"}
    ],
    "name": "getSwapInfo",
    "outputs": [
      {"name": "amountOut", "type": "uint256"},
      {"name": "amountInAfterFees", "type": "uint256"},
      {"name": "feeAmount", "type": "uint256"},
      {"name": "virtualBalanceIn", "type": "uint256"},
      {"name": "virtualBalanceOut", "type": "uint256"},
      {"name": "weightIn", "type": "uint256"},
      {"name": "weightOut", "type": "uint256"},
      {"name": "swapFeePercentage", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "pool", "type": "address"},
      {"name": "tokenA", "type": "address"},
      {"name": "tokenB", "type": "address"}
    ],
    "name": "getMinPrice",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "pool", "type": "address"},
      {"name": "tokenA", "type": "address"},
      {"name": "tokenB", "type": "address"}
    ],
    "name": "getMaxPrice",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "pool", "type": "address"}],
    "name": "getPoolBalances",
    "outputs": [
      {"name": "tokens", "type": "address[]"},
      {"name": "balances", "type": "uint256[]"},
      {"name": "poolId", "type": "bytes32"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "approve", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	rangePoolABI     abi.ABI
	rangePoolABIOnce sync.Once
	rangePoolABIErr  error

	vaultABI     abi.ABI
	vaultABIOnce sync.Once
	vaultABIErr  error

	poolQueriesABI     abi.ABI
	poolQueriesABIOnce sync.Once
	poolQueriesABIErr  error

	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func rangePoolABIInstance() (abi.ABI, error) {
	rangePoolABIOnce.Do(func() {
		rangePoolABI, rangePoolABIErr = abi.JSON(strings.NewReader(rangePoolABIJSON))
	})
	return rangePoolABI, rangePoolABIErr
}

func vaultABIInstance() (abi.ABI, error) {
	vaultABIOnce.Do(func() {
		vaultABI, vaultABIErr = abi.JSON(strings.NewReader(vaultABIJSON))
	})
	return vaultABI, vaultABIErr
}

func poolQueriesABIInstance() (abi.ABI, error) {
	poolQueriesABIOnce.Do(func() {
		poolQueriesABI, poolQueriesABIErr = abi.JSON(strings.NewReader(poolQueriesABIJSON))
	})
	return poolQueriesABI, poolQueriesABIErr
}

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
