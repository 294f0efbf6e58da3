package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroFeedID marks tokens without a price oracle; it is excluded from
// price-feed batch requests.
const ZeroFeedID = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Token describes a single asset on a network. Values are immutable after
// construction; Symbol is unique within a network.
type Token struct {
	Symbol      string
	Name        string
	Decimals    int32
	Address     common.Address
	IsNative    bool
	PriceFeedID string
	LogoURI     string
}

// HasPriceFeed reports whether the token carries a usable oracle feed id.
func (t Token) HasPriceFeed() bool {
	return t.PriceFeedID != "" && !strings.EqualFold(t.PriceFeedID, ZeroFeedID)
}

// Network describes one supported chain with its swap contracts and assets.
type Network struct {
	Name           string
	ChainID        uint64
	RPCURL         string
	ExplorerURL    string
	PoolAddress    common.Address
	VaultAddress   common.Address
	QueriesAddress common.Address
	Tokens         []Token
}

// TokenBySymbol returns the network token with the given symbol.
func (n Network) TokenBySymbol(symbol string) (Token, bool) {
	for _, t := range n.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}

// TokenByAddress returns the network token with the given contract address.
// Native tokens are not matched.
func (n Network) TokenByAddress(address common.Address) (Token, bool) {
	for _, t := range n.Tokens {
		if !t.IsNative && t.Address == address {
			return t, true
		}
	}
	return Token{}, false
}

// Pyth feed ids, see https://www.pyth.network/developers/price-feed-ids.
const (
	ethUSDFeed = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
	btcUSDFeed = "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"
)

// Networks is the static registry of supported chains. Sepolia carries the
// range pool deployment used by the swap core; the other entries are
// balance/price only.
var Networks = []Network{
	{
		Name:           "sepolia",
		ChainID:        11155111,
		RPCURL:         "https://ethereum-sepolia.publicnode.com",
		ExplorerURL:    "https://sepolia.etherscan.io",
		PoolAddress:    common.HexToAddress("0x4fA6bDA3bB99c1B3c6f9dd637Ef7DAa63d29E1c9"),
		VaultAddress:   common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8"),
		QueriesAddress: common.HexToAddress("0x8a4bBd9A549a11971C92f181dd369eeA348bD5f6"),
		Tokens: []Token{
			{
				Symbol:      "ETH",
				Name:        "Ether",
				Decimals:    18,
				IsNative:    true,
				PriceFeedID: ethUSDFeed,
			},
			{
				Symbol:   "VOV",
				Name:     "Vova Token",
				Decimals: 18,
				Address:  common.HexToAddress("0x86D7Dc8807C1C24b49684104D63a7d009Ccd4Cca"),
			},
			{
				Symbol:   "LID",
				Name:     "Lida Token",
				Decimals: 18,
				Address:  common.HexToAddress("0x6778CbA88EDd82244363fd8c77dA539b72f79a9b"),
			},
		},
	},
	{
		Name:        "ethereum",
		ChainID:     1,
		RPCURL:      "https://ethereum.publicnode.com",
		ExplorerURL: "https://etherscan.io",
		Tokens: []Token{
			{
				Symbol:      "ETH",
				Name:        "Ether",
				Decimals:    18,
				IsNative:    true,
				PriceFeedID: ethUSDFeed,
			},
			{
				Symbol:      "BTC",
				Name:        "Wrapped Bitcoin",
				Decimals:    8,
				Address:     common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
				PriceFeedID: btcUSDFeed,
			},
		},
	},
	{
		Name:        "polygon",
		ChainID:     137,
		RPCURL:      "https://polygon-rpc.com",
		ExplorerURL: "https://polygonscan.com",
		Tokens: []Token{
			{
				Symbol:      "ETH",
				Name:        "Ether",
				Decimals:    18,
				IsNative:    true,
				PriceFeedID: ethUSDFeed,
			},
			{
				Symbol:      "BTC",
				Name:        "Wrapped Bitcoin",
				Decimals:    8,
				Address:     common.HexToAddress("0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6"),
				PriceFeedID: btcUSDFeed,
			},
		},
	},
}

// ByChainID returns the first registry entry matching the chain id.
func ByChainID(chainID uint64) (Network, bool) {
	for _, n := range Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}
