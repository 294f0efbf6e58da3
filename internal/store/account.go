package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rangeswap/internal/registry"
)

// AccountStore projects externally-driven wallet-connection facts into the
// network and token configuration the rest of the core consumes. It never
// initiates connections itself; connection state is pushed in via
// SetConnection.
type AccountStore struct {
	mu          sync.RWMutex
	address     common.Address
	chainID     uint64
	connected   bool
	network     registry.Network
	hasNetwork  bool
	subscribers []func()
}

func NewAccountStore() *AccountStore {
	return &AccountStore{}
}

// SetConnection records the wallet state and re-derives the network
// configuration. Subscribers are notified after every call.
func (s *AccountStore) SetConnection(address common.Address, chainID uint64, connected bool) {
	s.mu.Lock()
	s.address = address
	s.chainID = chainID
	s.connected = connected
	s.network, s.hasNetwork = registry.ByChainID(chainID)
	subs := make([]func(), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Subscribe registers a callback invoked after every connection change.
func (s *AccountStore) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// Address returns the connected wallet address; ok is false when no wallet
// is connected.
func (s *AccountStore) Address() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected || s.address == (common.Address{}) {
		return common.Address{}, false
	}
	return s.address, true
}

// ChainID returns the currently reported chain id.
func (s *AccountStore) ChainID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainID
}

// IsConnected reports whether a wallet is connected.
func (s *AccountStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Network returns the registry entry for the active chain; ok is false on
// an unsupported chain.
func (s *AccountStore) Network() (registry.Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network, s.hasNetwork
}

// Tokens returns the active network's token list, empty when the chain is
// unsupported. Callers must tolerate the empty list.
func (s *AccountStore) Tokens() []registry.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasNetwork {
		return nil
	}
	return s.network.Tokens
}

// TokenBySymbol resolves a token on the active network.
func (s *AccountStore) TokenBySymbol(symbol string) (registry.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasNetwork {
		return registry.Token{}, false
	}
	return s.network.TokenBySymbol(symbol)
}
