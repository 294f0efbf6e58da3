package store

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeswap/internal/numeric"
	"rangeswap/internal/registry"
	"rangeswap/internal/sched"
)

const (
	balanceDebounceDelay  = 200 * time.Millisecond
	balancePollInterval   = 5 * time.Minute
	balanceRefreshTimeout = 30 * time.Second
)

// TokenBalance is one wallet balance, rebuilt wholesale on each refresh.
type TokenBalance struct {
	Symbol    string
	Raw       *big.Int
	Formatted decimal.Decimal
	Decimals  int32
}

// BalanceReader fetches balances for a token list, isolating per-token
// failures.
type BalanceReader interface {
	FetchAll(ctx context.Context, owner common.Address, tokens []registry.Token) map[string]*big.Int
}

// BalanceStore keeps per-chain, per-token wallet balances fresh without
// redundant concurrent fetches. Results are committed only when they match
// the most recent request id and the current chain id, so a slow fetch can
// never clobber state after a chain switch.
type BalanceStore struct {
	accounts *AccountStore
	reader   BalanceReader
	logger   *zap.Logger

	debounce *sched.Debouncer
	poller   *sched.Poller

	mu          sync.Mutex
	balances    map[string]TokenBalance
	initialized bool
	inFlight    bool
	reqID       uint64
}

func NewBalanceStore(accounts *AccountStore, reader BalanceReader, logger *zap.Logger) *BalanceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BalanceStore{
		accounts: accounts,
		reader:   reader,
		logger:   logger,
		debounce: sched.NewDebouncer(balanceDebounceDelay),
		balances: make(map[string]TokenBalance),
	}
	accounts.Subscribe(s.onAccountChange)
	return s
}

// Start launches the background poll correcting for external balance
// changes such as incoming transfers.
func (s *BalanceStore) Start() {
	s.poller = sched.NewPoller(balancePollInterval, s.Refresh)
	s.poller.Start()
}

// Stop cancels all timers.
func (s *BalanceStore) Stop() {
	s.debounce.Stop()
	if s.poller != nil {
		s.poller.Stop()
	}
}

// onAccountChange clears synchronously on every change so a chain switch
// never leaves the old chain's symbols readable, then schedules a refresh
// when a valid account remains.
func (s *BalanceStore) onAccountChange() {
	s.clear()

	if _, ok := s.accounts.Address(); !ok {
		return
	}

	s.debounce.Schedule(s.Refresh)
}

func (s *BalanceStore) clear() {
	s.mu.Lock()
	s.balances = make(map[string]TokenBalance)
	s.initialized = false
	s.mu.Unlock()
}

// Refresh fetches all balances for the active account. A refresh already
// running is not duplicated; concurrent callers are dropped, not queued.
func (s *BalanceStore) Refresh() {
	owner, ok := s.accounts.Address()
	if !ok {
		return
	}
	chainID := s.accounts.ChainID()
	tokens := s.accounts.Tokens()
	if len(tokens) == 0 {
		return
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.reqID++
	id := s.reqID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), balanceRefreshTimeout)
	defer cancel()

	raw := s.reader.FetchAll(ctx, owner, tokens)

	s.commit(id, chainID, tokens, raw)
}

// commit applies a fetch result, rejecting it when a newer request exists
// or the chain id changed since the request was issued.
func (s *BalanceStore) commit(id uint64, chainID uint64, tokens []registry.Token, raw map[string]*big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false

	if id != s.reqID {
		s.logger.Debug("stale balance result dropped", zap.Uint64("req_id", id))
		return
	}
	if chainID != s.accounts.ChainID() {
		s.logger.Debug("balance result for old chain dropped", zap.Uint64("chain_id", chainID))
		return
	}

	next := make(map[string]TokenBalance, len(tokens))
	for _, token := range tokens {
		units, ok := raw[token.Symbol]
		if !ok || units == nil {
			units = new(big.Int)
		}
		next[token.Symbol] = TokenBalance{
			Symbol:    token.Symbol,
			Raw:       units,
			Formatted: numeric.FormatUnits(units, token.Decimals),
			Decimals:  token.Decimals,
		}
	}
	s.balances = next
	s.initialized = true
}

// Initialized reports whether the first successful fetch has completed for
// the current account.
func (s *BalanceStore) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Balance returns the stored balance for a symbol.
func (s *BalanceStore) Balance(symbol string) (TokenBalance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[symbol]
	return b, ok
}

// Formatted returns the human-unit balance for a symbol, zero when absent.
func (s *BalanceStore) Formatted(symbol string) decimal.Decimal {
	b, ok := s.Balance(symbol)
	if !ok {
		return decimal.Zero
	}
	return b.Formatted
}
