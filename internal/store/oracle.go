package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeswap/internal/oracle"
	"rangeswap/internal/sched"
)

const oracleRefreshInterval = 15 * time.Second

// PriceSource fetches latest mark prices for a set of feed ids.
type PriceSource interface {
	LatestPrices(ctx context.Context, feedIDs []string) (map[string]oracle.Price, error)
}

// OracleStore maintains a mapping from price-feed id to the latest mark
// price, refreshed on a fixed interval. A price that was never fetched is
// reported as unknown, never as zero.
type OracleStore struct {
	source   PriceSource
	accounts *AccountStore
	logger   *zap.Logger
	poller   *sched.Poller

	mu          sync.RWMutex
	prices      map[string]decimal.Decimal
	initialized bool
}

func NewOracleStore(source PriceSource, accounts *AccountStore, logger *zap.Logger) *OracleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OracleStore{
		source:   source,
		accounts: accounts,
		logger:   logger,
		prices:   make(map[string]decimal.Decimal),
	}
}

// Start performs an immediate fetch and then refreshes every 15 seconds
// until Stop is called.
func (s *OracleStore) Start() {
	s.poller = sched.NewPoller(oracleRefreshInterval, s.refresh)
	s.poller.Start()
}

// Stop cancels the refresh timer.
func (s *OracleStore) Stop() {
	if s.poller != nil {
		s.poller.Stop()
	}
}

// Refresh fetches prices once, outside the poll schedule.
func (s *OracleStore) Refresh() {
	s.refresh()
}

func (s *OracleStore) refresh() {
	var feedIDs []string
	for _, token := range s.accounts.Tokens() {
		if token.HasPriceFeed() {
			feedIDs = append(feedIDs, token.PriceFeedID)
		}
	}
	if len(feedIDs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), oracleRefreshInterval)
	defer cancel()

	prices, err := s.source.LatestPrices(ctx, feedIDs)
	if err != nil {
		// Keep the previous mapping: stale-but-available over empty.
		s.logger.Warn("price refresh failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	for id, price := range prices {
		s.prices[id] = price.Value
	}
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether at least one fetch has succeeded.
func (s *OracleStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Price returns the latest price for a feed id. ok is false when the feed
// has never been fetched; a zero price with ok true is a valid price.
func (s *OracleStore) Price(feedID string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[feedID]
	return price, ok
}

// PriceBySymbol resolves the token's feed id via the active network and
// returns its latest price.
func (s *OracleStore) PriceBySymbol(symbol string) (decimal.Decimal, bool) {
	token, ok := s.accounts.TokenBySymbol(symbol)
	if !ok || !token.HasPriceFeed() {
		return decimal.Zero, false
	}
	return s.Price(token.PriceFeedID)
}
