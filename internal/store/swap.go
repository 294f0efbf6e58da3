package store

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeswap/internal/dex"
	"rangeswap/internal/history"
	"rangeswap/internal/numeric"
	"rangeswap/internal/registry"
	"rangeswap/internal/sched"
)

const (
	// DefaultPayBaseline is the value payAmount resets to after a token
	// switch or a completed swap.
	DefaultPayBaseline = "0.00"

	defaultQuoteDelay   = 500 * time.Millisecond
	defaultSwapDeadline = 30 * time.Minute

	quoteTimeout    = 15 * time.Second
	poolDataTimeout = 30 * time.Second
)

// QuoteService quotes the output amount for a given input amount.
type QuoteService interface {
	AmountOut(ctx context.Context, pool common.Address, amountIn *big.Int, assetIn, assetOut common.Address) (*big.Int, error)
}

// PoolReader reads the pool id and full pool snapshot.
type PoolReader interface {
	PoolID(ctx context.Context) ([32]byte, error)
	Fetch(ctx context.Context, tokenA, tokenB common.Address) (*dex.PoolData, error)
}

// VaultService submits swap transactions and waits for their receipts.
type VaultService interface {
	Swap(ctx context.Context, params dex.SwapParams) (common.Hash, *types.Receipt, error)
}

// TokenService reads allowances and submits approvals. Approve blocks
// until the approval transaction is mined.
type TokenService interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, *types.Receipt, error)
}

// PriceLookup resolves a token's latest oracle price by symbol.
type PriceLookup interface {
	PriceBySymbol(symbol string) (decimal.Decimal, bool)
}

// Refresher triggers a wallet balance refresh.
type Refresher interface {
	Refresh()
}

// Ledger records executed swaps. Recording is best-effort.
type Ledger interface {
	Record(ctx context.Context, exec history.SwapExecution) error
}

// SwapConfig tunes the swap store.
type SwapConfig struct {
	Network      registry.Network
	Baseline     string
	QuoteDelay   time.Duration
	SwapDeadline time.Duration
}

func (c *SwapConfig) applyDefaults() {
	if c.Baseline == "" {
		c.Baseline = DefaultPayBaseline
	}
	if c.QuoteDelay <= 0 {
		c.QuoteDelay = defaultQuoteDelay
	}
	if c.SwapDeadline <= 0 {
		c.SwapDeadline = defaultSwapDeadline
	}
}

// SwapStore orchestrates token selection, debounced quoting, allowance
// checking, the approve-then-swap sequence, and post-swap refresh. It is
// the only multi-step state machine in the core; every async failure is
// caught at the operation boundary and leaves the store idle.
type SwapStore struct {
	cfg      SwapConfig
	accounts *AccountStore
	oracle   PriceLookup
	balances Refresher
	quotes   QuoteService
	pool     PoolReader
	vault    VaultService
	tokens   TokenService
	ledger   Ledger
	notifier Notifier
	logger   *zap.Logger

	quoteDebounce *sched.Debouncer

	mu             sync.Mutex
	sellToken      registry.Token
	buyToken       registry.Token
	payAmount      string
	receiveAmount  decimal.Decimal
	quoteGen       uint64
	poolData       *dex.FormattedPoolData
	poolLoadedOnce bool

	isQuoteLoading bool
	isPoolLoading  bool
	isApproving    bool
	isSwapping     bool
	isLoading      bool

	onChange func()
}

// NewSwapStore wires the orchestration core. The ledger may be nil;
// everything else is required. The initial pair is the network's first two
// pool-eligible (non-native) tokens.
func NewSwapStore(
	cfg SwapConfig,
	accounts *AccountStore,
	oraclePrices PriceLookup,
	balances Refresher,
	quotes QuoteService,
	pool PoolReader,
	vault VaultService,
	tokens TokenService,
	ledger Ledger,
	notifier Notifier,
	logger *zap.Logger,
) (*SwapStore, error) {
	cfg.applyDefaults()
	if accounts == nil || oraclePrices == nil || balances == nil || quotes == nil || pool == nil || vault == nil || tokens == nil {
		return nil, fmt.Errorf("swap store dependency is nil")
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sell, buy, err := defaultPair(cfg.Network.Tokens)
	if err != nil {
		return nil, err
	}

	return &SwapStore{
		cfg:           cfg,
		accounts:      accounts,
		oracle:        oraclePrices,
		balances:      balances,
		quotes:        quotes,
		pool:          pool,
		vault:         vault,
		tokens:        tokens,
		ledger:        ledger,
		notifier:      notifier,
		logger:        logger,
		quoteDebounce: sched.NewDebouncer(cfg.QuoteDelay),
		sellToken:     sell,
		buyToken:      buy,
		payAmount:     cfg.Baseline,
		receiveAmount: decimal.Zero,
	}, nil
}

func defaultPair(tokens []registry.Token) (registry.Token, registry.Token, error) {
	var pair []registry.Token
	for _, t := range tokens {
		if !t.IsNative {
			pair = append(pair, t)
			if len(pair) == 2 {
				return pair[0], pair[1], nil
			}
		}
	}
	if len(tokens) >= 2 {
		return tokens[0], tokens[1], nil
	}
	return registry.Token{}, registry.Token{}, fmt.Errorf("network needs at least two tokens")
}

// SetOnChange registers a callback invoked after observable state changes.
// Used for state persistence; must be set before concurrent use.
func (s *SwapStore) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *SwapStore) notifyChange() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop cancels the pending quote timer.
func (s *SwapStore) Stop() {
	s.quoteDebounce.Stop()
}

// SellToken returns the current sell-side token.
func (s *SwapStore) SellToken() registry.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sellToken
}

// BuyToken returns the current buy-side token.
func (s *SwapStore) BuyToken() registry.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buyToken
}

// PayAmount returns the raw user input driving the quote.
func (s *SwapStore) PayAmount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payAmount
}

// ReceiveAmount returns the latest quoted output amount.
func (s *SwapStore) ReceiveAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiveAmount
}

func (s *SwapStore) IsLoading() bool      { s.mu.Lock(); defer s.mu.Unlock(); return s.isLoading }
func (s *SwapStore) IsQuoteLoading() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.isQuoteLoading }
func (s *SwapStore) IsPoolLoading() bool  { s.mu.Lock(); defer s.mu.Unlock(); return s.isPoolLoading }
func (s *SwapStore) IsApproving() bool    { s.mu.Lock(); defer s.mu.Unlock(); return s.isApproving }
func (s *SwapStore) IsSwapping() bool     { s.mu.Lock(); defer s.mu.Unlock(); return s.isSwapping }

// SetSellToken replaces the sell side. Selecting the buy-side token swaps
// the two sides instead, so the pair can never collapse into one token.
func (s *SwapStore) SetSellToken(token registry.Token) {
	s.setToken(token, true)
}

// SetBuyToken replaces the buy side, with the same side-swapping rule.
func (s *SwapStore) SetBuyToken(token registry.Token) {
	s.setToken(token, false)
}

func (s *SwapStore) setToken(token registry.Token, sellSide bool) {
	s.mu.Lock()
	cur, other := &s.sellToken, &s.buyToken
	if !sellSide {
		cur, other = &s.buyToken, &s.sellToken
	}
	switch token.Symbol {
	case cur.Symbol:
		s.mu.Unlock()
		return
	case other.Symbol:
		*cur, *other = *other, *cur
	default:
		*cur = token
	}
	s.resetAmountsLocked()
	s.mu.Unlock()

	s.notifyChange()
	go s.FetchPoolData()
	s.maybeScheduleQuote()
}

// SwitchTokens swaps the sell/buy identities and refreshes pool data for
// the reversed pair.
func (s *SwapStore) SwitchTokens() {
	s.mu.Lock()
	s.sellToken, s.buyToken = s.buyToken, s.sellToken
	s.resetAmountsLocked()
	s.mu.Unlock()

	s.notifyChange()
	go s.FetchPoolData()
	s.maybeScheduleQuote()
}

// resetAmountsLocked returns the amounts to baseline and invalidates any
// in-flight quote. Caller holds s.mu.
func (s *SwapStore) resetAmountsLocked() {
	s.payAmount = s.cfg.Baseline
	s.receiveAmount = decimal.Zero
	s.quoteGen++
	s.isQuoteLoading = false
	s.quoteDebounce.Stop()
}

// SetPayAmount stores the raw input immediately so the caller sees the
// keystroke without lag, then schedules a debounced quote fetch. An empty
// or zero value resets the receive amount synchronously with no network
// call.
func (s *SwapStore) SetPayAmount(value string) {
	s.mu.Lock()
	s.payAmount = value
	s.mu.Unlock()

	amount, err := numeric.ParseAmount(value)
	if err != nil || amount.IsZero() {
		s.quoteDebounce.Stop()
		s.mu.Lock()
		s.quoteGen++
		s.receiveAmount = decimal.Zero
		s.isQuoteLoading = false
		s.mu.Unlock()
		s.notifyChange()
		return
	}

	s.quoteDebounce.Schedule(s.fetchQuote)
	s.notifyChange()
}

func (s *SwapStore) maybeScheduleQuote() {
	amount, err := numeric.ParseAmount(s.PayAmount())
	if err != nil || amount.IsZero() {
		return
	}
	s.quoteDebounce.Schedule(s.fetchQuote)
}

// fetchQuote converts payAmount to base units, asks the queries contract
// for amountOut, and commits the result. Results of superseded fetches are
// dropped by the generation gate, never committed out of order. On any
// error the quote falls back to an oracle-price estimate.
func (s *SwapStore) fetchQuote() {
	s.mu.Lock()
	s.quoteGen++
	gen := s.quoteGen
	sell, buy := s.sellToken, s.buyToken
	pay := s.payAmount
	s.isQuoteLoading = true
	s.mu.Unlock()

	payDec, err := numeric.ParseAmount(pay)
	if err != nil || payDec.IsZero() {
		s.commitQuote(gen, decimal.Zero)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), quoteTimeout)
	defer cancel()

	amountIn := numeric.ParseUnits(payDec, sell.Decimals)
	out, err := s.quotes.AmountOut(ctx, s.cfg.Network.PoolAddress, amountIn, sell.Address, buy.Address)
	if err != nil {
		s.logger.Warn("quote failed, using oracle estimate",
			zap.String("sell", sell.Symbol),
			zap.String("buy", buy.Symbol),
			zap.Error(err),
		)
		s.commitQuote(gen, s.oracleEstimate(payDec, sell, buy))
		return
	}

	s.commitQuote(gen, numeric.FormatUnits(out, buy.Decimals))
}

func (s *SwapStore) commitQuote(gen uint64, amount decimal.Decimal) {
	s.mu.Lock()
	if gen != s.quoteGen {
		s.mu.Unlock()
		return
	}
	s.receiveAmount = amount
	s.isQuoteLoading = false
	s.mu.Unlock()
	s.notifyChange()
}

// oracleEstimate prices the swap as payAmount * sellPrice / buyPrice,
// using zero when either price is unavailable.
func (s *SwapStore) oracleEstimate(pay decimal.Decimal, sell, buy registry.Token) decimal.Decimal {
	sellPrice, okSell := s.oracle.PriceBySymbol(sell.Symbol)
	buyPrice, okBuy := s.oracle.PriceBySymbol(buy.Symbol)
	if !okSell || !okBuy || buyPrice.IsZero() {
		return decimal.Zero
	}
	return pay.Mul(sellPrice).Div(buyPrice)
}

// QuoteNow fetches a quote synchronously, bypassing the debounce. Used by
// one-shot callers; the interactive path goes through SetPayAmount.
func (s *SwapStore) QuoteNow(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	s.quoteGen++
	gen := s.quoteGen
	sell, buy := s.sellToken, s.buyToken
	pay := s.payAmount
	s.mu.Unlock()

	payDec, err := numeric.ParseAmount(pay)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse pay amount %q: %w", pay, err)
	}
	if payDec.IsZero() {
		s.commitQuote(gen, decimal.Zero)
		return decimal.Zero, nil
	}

	amountIn := numeric.ParseUnits(payDec, sell.Decimals)
	out, err := s.quotes.AmountOut(ctx, s.cfg.Network.PoolAddress, amountIn, sell.Address, buy.Address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote %s/%s: %w", sell.Symbol, buy.Symbol, err)
	}

	quoted := numeric.FormatUnits(out, buy.Decimals)
	s.commitQuote(gen, quoted)
	return quoted, nil
}

// FetchPoolData refreshes the active pair's pool snapshot. On failure the
// snapshot is set to nil (unknown, not zero); the very first failed load is
// not surfaced as a notification to avoid a startup error flash.
func (s *SwapStore) FetchPoolData() {
	s.mu.Lock()
	if s.isPoolLoading {
		s.mu.Unlock()
		return
	}
	s.isPoolLoading = true
	sell, buy := s.sellToken, s.buyToken
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), poolDataTimeout)
	defer cancel()

	data, err := s.pool.Fetch(ctx, sell.Address, buy.Address)
	if err != nil {
		s.mu.Lock()
		s.poolData = nil
		s.isPoolLoading = false
		loadedBefore := s.poolLoadedOnce
		s.mu.Unlock()

		s.logger.Warn("pool data fetch failed", zap.Error(err))
		if loadedBefore {
			s.notifier.Error("pool data", err.Error())
		}
		return
	}

	formatted := dex.FormatPoolData(data, s.cfg.Network.Tokens)
	s.mu.Lock()
	s.poolData = formatted
	s.poolLoadedOnce = true
	s.isPoolLoading = false
	s.mu.Unlock()
	s.notifyChange()
}

// PoolData returns the latest pool snapshot, nil when unknown.
func (s *SwapStore) PoolData() *dex.FormattedPoolData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poolData
}

// ExchangeRate derives receiveAmount / payAmount. ok is false when either
// side is zero or unparsable; division-by-zero never escapes.
func (s *SwapStore) ExchangeRate() (decimal.Decimal, bool) {
	s.mu.Lock()
	pay := s.payAmount
	recv := s.receiveAmount
	s.mu.Unlock()

	payDec, err := numeric.ParseAmount(pay)
	if err != nil || payDec.IsZero() || recv.IsZero() {
		return decimal.Zero, false
	}
	return recv.Div(payDec), true
}

// VirtualBalance returns the sell token's virtual balance within the pool
// snapshot, ok false when the snapshot is unknown or the token is not part
// of it.
func (s *SwapStore) VirtualBalance() (decimal.Decimal, bool) {
	return s.poolBalance(func(p *dex.FormattedPoolData) []decimal.Decimal { return p.VirtualBalances })
}

// FactBalance returns the sell token's actual vault balance within the
// pool snapshot.
func (s *SwapStore) FactBalance() (decimal.Decimal, bool) {
	return s.poolBalance(func(p *dex.FormattedPoolData) []decimal.Decimal { return p.ActualBalances })
}

func (s *SwapStore) poolBalance(pick func(*dex.FormattedPoolData) []decimal.Decimal) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poolData == nil {
		return decimal.Zero, false
	}
	balances := pick(s.poolData)
	for i, addr := range s.poolData.Tokens {
		if addr == s.sellToken.Address && i < len(balances) {
			return balances[i], true
		}
	}
	return decimal.Zero, false
}

// Swap executes the full approve-then-swap sequence. Concurrent calls
// while one is in flight are ignored, not queued. Without a connected
// wallet the call is a silent no-op; the presentation layer gates on
// connection state.
func (s *SwapStore) Swap(ctx context.Context) error {
	s.mu.Lock()
	if s.isLoading {
		s.mu.Unlock()
		return nil
	}
	owner, connected := s.accounts.Address()
	if !connected {
		s.mu.Unlock()
		return nil
	}
	sell, buy := s.sellToken, s.buyToken
	pay := s.payAmount
	recv := s.receiveAmount
	s.isLoading = true
	s.mu.Unlock()

	// Flags are never left stuck on, whatever the outcome.
	defer func() {
		s.mu.Lock()
		s.isLoading = false
		s.isApproving = false
		s.isSwapping = false
		s.mu.Unlock()
	}()

	payDec, err := numeric.ParseAmount(pay)
	if err != nil || !payDec.IsPositive() {
		return nil
	}

	amountIn := numeric.ParseUnits(payDec, sell.Decimals)
	limit := numeric.ParseUnits(recv, buy.Decimals)

	fail := func(step string, err error) error {
		s.logger.Error("swap failed", zap.String("step", step), zap.Error(err))
		s.notifier.Error("swap", fmt.Sprintf("%s: %v", step, err))
		// Reflect any partial on-chain state change.
		go s.FetchPoolData()
		return fmt.Errorf("%s: %w", step, err)
	}

	if !sell.IsNative {
		allowance, err := s.tokens.Allowance(ctx, sell.Address, owner, s.cfg.Network.VaultAddress)
		if err != nil {
			return fail("check allowance", err)
		}
		if allowance.Cmp(amountIn) < 0 {
			s.mu.Lock()
			s.isApproving = true
			s.mu.Unlock()

			_, _, err := s.tokens.Approve(ctx, sell.Address, s.cfg.Network.VaultAddress, amountIn)

			s.mu.Lock()
			s.isApproving = false
			s.mu.Unlock()

			if err != nil {
				return fail("approve", err)
			}
		}
	}

	poolID, err := s.pool.PoolID(ctx)
	if err != nil {
		return fail("resolve pool id", err)
	}

	s.mu.Lock()
	s.isSwapping = true
	s.mu.Unlock()

	deadline := big.NewInt(time.Now().Add(s.cfg.SwapDeadline).Unix())
	hash, _, err := s.vault.Swap(ctx, dex.SwapParams{
		PoolID:    poolID,
		Kind:      dex.SwapKindGivenIn,
		AssetIn:   sell.Address,
		AssetOut:  buy.Address,
		Amount:    amountIn,
		Sender:    owner,
		Recipient: owner,
		Limit:     limit,
		Deadline:  deadline,
	})

	s.mu.Lock()
	s.isSwapping = false
	s.mu.Unlock()

	if err != nil {
		return fail("swap", err)
	}

	s.notifier.Success("swap", fmt.Sprintf("swapped %s %s for %s %s, tx %s",
		payDec, sell.Symbol, recv, buy.Symbol, hash.Hex()))
	s.recordExecution(ctx, sell, buy, payDec, recv, hash)

	s.balances.Refresh()
	go s.FetchPoolData()

	s.mu.Lock()
	s.payAmount = s.cfg.Baseline
	s.receiveAmount = decimal.Zero
	s.mu.Unlock()
	s.notifyChange()

	return nil
}

func (s *SwapStore) recordExecution(ctx context.Context, sell, buy registry.Token, pay, recv decimal.Decimal, hash common.Hash) {
	if s.ledger == nil {
		return
	}
	exec := history.SwapExecution{
		ChainID:     s.cfg.Network.ChainID,
		PoolAddress: s.cfg.Network.PoolAddress.Hex(),
		TokenIn:     sell.Symbol,
		TokenOut:    buy.Symbol,
		AmountIn:    pay.String(),
		AmountOut:   recv.String(),
		TxHash:      hash.Hex(),
		Status:      "confirmed",
		ExecutedAt:  time.Now(),
	}
	if err := s.ledger.Record(ctx, exec); err != nil {
		s.logger.Warn("swap ledger record failed", zap.String("tx", hash.Hex()), zap.Error(err))
	}
}
