package store

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rangeswap/internal/dex"
	"rangeswap/internal/numeric"
	"rangeswap/internal/registry"
)

var (
	testVOV = registry.Token{
		Symbol:   "VOV",
		Decimals: 18,
		Address:  common.HexToAddress("0x86D7Dc8807C1C24b49684104D63a7d009Ccd4Cca"),
	}
	testLID = registry.Token{
		Symbol:   "LID",
		Decimals: 18,
		Address:  common.HexToAddress("0x6778CbA88EDd82244363fd8c77dA539b72f79a9b"),
	}
	testETH = registry.Token{
		Symbol:   "ETH",
		Decimals: 18,
		IsNative: true,
	}
	testOwner = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func testNetwork() registry.Network {
	return registry.Network{
		Name:         "sepolia",
		ChainID:      11155111,
		PoolAddress:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		VaultAddress: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Tokens:       []registry.Token{testETH, testVOV, testLID},
	}
}

type quoteCall struct {
	amountIn *big.Int
	assetIn  common.Address
	assetOut common.Address
}

type fakeQuotes struct {
	mu    sync.Mutex
	calls []quoteCall
	out   *big.Int
	err   error
}

func (f *fakeQuotes) AmountOut(_ context.Context, _ common.Address, amountIn *big.Int, assetIn, assetOut common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, quoteCall{amountIn: amountIn, assetIn: assetIn, assetOut: assetOut})
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func (f *fakeQuotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePool struct {
	mu       sync.Mutex
	poolID   [32]byte
	data     *dex.PoolData
	fetchErr error
	steps    *callRecorder
}

func (f *fakePool) PoolID(context.Context) ([32]byte, error) {
	if f.steps != nil {
		f.steps.note("poolID")
	}
	return f.poolID, nil
}

func (f *fakePool) Fetch(context.Context, common.Address, common.Address) (*dex.PoolData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.data, nil
}

type fakeVault struct {
	mu     sync.Mutex
	params []dex.SwapParams
	err    error
	block  chan struct{}
	steps  *callRecorder
}

func (f *fakeVault) Swap(_ context.Context, params dex.SwapParams) (common.Hash, *types.Receipt, error) {
	if f.steps != nil {
		f.steps.note("swap")
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.params = append(f.params, params)
	f.mu.Unlock()
	if f.err != nil {
		return common.Hash{}, nil, f.err
	}
	return common.HexToHash("0xabc"), &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeVault) swapCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.params)
}

type fakeTokens struct {
	allowance  *big.Int
	approveErr error
	approved   []*big.Int
	steps      *callRecorder
}

func (f *fakeTokens) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	if f.steps != nil {
		f.steps.note("allowance")
	}
	return f.allowance, nil
}

func (f *fakeTokens) Approve(_ context.Context, _, _ common.Address, amount *big.Int) (common.Hash, *types.Receipt, error) {
	if f.steps != nil {
		f.steps.note("approve")
	}
	if f.approveErr != nil {
		return common.Hash{}, nil, f.approveErr
	}
	f.approved = append(f.approved, amount)
	return common.HexToHash("0xdef"), &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

type fakePrices struct {
	prices map[string]decimal.Decimal
}

func (f *fakePrices) PriceBySymbol(symbol string) (decimal.Decimal, bool) {
	p, ok := f.prices[symbol]
	return p, ok
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) Refresh() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (f *fakeNotifier) Success(_, msg string) {
	f.mu.Lock()
	f.successes = append(f.successes, msg)
	f.mu.Unlock()
}

func (f *fakeNotifier) Error(_, msg string) {
	f.mu.Lock()
	f.errors = append(f.errors, msg)
	f.mu.Unlock()
}

func (f *fakeNotifier) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

// callRecorder captures the order of side-effecting steps across fakes.
type callRecorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *callRecorder) note(step string) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

func (r *callRecorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.steps))
	copy(out, r.steps)
	return out
}

type swapFixture struct {
	store    *SwapStore
	accounts *AccountStore
	quotes   *fakeQuotes
	pool     *fakePool
	vault    *fakeVault
	tokens   *fakeTokens
	prices   *fakePrices
	balances *fakeRefresher
	notifier *fakeNotifier
	steps    *callRecorder
}

func newSwapFixture(t *testing.T, quoteDelay time.Duration) *swapFixture {
	t.Helper()

	steps := &callRecorder{}
	f := &swapFixture{
		accounts: NewAccountStore(),
		quotes:   &fakeQuotes{out: big.NewInt(0)},
		pool:     &fakePool{steps: steps},
		vault:    &fakeVault{steps: steps},
		tokens:   &fakeTokens{allowance: big.NewInt(0), steps: steps},
		prices:   &fakePrices{prices: map[string]decimal.Decimal{}},
		balances: &fakeRefresher{},
		notifier: &fakeNotifier{},
		steps:    steps,
	}

	store, err := NewSwapStore(
		SwapConfig{Network: testNetwork(), QuoteDelay: quoteDelay},
		f.accounts, f.prices, f.balances, f.quotes, f.pool, f.vault, f.tokens,
		nil, f.notifier, zap.NewNop(),
	)
	require.NoError(t, err)
	f.store = store
	t.Cleanup(store.Stop)
	return f
}

func (f *swapFixture) connect() {
	f.accounts.SetConnection(testOwner, testNetwork().ChainID, true)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDefaultPairSkipsNative(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	require.Equal(t, "VOV", f.store.SellToken().Symbol)
	require.Equal(t, "LID", f.store.BuyToken().Symbol)
	require.Equal(t, DefaultPayBaseline, f.store.PayAmount())
}

func TestSetSellTokenToBuySideSwapsPair(t *testing.T) {
	f := newSwapFixture(t, time.Hour)

	f.store.SetSellToken(testLID)

	require.Equal(t, "LID", f.store.SellToken().Symbol)
	require.Equal(t, "VOV", f.store.BuyToken().Symbol)
	require.NotEqual(t, f.store.SellToken().Symbol, f.store.BuyToken().Symbol)
}

func TestSetSellTokenSameSymbolIsNoOp(t *testing.T) {
	f := newSwapFixture(t, time.Hour)

	f.store.SetPayAmount("5")
	f.store.SetSellToken(testVOV)

	require.Equal(t, "5", f.store.PayAmount())
}

func TestSetTokenResetsAmounts(t *testing.T) {
	f := newSwapFixture(t, time.Hour)

	f.store.SetPayAmount("5")
	f.store.SetSellToken(testETH)

	require.Equal(t, DefaultPayBaseline, f.store.PayAmount())
	require.True(t, f.store.ReceiveAmount().IsZero())
}

func TestSwitchTokensReversesPair(t *testing.T) {
	f := newSwapFixture(t, time.Hour)

	f.store.SwitchTokens()

	require.Equal(t, "LID", f.store.SellToken().Symbol)
	require.Equal(t, "VOV", f.store.BuyToken().Symbol)
}

func TestSetPayAmountEchoesImmediately(t *testing.T) {
	f := newSwapFixture(t, time.Hour)

	f.store.SetPayAmount("123.45")

	require.Equal(t, "123.45", f.store.PayAmount())
	require.Equal(t, 0, f.quotes.callCount())
}

func TestSetPayAmountDebouncesToLastValue(t *testing.T) {
	f := newSwapFixture(t, 30*time.Millisecond)
	f.quotes.out = numeric.ParseUnits(decimal.RequireFromString("20"), 18)

	f.store.SetPayAmount("1")
	f.store.SetPayAmount("12")
	f.store.SetPayAmount("123")

	waitFor(t, func() bool { return f.quotes.callCount() > 0 }, "quote never fired")
	time.Sleep(100 * time.Millisecond)

	require.Equal(t, 1, f.quotes.callCount())
	want := numeric.ParseUnits(decimal.RequireFromString("123"), 18)
	require.Zero(t, want.Cmp(f.quotes.calls[0].amountIn))
	require.Equal(t, "20", f.store.ReceiveAmount().String())
}

func TestSetPayAmountZeroResetsWithoutQuote(t *testing.T) {
	f := newSwapFixture(t, 10*time.Millisecond)
	f.quotes.out = numeric.ParseUnits(decimal.RequireFromString("7"), 18)

	f.store.SetPayAmount("3")
	waitFor(t, func() bool { return !f.store.ReceiveAmount().IsZero() }, "quote never committed")

	before := f.quotes.callCount()
	f.store.SetPayAmount("0")

	require.True(t, f.store.ReceiveAmount().IsZero())
	require.False(t, f.store.IsQuoteLoading())
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, before, f.quotes.callCount())
}

func TestQuoteFallsBackToOracleEstimate(t *testing.T) {
	f := newSwapFixture(t, 5*time.Millisecond)
	f.quotes.err = context.DeadlineExceeded
	f.prices.prices["VOV"] = decimal.RequireFromString("4")
	f.prices.prices["LID"] = decimal.RequireFromString("2")

	f.store.SetPayAmount("10")

	waitFor(t, func() bool { return f.store.ReceiveAmount().Equal(decimal.RequireFromString("20")) },
		"oracle estimate never committed")
}

func TestQuoteFallbackZeroWhenPriceUnknown(t *testing.T) {
	f := newSwapFixture(t, 5*time.Millisecond)
	f.quotes.err = context.DeadlineExceeded

	f.store.SetPayAmount("10")

	waitFor(t, func() bool { return f.quotes.callCount() > 0 && !f.store.IsQuoteLoading() },
		"quote never settled")
	require.True(t, f.store.ReceiveAmount().IsZero())
}

func TestSwapNoOpWithoutWallet(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.store.SetPayAmount("1")

	require.NoError(t, f.store.Swap(context.Background()))
	require.Equal(t, 0, f.vault.swapCount())
}

func TestSwapApprovesBeforeSwapWhenAllowanceShort(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.connect()
	f.store.SetPayAmount("10")

	require.NoError(t, f.store.Swap(context.Background()))

	require.Equal(t, []string{"allowance", "approve", "poolID", "swap"}, f.steps.sequence())
	want := numeric.ParseUnits(decimal.RequireFromString("10"), 18)
	require.Zero(t, want.Cmp(f.tokens.approved[0]))
}

func TestSwapSkipsApproveWhenAllowanceSufficient(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.connect()
	f.tokens.allowance = numeric.ParseUnits(decimal.RequireFromString("100"), 18)
	f.store.SetPayAmount("10")

	require.NoError(t, f.store.Swap(context.Background()))

	require.Equal(t, []string{"allowance", "poolID", "swap"}, f.steps.sequence())
}

func TestSwapSkipsAllowanceForNativeSell(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.connect()
	f.store.SetSellToken(testETH)
	f.store.SetPayAmount("1")

	require.NoError(t, f.store.Swap(context.Background()))

	require.Equal(t, []string{"poolID", "swap"}, f.steps.sequence())
}

func TestSwapParamsCarryLimitAndParties(t *testing.T) {
	f := newSwapFixture(t, 5*time.Millisecond)
	f.connect()
	f.tokens.allowance = numeric.ParseUnits(decimal.RequireFromString("100"), 18)
	f.quotes.out = numeric.ParseUnits(decimal.RequireFromString("9.5"), 18)

	f.store.SetPayAmount("10")
	waitFor(t, func() bool { return !f.store.ReceiveAmount().IsZero() }, "quote never committed")

	require.NoError(t, f.store.Swap(context.Background()))

	require.Equal(t, 1, f.vault.swapCount())
	p := f.vault.params[0]
	require.Equal(t, dex.SwapKindGivenIn, p.Kind)
	require.Equal(t, testVOV.Address, p.AssetIn)
	require.Equal(t, testLID.Address, p.AssetOut)
	require.Equal(t, testOwner, p.Sender)
	require.Equal(t, testOwner, p.Recipient)
	wantLimit := numeric.ParseUnits(decimal.RequireFromString("9.5"), 18)
	require.Zero(t, wantLimit.Cmp(p.Limit))
	require.Greater(t, p.Deadline.Int64(), time.Now().Unix())
}

func TestSwapResetsAmountsAndRefreshesBalances(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.connect()
	f.tokens.allowance = numeric.ParseUnits(decimal.RequireFromString("100"), 18)
	f.store.SetPayAmount("10")

	require.NoError(t, f.store.Swap(context.Background()))

	require.Equal(t, DefaultPayBaseline, f.store.PayAmount())
	require.True(t, f.store.ReceiveAmount().IsZero())
	require.Equal(t, 1, f.balances.calls)
	require.Len(t, f.notifier.successes, 1)
	require.False(t, f.store.IsLoading())
}

func TestSwapFailureNotifiesAndClearsFlags(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.connect()
	f.tokens.allowance = numeric.ParseUnits(decimal.RequireFromString("100"), 18)
	f.vault.err = context.DeadlineExceeded
	f.store.SetPayAmount("10")

	err := f.store.Swap(context.Background())

	require.Error(t, err)
	require.Equal(t, 1, f.notifier.errorCount())
	require.False(t, f.store.IsLoading())
	require.False(t, f.store.IsSwapping())
	require.Equal(t, "10", f.store.PayAmount())
}

func TestSwapIgnoredWhileInFlight(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.connect()
	f.tokens.allowance = numeric.ParseUnits(decimal.RequireFromString("100"), 18)
	f.vault.block = make(chan struct{})
	f.store.SetPayAmount("10")

	done := make(chan error, 1)
	go func() { done <- f.store.Swap(context.Background()) }()

	waitFor(t, f.store.IsLoading, "first swap never started")
	require.NoError(t, f.store.Swap(context.Background()))

	close(f.vault.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.vault.swapCount())
}

func TestExchangeRateNeverDividesByZero(t *testing.T) {
	f := newSwapFixture(t, time.Hour)

	_, ok := f.store.ExchangeRate()
	require.False(t, ok)
}

func TestPoolBalancesFollowSellToken(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.pool.data = &dex.PoolData{
		Tokens: []common.Address{testVOV.Address, testLID.Address},
		VirtualBalances: []*big.Int{
			numeric.ParseUnits(decimal.RequireFromString("100"), 18),
			numeric.ParseUnits(decimal.RequireFromString("200"), 18),
		},
		ActualBalances: []*big.Int{
			numeric.ParseUnits(decimal.RequireFromString("90"), 18),
			numeric.ParseUnits(decimal.RequireFromString("180"), 18),
		},
		MinPrice: big.NewInt(0),
		MaxPrice: big.NewInt(0),
	}

	f.store.FetchPoolData()

	virt, ok := f.store.VirtualBalance()
	require.True(t, ok)
	require.Equal(t, "100", virt.String())

	fact, ok := f.store.FactBalance()
	require.True(t, ok)
	require.Equal(t, "90", fact.String())

	f.store.SwitchTokens()
	waitFor(t, func() bool { return !f.store.IsPoolLoading() }, "pool refresh never settled")

	virt, ok = f.store.VirtualBalance()
	require.True(t, ok)
	require.Equal(t, "200", virt.String())
}

func TestFirstPoolFetchFailureIsQuiet(t *testing.T) {
	f := newSwapFixture(t, time.Hour)
	f.pool.fetchErr = context.DeadlineExceeded

	f.store.FetchPoolData()
	require.Equal(t, 0, f.notifier.errorCount())
	require.Nil(t, f.store.PoolData())

	f.pool.mu.Lock()
	f.pool.fetchErr = nil
	f.pool.data = &dex.PoolData{MinPrice: big.NewInt(0), MaxPrice: big.NewInt(0)}
	f.pool.mu.Unlock()
	f.store.FetchPoolData()
	require.NotNil(t, f.store.PoolData())

	f.pool.mu.Lock()
	f.pool.fetchErr = context.DeadlineExceeded
	f.pool.mu.Unlock()
	f.store.FetchPoolData()
	require.Equal(t, 1, f.notifier.errorCount())
}
