package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rangeswap/internal/chain"
	"rangeswap/internal/config"
	"rangeswap/internal/dex"
	"rangeswap/internal/history"
	"rangeswap/internal/lightning"
	"rangeswap/internal/oracle"
	"rangeswap/internal/registry"
	"rangeswap/internal/state"
	"rangeswap/internal/store"
)

// App assembles the chain client, contract services and stores into one
// running unit. Construction only wires dependencies; nothing polls until
// Start.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	network registry.Network

	chain    *chain.Client
	queries  *dex.PoolQueries
	ledger   *history.Store
	snapshot *state.Store

	Accounts  *store.AccountStore
	Oracle    *store.OracleStore
	Balances  *store.BalanceStore
	Swaps     *store.SwapStore
	Lightning *lightning.Watcher
}

// New builds the full dependency graph from config. The private key is
// optional; without it the app can quote and read but not swap.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	network, ok := registry.ByChainID(cfg.ChainID)
	if !ok {
		return nil, fmt.Errorf("unsupported chain id %d", cfg.ChainID)
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("connect chain: %w", err)
	}
	if got := client.ChainID(); got != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("rpc chain id %d does not match configured %d", got, cfg.ChainID)
	}

	queries, err := dex.NewPoolQueries(network.QueriesAddress, client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pool queries: %w", err)
	}
	vault, err := dex.NewVault(network.VaultAddress, client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("vault: %w", err)
	}
	erc20, err := dex.NewERC20(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("erc20: %w", err)
	}
	fetcher, err := dex.NewPoolDataFetcher(network.PoolAddress, client, vault, queries)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pool data fetcher: %w", err)
	}
	portfolio, err := dex.NewPortfolio(client, erc20, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("portfolio: %w", err)
	}

	accounts := store.NewAccountStore()
	oracleStore := store.NewOracleStore(oracle.NewClient(cfg.OracleBaseURL), accounts, logger)
	balances := store.NewBalanceStore(accounts, portfolio, logger)
	notifier := store.NewLogNotifier(logger)

	var ledger *history.Store
	if cfg.PGDSN != "" {
		ledger, err = history.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
		if err := ledger.EnsureSchema(ctx); err != nil {
			ledger.Close()
			client.Close()
			return nil, fmt.Errorf("history schema: %w", err)
		}
	}

	var swapLedger store.Ledger
	if ledger != nil {
		swapLedger = ledger
	}
	swaps, err := store.NewSwapStore(
		store.SwapConfig{
			Network:    network,
			Baseline:   cfg.PayBaseline,
			QuoteDelay: cfg.QuoteDelay,
		},
		accounts, oracleStore, balances, queries, fetcher, vault, erc20,
		swapLedger, notifier, logger,
	)
	if err != nil {
		if ledger != nil {
			ledger.Close()
		}
		client.Close()
		return nil, fmt.Errorf("swap store: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		network:  network,
		chain:    client,
		queries:  queries,
		ledger:   ledger,
		snapshot: state.NewStore(cfg.StateFile, logger),
		Accounts: accounts,
		Oracle:   oracleStore,
		Balances: balances,
		Swaps:    swaps,
	}
	if cfg.LightningURL != "" {
		a.Lightning = lightning.NewWatcher(lightning.NewClient(cfg.LightningURL), logger)
	}

	a.restoreSnapshot()

	swaps.SetOnChange(a.persist)
	accounts.Subscribe(a.persist)

	// The signer doubles as the connected wallet.
	if client.CanSign() {
		accounts.SetConnection(client.Sender(), client.ChainID(), true)
	}

	go a.verifyTokenMetadata(erc20)

	return a, nil
}

// verifyTokenMetadata cross-checks the static token registry against the
// contracts. A mismatch means a misconfigured address and would corrupt
// every unit conversion, so it is logged loudly but does not abort.
func (a *App) verifyTokenMetadata(erc20 *dex.ERC20) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cache := dex.NewTokenMetaCache()
	for _, token := range a.network.Tokens {
		if token.IsNative {
			continue
		}
		meta, err := erc20.Metadata(ctx, cache, token.Address)
		if err != nil {
			a.logger.Warn("token metadata check failed",
				zap.String("token", token.Symbol), zap.Error(err))
			continue
		}
		if int32(meta.Decimals) != token.Decimals || meta.Symbol != token.Symbol {
			a.logger.Error("token registry mismatch",
				zap.String("configured_symbol", token.Symbol),
				zap.String("chain_symbol", meta.Symbol),
				zap.Int32("configured_decimals", token.Decimals),
				zap.Uint8("chain_decimals", meta.Decimals),
			)
		}
	}
}

// restoreSnapshot rehydrates the persisted token pair and pay amount.
// Unknown symbols from an older network config are skipped silently.
func (a *App) restoreSnapshot() {
	snap, ok, err := a.snapshot.Load()
	if err != nil {
		a.logger.Warn("session state load failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if t, found := a.network.TokenBySymbol(snap.SellSymbol); found {
		a.Swaps.SetSellToken(t)
	}
	if t, found := a.network.TokenBySymbol(snap.BuySymbol); found {
		a.Swaps.SetBuyToken(t)
	}
	if snap.PayAmount != "" {
		a.Swaps.SetPayAmount(snap.PayAmount)
	}
	a.logger.Info("session state restored",
		zap.String("sell", snap.SellSymbol),
		zap.String("buy", snap.BuySymbol),
	)
}

func (a *App) persist() {
	addr := ""
	if sender, ok := a.Accounts.Address(); ok {
		addr = sender.Hex()
	}
	a.snapshot.Save(state.Snapshot{
		Address:    addr,
		ChainID:    a.Accounts.ChainID(),
		SellSymbol: a.Swaps.SellToken().Symbol,
		BuySymbol:  a.Swaps.BuyToken().Symbol,
		PayAmount:  a.Swaps.PayAmount(),
	})
}

// Network returns the active network configuration.
func (a *App) Network() registry.Network {
	return a.network
}

// Queries returns the pool queries read service.
func (a *App) Queries() *dex.PoolQueries {
	return a.queries
}

// History returns the swap ledger, nil when no database is configured.
func (a *App) History() *history.Store {
	return a.ledger
}

// Start kicks off the oracle and balance pollers and the initial pool
// data load.
func (a *App) Start() {
	a.Oracle.Start()
	a.Balances.Start()
	go a.Swaps.FetchPoolData()
}

// Run starts the pollers and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Start()
	a.logger.Info("running",
		zap.String("network", a.network.Name),
		zap.Uint64("chain_id", a.network.ChainID),
		zap.Bool("signing", a.chain.CanSign()),
	)
	<-ctx.Done()
	return ctx.Err()
}

// Close stops all timers, flushes pending session state and releases the
// chain and database connections.
func (a *App) Close() {
	a.Swaps.Stop()
	a.Balances.Stop()
	a.Oracle.Stop()
	a.snapshot.Flush()
	if a.ledger != nil {
		a.ledger.Close()
	}
	a.chain.Close()
}
