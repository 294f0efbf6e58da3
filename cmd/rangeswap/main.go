package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rangeswap/internal/app"
	"rangeswap/internal/config"
	"rangeswap/internal/lightning"
	"rangeswap/internal/numeric"
)

func main() {
	root := &cobra.Command{
		Use:          "rangeswap",
		Short:        "Range pool swap client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the swap client with live price and balance polling",
		RunE:  runDaemon,
	}
	addCommonFlags(runCmd)
	root.AddCommand(runCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap without executing it",
		RunE:  runQuote,
	}
	addCommonFlags(quoteCmd)
	addPairFlags(quoteCmd)
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute a swap through the vault",
		RunE:  runSwap,
	}
	addCommonFlags(swapCmd)
	addPairFlags(swapCmd)
	root.AddCommand(swapCmd)

	lnswapCmd := &cobra.Command{
		Use:   "lnswap",
		Short: "Create a BTC Lightning swap and watch it settle",
		RunE:  runLnswap,
	}
	addCommonFlags(lnswapCmd)
	lnswapCmd.Flags().String("amount-btc", "", "BTC amount to pay over Lightning")
	lnswapCmd.Flags().String("amount-eth", "", "ETH amount to receive")
	lnswapCmd.Flags().String("eth-address", "", "receiving ETH address")
	root.AddCommand(lnswapCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recently executed swaps",
		RunE:  runHistory,
	}
	addCommonFlags(historyCmd)
	historyCmd.Flags().Int("limit", 20, "number of rows to show")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("private-key", "", "hex private key for signing (optional)")
	cmd.Flags().Uint64("chain-id", 11155111, "chain id of the target network")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the swap ledger (optional)")
	cmd.Flags().String("state-file", "./data/state.json", "session state file path")
	cmd.Flags().String("lightning-url", "", "Lightning swap API base URL (optional)")
	cmd.Flags().String("pay-baseline", "0.00", "pay amount reset value")
	cmd.Flags().Duration("quote-delay", 500*time.Millisecond, "quote debounce delay")
	cmd.Flags().String("oracle-url", "", "price oracle base URL (defaults to public Hermes)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().String("sell", "", "sell token symbol")
	cmd.Flags().String("buy", "", "buy token symbol")
	cmd.Flags().String("amount", "", "pay amount in token units")
}

func setup(cmd *cobra.Command) (*app.App, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

// applyPair points the swap store at the pair and amount from flags,
// leaving restored session state in place for any flag left empty.
func applyPair(cmd *cobra.Command, a *app.App) error {
	network := a.Network()

	if sell, _ := cmd.Flags().GetString("sell"); sell != "" {
		token, ok := network.TokenBySymbol(sell)
		if !ok {
			return fmt.Errorf("unknown sell token %q on %s", sell, network.Name)
		}
		a.Swaps.SetSellToken(token)
	}
	if buy, _ := cmd.Flags().GetString("buy"); buy != "" {
		token, ok := network.TokenBySymbol(buy)
		if !ok {
			return fmt.Errorf("unknown buy token %q on %s", buy, network.Name)
		}
		a.Swaps.SetBuyToken(token)
	}
	if amount, _ := cmd.Flags().GetString("amount"); amount != "" {
		a.Swaps.SetPayAmount(amount)
	}
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	if err := applyPair(cmd, a); err != nil {
		return err
	}

	quoted, err := a.Swaps.QuoteNow(ctx)
	if err != nil {
		return err
	}

	sell := a.Swaps.SellToken()
	buy := a.Swaps.BuyToken()
	fmt.Printf("%s %s -> %s %s\n", a.Swaps.PayAmount(), sell.Symbol, quoted, buy.Symbol)
	if rate, ok := a.Swaps.ExchangeRate(); ok {
		fmt.Printf("rate: 1 %s = %s %s\n", sell.Symbol, rate, buy.Symbol)
	}

	if pay, perr := numeric.ParseAmount(a.Swaps.PayAmount()); perr == nil && pay.IsPositive() {
		info, ierr := a.Queries().SwapInfo(ctx, a.Network().PoolAddress,
			numeric.ParseUnits(pay, sell.Decimals), sell.Address, buy.Address)
		if ierr != nil {
			logger.Warn("swap breakdown unavailable", zap.Error(ierr))
		} else {
			fmt.Printf("fee: %s %s (%s%%)\n",
				numeric.FormatUnits(info.FeeAmount, sell.Decimals), sell.Symbol,
				numeric.FormatUnits(info.SwapFeePercentage, 16))
		}
	}

	a.Swaps.FetchPoolData()
	if pool := a.Swaps.PoolData(); pool != nil {
		fmt.Printf("price band: %s .. %s\n", pool.MinPrice, pool.MaxPrice)
	}
	return nil
}

func runSwap(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	if err := applyPair(cmd, a); err != nil {
		return err
	}

	if _, err := a.Swaps.QuoteNow(ctx); err != nil {
		return err
	}

	return a.Swaps.Swap(ctx)
}

func runLnswap(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	if a.Lightning == nil {
		return fmt.Errorf("lightning-url is required")
	}

	amountBTC, _ := cmd.Flags().GetString("amount-btc")
	amountETH, _ := cmd.Flags().GetString("amount-eth")
	ethAddress, _ := cmd.Flags().GetString("eth-address")
	if amountBTC == "" || amountETH == "" || ethAddress == "" {
		return fmt.Errorf("amount-btc, amount-eth and eth-address are required")
	}

	resp, err := a.Lightning.Client().CreateSwap(ctx, lightning.SwapRequest{
		AmountBTC:  amountBTC,
		AmountETH:  amountETH,
		ETHAddress: ethAddress,
	})
	if err != nil {
		return err
	}

	fmt.Printf("pay this Lightning invoice:\n%s\n", resp.LightningInvoice)

	for details := range a.Lightning.Watch(ctx, resp.LightningInvoice) {
		fmt.Printf("status: %s\n", details.Status)
		if details.Status == lightning.StatusCompleted && details.TxID != "" {
			fmt.Printf("settlement tx: %s\n", details.TxID)
		}
	}
	return ctx.Err()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	ledger := a.History()
	if ledger == nil {
		return fmt.Errorf("pg-dsn is required")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	rows, err := ledger.Recent(ctx, a.Network().ChainID, limit)
	if err != nil {
		return err
	}

	for _, row := range rows {
		fmt.Printf("%s  %s %s -> %s %s  %s  %s\n",
			row.ExecutedAt.Format(time.RFC3339),
			row.AmountIn, row.TokenIn, row.AmountOut, row.TokenOut,
			row.Status, row.TxHash)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
