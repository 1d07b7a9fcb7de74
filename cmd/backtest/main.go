package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/bootstrap"
	"github.com/perfect-swing-bot/pkg/strategy"
)

func main() {
	// Parse command-line flags
	tickerFlag := flag.String("ticker", "", "Single ticker symbol to backtest")
	daysFlag := flag.Int("days", 60, "Number of trading days to simulate")
	stopFlag := flag.Float64("stop", 0, "ATR stop multiplier (default: from strategy state)")
	targetFlag := flag.Float64("target", 0, "ATR target multiplier (default: from strategy state)")
	scoreFlag := flag.Float64("min-score", 0, "Minimum technical score to enter (default: from strategy state)")
	holdFlag := flag.Int("hold", 0, "Maximum holding days (default: from strategy state)")
	defaultsFlag := flag.Bool("defaults", false, "Ignore the saved strategy state and use default parameters and weights")
	outFlag := flag.String("out", "cmd/backtest/results", "Directory for the CSV export")
	noExportFlag := flag.Bool("no-export", false, "Skip the CSV export")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Setup(ctx, true)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	// Get ticker list
	var tickers []string
	if *tickerFlag != "" {
		tickers = []string{*tickerFlag}
	} else if universe := app.Config.Universe(); len(universe) > 0 {
		tickers = universe
	} else {
		log.Fatal("No tickers specified. Use -ticker flag or set BACKTEST_TICKERS in .env")
	}

	params := strategy.DefaultParameters()
	weights := strategy.DefaultWeights()
	if !*defaultsFlag {
		st, err := app.Store.Load(ctx)
		if err != nil {
			log.Fatalf("Failed to load strategy state: %v", err)
		}
		params, weights = st.Parameters, st.Weights
	}
	if *stopFlag > 0 {
		params.ATRStopMultiplier = *stopFlag
	}
	if *targetFlag > 0 {
		params.ATRTargetMultiplier = *targetFlag
	}
	if *scoreFlag > 0 {
		params.MinTechnicalScore = *scoreFlag
	}
	if *holdFlag > 0 {
		params.MaxHoldDays = *holdFlag
	}

	fmt.Printf("Starting backtest...\n")
	fmt.Printf("Tickers: %v\n", tickers)
	fmt.Printf("Days: %d\n", *daysFlag)
	fmt.Printf("Parameters: %s\n", params.Key())
	fmt.Println()

	res, err := app.Engine.RunBacktest(ctx, tickers, *daysFlag, params, weights)
	if err != nil {
		if errors.Is(err, strategy.ErrInvalidParameter) {
			fmt.Fprintf(os.Stderr, "Invalid parameters: %v\n", err)
			os.Exit(2)
		}
		log.Fatalf("Backtest failed: %v", err)
	}

	title := fmt.Sprintf("BACKTEST %d DAYS, %d TICKERS", res.Days, len(res.Tickers))
	backtest.PrintReport(os.Stdout, title, res.Stats, res.Skipped)

	if errors.Is(res.Check(), backtest.ErrNoTrades) {
		fmt.Println("No trades were generated; nothing to export.")
		return
	}
	if *noExportFlag {
		return
	}

	path, err := backtest.ExportCSV(res, *outFlag)
	if err != nil {
		log.Fatalf("Failed to export trades: %v", err)
	}
	fmt.Printf("Trades exported to: %s\n", path)
}
