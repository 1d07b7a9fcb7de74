package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/bootstrap"
	"github.com/perfect-swing-bot/pkg/optimizer"
)

func main() {
	daysFlag := flag.Int("days", 60, "Number of trading days to simulate")
	quickFlag := flag.Bool("quick", false, "Evaluate a deterministic sample of the grid")
	samplesFlag := flag.Int("samples", 60, "Candidates evaluated in quick mode")
	minTradesFlag := flag.Int("min-trades", 0, "Trade floor for a candidate to qualify (default: MIN_TRADES)")
	topFlag := flag.Int("top", 10, "Number of ranked candidates to print")
	outputFlag := flag.String("output", "", "Write the outcome as JSON to this file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Setup(ctx, true)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	tickers := app.Config.Universe()
	if len(tickers) == 0 {
		log.Fatal("No tickers configured. Set BACKTEST_TICKERS in .env")
	}

	minTrades := app.Config.MinTrades
	if *minTradesFlag > 0 {
		minTrades = *minTradesFlag
	}

	st, err := app.Store.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load strategy state: %v", err)
	}

	opts := optimizer.DefaultOptions()
	opts.Weights = st.Weights
	opts.Quick = *quickFlag
	opts.Samples = *samplesFlag
	opts.TopN = *topFlag

	space := optimizer.DefaultSpace()
	fmt.Printf("Optimizing %d tickers over %d days (grid %d, quick=%v)\n\n", len(tickers), *daysFlag, space.Size(), *quickFlag)

	out, err := app.Optimizer.Optimize(ctx, tickers, *daysFlag, space, optimizer.ProfitFactorObjective{MinTrades: minTrades}, opts)
	if err != nil {
		log.Fatalf("Optimization failed: %v", err)
	}

	printRanked(out)

	if out.Result != nil {
		backtest.PrintReport(os.Stdout, "BEST CANDIDATE", out.Result.Stats, out.Skipped)
	}

	if *outputFlag != "" {
		if err := exportJSON(out, *outputFlag); err != nil {
			log.Fatalf("Failed to export JSON: %v", err)
		}
		fmt.Printf("Outcome exported to: %s\n", *outputFlag)
	}
}

func printRanked(out *optimizer.Outcome) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("TOP %d OF %d CANDIDATES (%s)\n", len(out.Ranked), out.Evaluated, out.Objective)
	fmt.Println(strings.Repeat("=", 60))
	for i, c := range out.Ranked {
		status := " "
		if !c.Score.Qualified {
			status = "-"
		}
		pf := backtest.FormatProfitFactor(c.Score.Value)
		if c.Score.Value >= 1e6 {
			pf = "inf"
		}
		fmt.Printf("%2d.%s %s  PF=%s  WR=%.1f%%  trades=%d\n",
			i+1, status, c.Params.Key(), pf,
			c.Score.WinRate*100, c.Score.Trades)
	}
	if !out.Qualified() {
		fmt.Println("\nNo candidate met the trade floor.")
	}
	fmt.Println()
}

func exportJSON(out *optimizer.Outcome, path string) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
