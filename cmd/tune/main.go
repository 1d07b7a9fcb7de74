package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/perfect-swing-bot/pkg/bootstrap"
)

func main() {
	daysFlag := flag.Int("days", 0, "Trading days per cycle (default: TUNING_DAYS)")
	dryRunFlag := flag.Bool("dry-run", false, "Report the proposal without saving state or history")
	notifyFlag := flag.Bool("notify", false, "Publish the summary to the report webhook")
	quickFlag := flag.Bool("quick", false, "Search a deterministic sample of the neighbourhood")
	historyFlag := flag.Int("history", 0, "Print the last N tuning cycles and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Setup(ctx, *historyFlag == 0)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	if *historyFlag > 0 {
		printHistory(ctx, app, *historyFlag)
		return
	}

	days := app.Config.TuningDays
	if *daysFlag > 0 {
		days = *daysFlag
	}
	app.WithQuickTuning(*quickFlag)

	summary, err := app.Controller.Run(ctx, days, *dryRunFlag)
	if err != nil {
		log.Fatalf("Tuning failed: %v", err)
	}

	fmt.Println()
	fmt.Print(summary.Text())

	if *notifyFlag {
		if err := app.Sink.Publish(ctx, summary); err != nil {
			log.Printf("Failed to publish summary: %v", err)
		}
	}
}

func printHistory(ctx context.Context, app *bootstrap.App, n int) {
	entries, err := app.Recorder.Recent(ctx, n)
	if err != nil {
		log.Fatalf("Failed to read tuning history: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No tuning cycles recorded.")
		return
	}
	for _, e := range entries {
		verdict := "rejected"
		if e.Accepted {
			verdict = "accepted"
		}
		fmt.Printf("%s  %-8s  %-8s  %+8.1f%%  %s\n",
			e.RanAt.Format("2006-01-02 15:04"), verdict, e.Regime, e.ImprovementPct, e.Reason)
	}
}
