package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/strategy"
)

func main() {
	// Parse command-line flags
	csvDirFlag := flag.String("csv-dir", "cmd/backtest/results", "Directory containing CSV backtest results")
	outputFlag := flag.String("output", "", "Output file path (JSON or HTML, default: stdout)")
	formatFlag := flag.String("format", "json", "Output format: json or html")
	flag.Parse()

	fmt.Println("Analyzing backtest results...")
	fmt.Printf("CSV Directory: %s\n", *csvDirFlag)

	// Load all CSV files
	files, err := filepath.Glob(filepath.Join(*csvDirFlag, "*.csv"))
	if err != nil {
		log.Fatalf("Failed to list CSV files: %v", err)
	}

	if len(files) == 0 {
		log.Fatalf("No CSV files found in %s", *csvDirFlag)
	}

	var trades []strategy.ClosedTrade
	loaded := 0
	for _, file := range files {
		fileTrades, err := backtest.LoadTradesCSV(file)
		if err != nil {
			fmt.Printf("Warning: Failed to load %s: %v\n", file, err)
			continue
		}
		trades = append(trades, fileTrades...)
		loaded++
	}

	report := buildReport(trades, loaded)

	// Output report
	if *outputFlag != "" {
		if *formatFlag == "html" {
			if err := exportHTML(report, *outputFlag); err != nil {
				log.Fatalf("Failed to export HTML: %v", err)
			}
		} else {
			if err := exportJSON(report, *outputFlag); err != nil {
				log.Fatalf("Failed to export JSON: %v", err)
			}
		}
		fmt.Printf("Report exported to: %s\n", *outputFlag)
	} else {
		printReport(report)
	}
}

// Report is the analysis over every exported run
type Report struct {
	Files      int                   `json:"files"`
	Stats      backtest.Stats        `json:"stats"`
	BestTrade  *strategy.ClosedTrade `json:"best_trade,omitempty"`
	WorstTrade *strategy.ClosedTrade `json:"worst_trade,omitempty"`
}

func buildReport(trades []strategy.ClosedTrade, files int) *Report {
	report := &Report{
		Files: files,
		Stats: backtest.Aggregate(trades),
	}
	for i := range trades {
		t := &trades[i]
		if report.BestTrade == nil || t.ReturnPct > report.BestTrade.ReturnPct {
			report.BestTrade = t
		}
		if report.WorstTrade == nil || t.ReturnPct < report.WorstTrade.ReturnPct {
			report.WorstTrade = t
		}
	}
	return report
}

// printReport prints the report to stdout
func printReport(report *Report) {
	title := fmt.Sprintf("BACKTEST ANALYSIS REPORT (%d files)", report.Files)
	backtest.PrintReport(os.Stdout, title, report.Stats, nil)

	if report.BestTrade != nil {
		fmt.Printf("\nBest Trade: %s %s @ $%.2f, %+.2f%%\n",
			report.BestTrade.Ticker, report.BestTrade.EntryTime.Format("2006-01-02"), report.BestTrade.EntryPrice, report.BestTrade.ReturnPct)
	}
	if report.WorstTrade != nil {
		fmt.Printf("Worst Trade: %s %s @ $%.2f, %+.2f%%\n",
			report.WorstTrade.Ticker, report.WorstTrade.EntryTime.Format("2006-01-02"), report.WorstTrade.EntryPrice, report.WorstTrade.ReturnPct)
	}
}

// exportJSON exports the report as JSON
func exportJSON(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// exportHTML exports the report as HTML
func exportHTML(report *Report, path string) error {
	s := report.Stats
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>Backtest Analysis</title></head><body>\n")
	b.WriteString("<h1>Backtest Analysis Report</h1>\n")
	b.WriteString(fmt.Sprintf("<p>Files: %d</p>\n", report.Files))
	b.WriteString(fmt.Sprintf("<p>Total Trades: %d</p>\n", s.TotalTrades))
	b.WriteString(fmt.Sprintf("<p>Win Rate: %.2f%%</p>\n", s.WinRate*100))
	b.WriteString(fmt.Sprintf("<p>Profit Factor: %s</p>\n", backtest.FormatProfitFactor(s.ProfitFactor)))
	b.WriteString(fmt.Sprintf("<p>Total Return: %.2f%%</p>\n", s.TotalReturnPct))
	b.WriteString(fmt.Sprintf("<p>Max Drawdown: %.2f%%</p>\n", s.MaxDrawdownPct))

	b.WriteString("<h2>Signals</h2>\n<table><tr><th>Signal</th><th>Trades</th><th>Win Rate</th><th>Avg Return</th></tr>\n")
	for _, sig := range strategy.AllSignals() {
		g, ok := s.SignalStats[sig]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%d</td><td>%.1f%%</td><td>%+.2f%%</td></tr>\n",
			html.EscapeString(string(sig)), g.Count, g.WinRate*100, g.AvgReturnPct))
	}
	b.WriteString("</table>\n</body></html>\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}
