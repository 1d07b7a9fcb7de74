package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/perfect-swing-bot/pkg/strategy"
)

var csvHeader = []string{
	"Ticker",
	"EntryDate",
	"ExitDate",
	"EntryPrice",
	"ExitPrice",
	"StopPrice",
	"TargetPrice",
	"ReturnPct",
	"HoldDays",
	"Reason",
	"Score",
	"Signals",
}

// ExportCSV writes a result's trades to dir and returns the file path
func ExportCSV(res *Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %v", err)
	}

	// backtest_YYYYMMDD_HHMMSS_Nd_Npct.csv
	filename := fmt.Sprintf("backtest_%s_%dd_%.1fpct.csv",
		res.CreatedAt.Format("20060102_150405"),
		res.Days,
		res.Stats.TotalReturnPct,
	)
	path := filepath.Join(dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	if err := WriteTradesCSV(file, res.Trades); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTradesCSV writes the header and one row per trade
func WriteTradesCSV(w io.Writer, trades []strategy.ClosedTrade) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %v", err)
	}

	for _, trade := range trades {
		signals := make([]string, len(trade.SignalsAtEntry))
		for i, s := range trade.SignalsAtEntry {
			signals[i] = string(s)
		}
		record := []string{
			trade.Ticker,
			trade.EntryTime.Format(time.RFC3339),
			trade.ExitTime.Format(time.RFC3339),
			strconv.FormatFloat(trade.EntryPrice, 'f', 4, 64),
			strconv.FormatFloat(trade.ExitPrice, 'f', 4, 64),
			strconv.FormatFloat(trade.StopPrice, 'f', 4, 64),
			strconv.FormatFloat(trade.TargetPrice, 'f', 4, 64),
			strconv.FormatFloat(trade.ReturnPct, 'f', 4, 64),
			strconv.Itoa(trade.HoldDays),
			string(trade.Reason),
			strconv.FormatFloat(trade.ScoreAtEntry, 'f', 2, 64),
			strings.Join(signals, "|"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %v", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// LoadTradesCSV reads trades written by WriteTradesCSV. Malformed rows are skipped.
func LoadTradesCSV(path string) ([]strategy.ClosedTrade, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file has no data rows")
	}

	trades := make([]strategy.ClosedTrade, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < len(csvHeader) {
			continue
		}

		entryTime, err := time.Parse(time.RFC3339, record[1])
		if err != nil {
			continue
		}
		exitTime, err := time.Parse(time.RFC3339, record[2])
		if err != nil {
			continue
		}

		entryPrice, _ := strconv.ParseFloat(record[3], 64)
		exitPrice, _ := strconv.ParseFloat(record[4], 64)
		stopPrice, _ := strconv.ParseFloat(record[5], 64)
		targetPrice, _ := strconv.ParseFloat(record[6], 64)
		returnPct, _ := strconv.ParseFloat(record[7], 64)
		holdDays, _ := strconv.Atoi(record[8])
		score, _ := strconv.ParseFloat(record[10], 64)

		var signals []strategy.Signal
		for _, s := range strings.Split(record[11], "|") {
			if s != "" {
				signals = append(signals, strategy.Signal(s))
			}
		}

		trades = append(trades, strategy.ClosedTrade{
			Ticker:         record[0],
			EntryTime:      entryTime,
			ExitTime:       exitTime,
			EntryPrice:     entryPrice,
			ExitPrice:      exitPrice,
			StopPrice:      stopPrice,
			TargetPrice:    targetPrice,
			ReturnPct:      returnPct,
			HoldDays:       holdDays,
			Reason:         strategy.ExitReason(record[9]),
			ScoreAtEntry:   score,
			SignalsAtEntry: signals,
		})
	}

	return trades, nil
}
