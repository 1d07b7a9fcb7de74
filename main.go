package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/perfect-swing-bot/pkg/bootstrap"
	"github.com/perfect-swing-bot/pkg/config"
)

func main() {
	fmt.Println("Perfect Swing Bot tuner - Starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Setup(ctx, true)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	location, err := config.GetLocation()
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	daemon := NewTuningDaemon(app, location)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- daemon.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			app.Logger.Error("daemon stopped", zap.Error(err))
		}
	case sig := <-sigChan:
		app.Logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		<-done
	}

	fmt.Println("Tuner stopped.")
}

// TuningDaemon runs a tuning cycle at startup and then every interval
type TuningDaemon struct {
	app      *bootstrap.App
	interval time.Duration
	location *time.Location
}

// NewTuningDaemon creates a daemon on the app's configured interval
func NewTuningDaemon(app *bootstrap.App, location *time.Location) *TuningDaemon {
	return &TuningDaemon{
		app:      app,
		interval: app.Config.TuningInterval,
		location: location,
	}
}

// Run loops until ctx is cancelled. A failed cycle is logged and the
// schedule continues.
func (td *TuningDaemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(td.interval)
	defer ticker.Stop()

	td.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			td.runCycle(ctx)
		}
	}
}

func (td *TuningDaemon) runCycle(ctx context.Context) {
	logger := td.app.Logger
	summary, err := td.app.Controller.Run(ctx, td.app.Config.TuningDays, false)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("tuning cycle failed", zap.Error(err))
		}
		return
	}

	if err := td.app.Sink.Publish(ctx, summary); err != nil {
		logger.Warn("failed to publish summary", zap.Error(err))
	}
	logger.Info("next tuning cycle",
		zap.String("at", time.Now().Add(td.interval).In(td.location).Format("2006-01-02 15:04 MST")))
}
