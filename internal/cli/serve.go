package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/config"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/events"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/ledger"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/logging"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/server"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/transfer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	backend, err := storage.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	var (
		publisher  interfaces.EventPublisher
		transferer interfaces.AssetTransferer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer pub.Close()
		kt := transfer.NewKafkaTransferer(cfg.Kafka.Brokers, cfg.Kafka.TransfersTopic)
		defer kt.Close()
		publisher, transferer = pub, kt
	} else {
		logger.Warn("no kafka brokers configured, payouts settle in memory and events go to the log")
		publisher = events.NewLogPublisher(logger)
		transferer = transfer.NewVault()
	}

	l := ledger.NewLedger(backend, transferer, cfg.Ledger.Operator,
		ledger.WithPolicy(cfg.Ledger.Decay),
		ledger.WithPublisher(publisher),
		ledger.WithLogger(logger),
	)

	srv := server.New(l, backend, VersionString(), logger)
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("savings ledger serving",
			zap.String("addr", addr),
			zap.String("storage", backend.Driver),
			zap.String("operator", cfg.Ledger.Operator),
			zap.Duration("decay_period", cfg.Ledger.Decay.Period),
			zap.Stringer("decay_rate", cfg.Ledger.Decay.Rate),
			zap.String("decay_boundary", string(cfg.Ledger.Decay.Boundary)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
		logger.Info("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
