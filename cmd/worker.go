package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Background maintenance jobs",
	Long:  `Run maintenance jobs: expire overdue PIX charges and remove expired saved cards.`,
}

var sweepOnceCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance sweep and exit",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initializeDependencies(mustLoadConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
			os.Exit(1)
		}
		defer deps.Close()

		if err := sweep(context.Background(), deps); err != nil {
			deps.Logger.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		deps.EventBus.Wait()
	},
}

var sweepLoopCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the maintenance sweep on an interval until stopped",
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var (
	sweepInterval  time.Duration
	sweepBatchSize int
)

func sweep(ctx context.Context, deps *Dependencies) error {
	expired, err := deps.Transactions.ExpirePix(ctx, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("expire pix: %w", err)
	}

	removed, err := deps.Cards.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup expired cards: %w", err)
	}

	deps.Logger.Info("sweep complete", "pix_expired", expired, "cards_removed", removed)
	return nil
}

func startSweepWorker() {
	deps, err := initializeDependencies(mustLoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	deps.Logger.Info("sweep worker is running. Press Ctrl+C to stop.", "interval", sweepInterval, "batch_size", sweepBatchSize)

	for {
		if err := sweep(ctx, deps); err != nil {
			deps.Logger.Error("sweep failed", "error", err)
		}

		select {
		case sig := <-sigChan:
			deps.Logger.Info("received signal, shutting down sweep worker", "signal", sig)
			cancel()
			deps.EventBus.Wait()
			return
		case <-ticker.C:
		}
	}
}

func init() {
	workerCmd.PersistentFlags().IntVar(&sweepBatchSize, "batch-size", 100, "maximum PIX charges expired per sweep")
	sweepLoopCmd.Flags().DurationVar(&sweepInterval, "interval", time.Minute, "time between sweeps")

	workerCmd.AddCommand(sweepOnceCmd)
	workerCmd.AddCommand(sweepLoopCmd)

	rootCmd.AddCommand(workerCmd)
}
