package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP check endpoint for external schedulers",
	Long: `Serve GET /api/v1/check for cron-style pingers, plus read-only state and
history endpoints. With --interval (or server.interval) the server also runs
checks on an in-process ticker.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Duration("interval", 0, "Run a check on this interval (0 uses config, which defaults to disabled)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval > 0 {
		cfg.Server.Interval = interval
	}

	logger := newLogger(cfg)

	eng, store, history, err := initEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	apiServer := server.NewServer(eng, store, history, logger)

	readTimeout := cfg.Server.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = server.DefaultCheckTimeout
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	// The ticker must drain before the deferred store.Close runs.
	ctx, stop := context.WithCancel(context.Background())
	tickerDone := startTicker(ctx, eng, cfg.Server.Interval, logger)
	defer func() {
		stop()
		<-tickerDone
	}()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "listen", cfg.Server.Listen, "interval", cfg.Server.Interval)
		fmt.Fprintf(os.Stderr, "LLM Quota Guardian listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// startTicker runs checks on interval in the background. The returned channel
// closes once the loop has exited and no check is in flight. A zero interval
// disables the ticker and returns a closed channel.
func startTicker(ctx context.Context, checker server.Checker, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		runTicker(ctx, checker, interval, logger)
	}()
	return done
}

// runTicker runs a check immediately and then on every tick until ctx ends.
// A tick that fires while a check is still running waits on the engine lock.
func runTicker(ctx context.Context, checker server.Checker, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), server.DefaultCheckTimeout)
		result := checker.RunCheck(checkCtx)
		cancel()
		logger.Debug("scheduled check finished", "id", result.ID, "outcome", result.Outcome)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
