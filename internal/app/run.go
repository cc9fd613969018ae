package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"message-router/internal/common/logging"
	"message-router/internal/config"
	"message-router/internal/server"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	closer, err := logging.InitGlobalLogger()
	if err != nil {
		return err
	}
	defer closer.Close()
	defer logging.MustSync()

	logging.Info("Starting message router", logging.Int("cpus", runtime.NumCPU()))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, NewBrokerRegistry())
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer func() {
		if err := app.Cleanup(); err != nil {
			logging.Warn("Error during app shutdown", logging.Err(err))
		}
	}()

	return app.Serve(ctx)
}

// Serve starts the input and, when a port is configured, the HTTP server.
// It returns once ctx is cancelled or either of them fails.
func (app *App) Serve(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := app.Start(ctx); err != nil {
			logging.Error("Input failed to start", err)
			return err
		}
		<-ctx.Done()
		return nil
	})

	if app.Config.HTTPPort != "" {
		srv := server.New(app.HTTPHandler(), app.Config.HTTPPort, logging.GetGlobalLogger())
		group.Go(func() error {
			if err := srv.ListenAndRun(ctx); err != nil {
				logging.Error("HTTP server failed", err)
				return err
			}
			return nil
		})
	}

	err := group.Wait()
	logging.Info("Message router stopped")
	return err
}
