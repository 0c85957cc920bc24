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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lazypower/affect/internal/boundary"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/inference"
	"github.com/lazypower/affect/internal/logging"
	"github.com/lazypower/affect/internal/server"
	"github.com/lazypower/affect/internal/store"
)

var (
	serveBind string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "Override server.bind")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override server.port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveBind != "" {
		cfg.Server.Bind = serveBind
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	log := logging.New(cfg.Logging)

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	inf := cfg.Inference
	eng := engine.New(func(ctx context.Context) (inference.Predictor, error) {
		return inference.NewPredictor(inf)
	}, engine.Options{BlendRatio: cfg.Engine.BlendRatio, Logger: log})
	eng.SetPersister(db)

	if err := eng.Initialize(cmd.Context()); err != nil {
		// The server still comes up; POST /api/initialize retries.
		log.Warn().Err(err).Str("provider", inf.Provider).Msg("inference not initialized")
	}

	snaps, err := db.LoadSnapshots()
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	restored := eng.Restore(snaps)
	eng.StartCheckpointTimer(cfg.Database.CheckpointInterval)

	srv := server.New(boundary.New(eng, log), server.Options{
		DB:               db,
		Version:          VersionString(),
		InferenceTimeout: inf.Timeout,
		Logger:           log,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("db", dbPath).
			Str("provider", inf.Provider).
			Int("sessions", restored).
			Msg("affect serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		stopEngine(eng, log)
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := httpServer.Shutdown(ctx)
	stopEngine(eng, log)
	return shutdownErr
}

// stopEngine writes a final checkpoint and closes eng.
func stopEngine(eng *engine.Engine, log zerolog.Logger) {
	if n, err := eng.Checkpoint(); err != nil {
		log.Error().Err(err).Msg("final checkpoint")
	} else {
		log.Info().Int("sessions", n).Msg("final checkpoint")
	}
	if err := eng.Close(); err != nil {
		log.Warn().Err(err).Msg("close engine")
	}
}
