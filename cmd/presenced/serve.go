package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridianchat/presenced/cmd/presenced/handlers"
	"github.com/meridianchat/presenced/internal/db"
	"github.com/meridianchat/presenced/internal/logging"
	"github.com/meridianchat/presenced/internal/presence"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the presence HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	migrator, err := db.NewMigrator(database.DB)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	hub := NewWSHub()
	engine := presence.NewEngine(repo, cfg, presence.WithNotifier(hub))
	auth := handlers.NewTokenAuth(repo)

	mux := http.NewServeMux()
	handlers.NewPresenceHandler(engine, auth).Register(mux)
	mux.HandleFunc("GET /presence/stream", HandleStream(hub, auth))
	mux.HandleFunc("GET /health", handlers.Health)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("presenced listening", map[string]interface{}{
			"addr":   cfg.ListenAddr,
			"domain": cfg.Domain,
		})
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		logging.Info("shutting down", map[string]interface{}{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
