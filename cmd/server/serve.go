package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/Chat/internal/adapters/http"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/storage/sqlite"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()
		if _, err := store.Migrate(ctx); err != nil {
			return err
		}

		policy, err := app.PolicyByName(cfg.SlowConsumer)
		if err != nil {
			return err
		}
		o := orch.New(store, policy)
		o.DefaultAvatar = cfg.DefaultAvatar
		o.EnforceBans = cfg.EnforceBans

		r := router.SetupRouter(ctx, cfg, o)
		addr := fmt.Sprintf(":%d", cfg.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Str("module", "main").Str("addr", addr).Msg("Chat server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("module", "main").Msg("server error")
				cancel()
			}
		}()

		<-ctx.Done()
		log.Info().Str("module", "main").Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("Server forced to shutdown")
		}
		log.Info().Str("module", "main").Msg("Server exited gracefully")
		return nil
	},
}
