package main

import (
	"github.com/dkeye/Chat/internal/storage/sqlite"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		applied, err := store.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Str("module", "main").Strs("applied", applied).Int("count", len(applied)).Msg("migrations done")
		return nil
	},
}
