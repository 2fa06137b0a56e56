package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/marginalia/internal/config"
	"github.com/local/marginalia/internal/logger"
	"github.com/local/marginalia/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if err := initLogging(cfg); err != nil {
				return err
			}
			defer logger.Close()

			db, err := store.Open(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}
