package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/local/marginalia/internal/config"
	"github.com/local/marginalia/internal/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marginalia",
		Short: "Turn PDFs into an illustrated two-page book reader",
		Long: `Marginalia extracts the text and layout of uploaded PDFs, labels genre,
themes and mood with an AI provider (or an offline mock), draws small
illustrations for the margins and serves the result as a book reader.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional
			_ = godotenv.Load()
		},
		// serve is the default
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveFlags{staleAfter: defaultStaleAfter})
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newSamplePDFCmd())
	return cmd
}

func initLogging(cfg config.Config) error {
	return logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
}
