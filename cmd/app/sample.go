package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/local/marginalia/internal/samplepdf"
)

func newSamplePDFCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sample-pdf",
		Short: "Write a two-chapter fantasy story PDF for trying the reader",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := samplepdf.Fantasy().WriteFile(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample PDF created: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "uploads/sample_fantasy_story.pdf", "Output path")
	return cmd
}
