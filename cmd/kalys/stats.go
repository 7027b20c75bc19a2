package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kalys/internal/ingest"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and corpus statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := buildComponents(ctx, cfg, secrets, log)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	cmd.Printf("Vector store:  %s (%s)\n", cfg.VectorStore.Type, cfg.VectorStore.IndexName)
	cmd.Printf("Embedder:      %s, dimension %d\n", c.embedder.Name(), c.embedder.Dimension())
	n, err := c.index.Count(ctx)
	if err != nil {
		cmd.Printf("Records:       unavailable (%v)\n", err)
	} else {
		cmd.Printf("Records:       %d\n", n)
	}

	files, err := ingest.Discover(cfg.Ingest.PDFDir, cfg.Ingest.Pattern)
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	cmd.Printf("Corpus:        %d PDF files in %s\n", len(files), cfg.Ingest.PDFDir)
	return nil
}
