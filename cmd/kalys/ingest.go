package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kalys/internal/ingest"
)

var (
	ingestDir     string
	ingestNoReset bool
	ingestJSON    bool
	ingestNoBar   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the PDF corpus",
	Long: `Extracts every PDF in the corpus directory, splits pages into chunks,
embeds them and writes them to the vector store. By default the index is
dropped and recreated first; --no-reset only adds or replaces records.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "PDF directory (overrides ingest.pdf_dir)")
	ingestCmd.Flags().BoolVar(&ingestNoReset, "no-reset", false, "upsert into the existing index instead of recreating it")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the run report as JSON")
	ingestCmd.Flags().BoolVar(&ingestNoBar, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg, secrets, log)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	p, err := buildPipeline(cfg, c, log)
	if err != nil {
		return err
	}
	p.WithProgress(ingest.NewProgress(!ingestNoBar && !ingestJSON && ingest.DefaultProgressEnabled()))

	dir := cfg.Ingest.PDFDir
	if ingestDir != "" {
		dir = ingestDir
	}
	report, runErr := p.Run(ctx, ingest.Options{
		Dir:     dir,
		Pattern: cfg.Ingest.Pattern,
		Reset:   cfg.Ingest.Reset && !ingestNoReset,
	})
	if report != nil {
		if ingestJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal report: %w", err)
			}
			cmd.Println(string(data))
		} else {
			printReport(cmd, report)
		}
	}
	if runErr != nil {
		return fmt.Errorf("ingest failed: %w", runErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, len(report.Documents))
	}
	return nil
}

func printReport(cmd *cobra.Command, r *ingest.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tSTATUS\tCHUNKS\tUPSERTED\tERROR")
	for _, d := range r.Documents {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", d.Source, d.Status, d.Chunks, d.Upserted, d.Error)
	}
	_ = w.Flush()
	cmd.Printf("\n%d succeeded, %d skipped, %d failed; %d records upserted in %s\n",
		r.Succeeded, r.Skipped, r.Failed, r.Upserted, r.Duration.Round(1e6))
}
