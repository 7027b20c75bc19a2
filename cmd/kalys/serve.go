package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kalys/internal/server"
	"kalys/internal/session"
	"kalys/internal/tracer"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := tracer.Init(ctx, cfg.Tracing, log)
	defer func() { _ = shutdown(cmd.Context()) }()

	c, err := buildComponents(ctx, cfg, secrets, log)
	if err != nil {
		return err
	}
	defer c.Close(cmd.Context())

	if err := warmMemoryIndex(ctx, cfg, c, log); err != nil {
		return err
	}
	assistant, err := buildAssistant(cfg, secrets, c, log)
	if err != nil {
		return err
	}

	srvCfg := cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}
	srv := server.New(srvCfg, server.Deps{
		Assistant:     assistant,
		Sessions:      session.NewStore(time.Duration(srvCfg.SessionTTLMins) * time.Minute),
		Index:         c.index,
		PDFDir:        cfg.Ingest.PDFDir,
		Pattern:       cfg.Ingest.Pattern,
		DefaultLocale: defaultLocale(),
		Log:           log,
	})
	return srv.Run(ctx)
}
