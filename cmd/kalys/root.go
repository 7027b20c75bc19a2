package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kalys/internal/config"
	"kalys/internal/locale"
	"kalys/internal/logger"
)

var (
	cfgPath string

	// set by the root PersistentPreRunE
	cfg     *config.AppConfig
	secrets config.Secrets
	log     logger.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "kalys",
	Short: "Legal assistant over the codes of the Kyrgyz Republic",
	Long: `Kalys indexes PDF legal codes into a vector store and answers questions
grounded in the retrieved passages, over HTTP, in a terminal chat or one-shot.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/kalys/config.yaml)")
}

func loadRuntime(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := locale.Validate(); err != nil {
		return fmt.Errorf("locale tables: %w", err)
	}
	secrets = cfg.ResolveSecrets(os.Getenv)
	log = logger.NewZapLogger(cfg.Log.File, cfg.Log.Production)
	return nil
}

func defaultLocale() locale.Locale {
	l, err := locale.Parse(cfg.Locale)
	if err != nil {
		return locale.English
	}
	return l
}
