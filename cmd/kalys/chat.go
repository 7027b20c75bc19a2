package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"kalys/internal/locale"
	"kalys/internal/tui"
)

var (
	chatLanguage string
	chatSources  []string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal chat",
	Long: `Opens a terminal chat. Enter asks, up/down select a source,
ctrl+n starts a new chat, ctrl+l switches language, ctrl+c quits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatLanguage, "language", "l", "", "interface language: en, ru or ky")
	chatCmd.Flags().StringSliceVarP(&chatSources, "document", "d", nil, "restrict the search to these PDF file names (repeatable)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	loc, err := locale.ParseOr(chatLanguage, defaultLocale())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	c, err := buildComponents(ctx, cfg, secrets, log)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())
	if err := warmMemoryIndex(ctx, cfg, c, log); err != nil {
		return err
	}
	assistant, err := buildAssistant(cfg, secrets, c, log)
	if err != nil {
		return err
	}

	m := tui.New(assistant, tui.Options{
		Locale:  loc,
		TopK:    cfg.Retrieval.DefaultTopK,
		Sources: chatSources,
		Timeout: time.Duration(cfg.Server.QueryTimeoutSecs) * time.Second,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
