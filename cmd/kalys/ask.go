package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kalys/internal/locale"
	"kalys/internal/service"
	"kalys/internal/tui"
)

var (
	askTopK     int
	askSources  []string
	askLanguage string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default retrieval.default_top_k)")
	askCmd.Flags().StringSliceVarP(&askSources, "document", "d", nil, "restrict the search to these PDF file names (repeatable)")
	askCmd.Flags().StringVarP(&askLanguage, "language", "l", "", "answer language: en, ru or ky")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	loc, err := locale.ParseOr(askLanguage, defaultLocale())
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

	in := service.AskInput{
		Question: strings.Join(args, " "),
		TopK:     askTopK,
		Locale:   loc,
	}
	if cmd.Flags().Changed("document") {
		in.Sources = askSources
		if in.Sources == nil {
			in.Sources = []string{}
		}
	}
	askCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.QueryTimeoutSecs)*time.Second)
	defer cancel()
	answer, askErr := assistant.Ask(askCtx, in)
	if askErr != nil && answer == nil {
		return fmt.Errorf("%s: %w", service.UserMessage(askErr, loc), askErr)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
	} else {
		printAnswer(cmd, answer, askErr, loc)
	}
	return askErr
}

func printAnswer(cmd *cobra.Command, a *service.Answer, askErr error, loc locale.Locale) {
	msgs := locale.For(loc)
	cmd.Println(msgs.Disclaimer)
	cmd.Println()
	if askErr != nil {
		cmd.Println(service.UserMessage(askErr, loc))
	} else {
		cmd.Println(a.Text)
	}
	if len(a.Sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(msgs.SourcesHeader)
	for i, s := range a.Sources {
		cmd.Printf("  %s\n", tui.SourceLine(msgs, i, s))
		if s.Snippet != "" {
			cmd.Printf("      %s\n", strings.Join(strings.Fields(s.Snippet), " "))
		}
	}
}
