package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/llm"
	"kalys/internal/locale"
	"kalys/internal/logger"
)

// Orchestrator turns retrieved context and prior turns into a model answer.
type Orchestrator struct {
	chat llm.ChatProvider
	log  logger.ILogger
}

func NewOrchestrator(chat llm.ChatProvider, log logger.ILogger) *Orchestrator {
	return &Orchestrator{chat: chat, log: log}
}

// SystemPrompt instructs the model. fallback is the language to use when the
// question's language is unclear.
func SystemPrompt(fallback locale.Locale) string {
	var b strings.Builder
	b.WriteString("You are Kalys, a legal assistant for the laws and codes of the Kyrgyz Republic.\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Answer in the language of the question.\n")
	b.WriteString("2. Use only the supplied context. Do not rely on outside knowledge and do not invent articles or provisions.\n")
	b.WriteString("3. If the context is not sufficient, reply with exactly one of these sentences, in the language of the question, and nothing else:\n")
	for _, l := range locale.All() {
		fmt.Fprintf(&b, "   - %s: %s\n", l, locale.For(l).NotFound)
	}
	b.WriteString("4. Be concise and cite the relevant articles when the context names them.\n")
	fmt.Fprintf(&b, "If the language of the question is unclear, answer in %s.", locale.For(fallback).Label)
	return b.String()
}

// ErrEmptyReply is returned when the model answers with blank text.
var ErrEmptyReply = errors.New("language model returned an empty reply")

// BuildMessages renders system prompt, prior turns and the grounded question.
// Every turn becomes one user message followed by one assistant message.
func BuildMessages(question string, turns []domain.Turn, contexts []string, fallback locale.Locale) []llm.Message {
	msgs := make([]llm.Message, 0, 2+2*len(turns))
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(fallback)})
	for _, t := range turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n\n"), question),
	})
	return msgs
}

// Respond asks the model. Only completed turns of conv are sent.
func (o *Orchestrator) Respond(ctx context.Context, question string, conv *domain.Conversation, contexts []string, loc locale.Locale) (string, error) {
	var turns []domain.Turn
	if conv != nil {
		turns = conv.Turns()
	}
	reply, err := o.chat.Chat(ctx, BuildMessages(question, turns, contexts, loc))
	if err != nil {
		o.log.Error("service", "language model call failed", map[string]interface{}{
			"provider": o.chat.Name(), "turns": len(turns), "error": err,
		})
		return "", apperrors.Generation("service.respond", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		o.log.Error("service", "language model returned an empty reply", map[string]interface{}{
			"provider": o.chat.Name(), "turns": len(turns),
		})
		return "", apperrors.Generation("service.respond", ErrEmptyReply)
	}
	return reply, nil
}
