// Package service answers questions over the indexed legal corpus.
package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/locale"
	"kalys/internal/logger"
)

// ErrNoDocumentsSelected is wrapped in the validation error returned when the
// caller restricts the search to an empty set of documents.
var ErrNoDocumentsSelected = errors.New("no documents selected")

// AskInput is one question. Sources nil searches every document; a non-nil
// empty slice is rejected.
type AskInput struct {
	Question     string
	Conversation *domain.Conversation
	TopK         int
	Sources      []string
	Locale       locale.Locale
}

// Answer is the reply to one question.
type Answer struct {
	Text       string                   `json:"answer"`
	Sources    []domain.RetrievedSource `json:"sources"`
	Disclaimer string                   `json:"disclaimer"`
}

// Assistant runs the full query flow: accept, retrieve, respond, record.
type Assistant struct {
	retriever     *Retriever
	orchestrator  *Orchestrator
	defaultLocale locale.Locale
	log           logger.ILogger
}

func NewAssistant(retriever *Retriever, orchestrator *Orchestrator, defaultLocale locale.Locale, log logger.ILogger) *Assistant {
	if defaultLocale == "" {
		defaultLocale = locale.English
	}
	return &Assistant{retriever: retriever, orchestrator: orchestrator, defaultLocale: defaultLocale, log: log}
}

// Ask answers in.Question. On a generation failure the returned Answer still
// carries the retrieved sources alongside the error. Every accepted question
// ends as a turn of the conversation, with the localised error message as the
// answer when it failed.
func (a *Assistant) Ask(ctx context.Context, in AskInput) (*Answer, error) {
	loc := in.Locale
	if loc == "" {
		loc = a.defaultLocale
	}
	msgs := locale.For(loc)

	ctx, span := otel.Tracer("kalys/service").Start(ctx, "assistant.ask")
	defer span.End()
	span.SetAttributes(attribute.String("locale", string(loc)), attribute.Int("top_k", in.TopK))

	if in.Sources != nil && len(in.Sources) == 0 {
		return nil, apperrors.E(apperrors.KindValidation, "service.ask", ErrNoDocumentsSelected)
	}
	if err := validateQuestion(in.Question); err != nil {
		return nil, err
	}

	conv := in.Conversation
	if conv == nil {
		conv = domain.NewConversation("")
	}
	if err := conv.Begin(in.Question); err != nil {
		return nil, apperrors.Conflict("service.ask", err)
	}

	retrieval, err := a.retriever.Retrieve(ctx, in.Question, in.TopK, in.Sources, loc)
	if err != nil {
		a.fail(span, conv, err, loc)
		return nil, err
	}
	span.SetAttributes(attribute.Int("sources", len(retrieval.Sources)))

	answer := &Answer{Sources: retrieval.Sources, Disclaimer: msgs.Disclaimer}
	text, err := a.orchestrator.Respond(ctx, in.Question, conv, retrieval.Contexts, loc)
	if err != nil {
		a.fail(span, conv, err, loc)
		return answer, err
	}
	answer.Text = text
	_ = conv.Complete(text)
	return answer, nil
}

func (a *Assistant) fail(span trace.Span, conv *domain.Conversation, err error, loc locale.Locale) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	_ = conv.Complete(UserMessage(err, loc))
	a.log.Warn("service", "question failed", map[string]interface{}{
		"kind": string(apperrors.KindOf(err)), "session": conv.ID(), "error": err.Error(),
	})
}

func validateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return apperrors.Validation("service.ask", "question is empty")
	}
	return nil
}

// UserMessage is the localised text shown to users for err.
func UserMessage(err error, loc locale.Locale) string {
	m := locale.For(loc)
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		if errors.Is(err, ErrNoDocumentsSelected) {
			return m.NoDocumentsSelected
		}
		return m.InvalidRequest
	case apperrors.KindEmbedding, apperrors.KindIndex:
		return m.RetrievalUnavailable
	case apperrors.KindGeneration:
		return m.GenerationUnavailable
	case apperrors.KindConflict:
		return m.ConversationBusy
	case apperrors.KindNotFound:
		return m.FileNotFound
	default:
		return m.InternalError
	}
}
