package server

import (
	"strings"

	"kalys/internal/domain"
	"kalys/internal/service"
)

// HistoryMessage is one prior chat message sent by the client.
type HistoryMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// RagRequest is the body of POST /rag. Filters absent searches every
// document; an empty list is rejected.
type RagRequest struct {
	Question  string           `json:"question" validate:"required,max=4000"`
	History   []HistoryMessage `json:"history" validate:"omitempty,max=100,dive"`
	TopK      int              `json:"top_k" validate:"gte=0"`
	Filters   []string         `json:"filters" validate:"omitempty,dive,required"`
	Language  string           `json:"language" validate:"omitempty,max=8"`
	SessionID string           `json:"session_id" validate:"omitempty,max=128"`
}

// RagResponse is the reply of POST /rag.
type RagResponse struct {
	service.Answer
	SessionID string `json:"session_id,omitempty"`
}

// DocumentResponse describes one downloadable corpus file.
type DocumentResponse struct {
	File  string `json:"file"`
	Title string `json:"title"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// historyTurns folds the client's message list into question/answer turns.
// A user message opens a turn and the next assistant message closes it.
// System and empty messages are dropped, as are assistant messages with no
// open question and a trailing question without an answer.
func historyTurns(history []HistoryMessage) []domain.Turn {
	var turns []domain.Turn
	var pending *string
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case "user":
			q := content
			pending = &q
		case "assistant":
			if pending == nil {
				continue
			}
			turns = append(turns, domain.Turn{Question: *pending, Answer: content})
			pending = nil
		}
	}
	return turns
}
