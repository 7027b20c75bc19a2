package domain

import (
	"errors"
	"sync"
)

// ConversationState is the lifecycle state of a Conversation.
type ConversationState string

const (
	StateEmpty          ConversationState = "EMPTY"
	StateAwaitingAnswer ConversationState = "AWAITING_ANSWER"
	StateIdle           ConversationState = "IDLE"
)

// ErrConversationBusy is returned when a question is submitted while another one is pending.
var ErrConversationBusy = errors.New("conversation is awaiting an answer")

// ErrNoPendingQuestion is returned when an answer is recorded without a pending question.
var ErrNoPendingQuestion = errors.New("conversation has no pending question")

// Turn is one question/answer exchange.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Conversation is an append-only list of turns owned by a single session.
type Conversation struct {
	mu       sync.Mutex
	id       string
	turns    []Turn
	pending  string
	awaiting bool
}

// NewConversation creates an empty conversation.
func NewConversation(id string, turns ...Turn) *Conversation {
	c := &Conversation{id: id}
	c.turns = append(c.turns, turns...)
	return c
}

// ID returns the session identifier the conversation belongs to.
func (c *Conversation) ID() string { return c.id }

// State reports where the conversation is in its lifecycle.
func (c *Conversation) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Conversation) stateLocked() ConversationState {
	switch {
	case c.awaiting:
		return StateAwaitingAnswer
	case len(c.turns) == 0:
		return StateEmpty
	default:
		return StateIdle
	}
}

// Turns returns a copy of the completed turns in chronological order.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Begin accepts a new question.
func (c *Conversation) Begin(question string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.awaiting {
		return ErrConversationBusy
	}
	c.pending = question
	c.awaiting = true
	return nil
}

// Complete appends the pending question with its answer. An error message counts as an answer.
func (c *Conversation) Complete(answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.awaiting {
		return ErrNoPendingQuestion
	}
	c.turns = append(c.turns, Turn{Question: c.pending, Answer: answer})
	c.pending = ""
	c.awaiting = false
	return nil
}

// Reset discards every turn, including a pending question.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.pending = ""
	c.awaiting = false
}
