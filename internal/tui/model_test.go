package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/locale"
	"kalys/internal/service"
)

type fakeAsker struct {
	answer *service.Answer
	err    error
	inputs []service.AskInput
}

func (f *fakeAsker) Ask(_ context.Context, in service.AskInput) (*service.Answer, error) {
	f.inputs = append(f.inputs, in)
	_ = in.Conversation.Begin(in.Question)
	if f.err != nil {
		_ = in.Conversation.Complete(service.UserMessage(f.err, in.Locale))
	} else {
		_ = in.Conversation.Complete(f.answer.Text)
	}
	return f.answer, f.err
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

// submit types q, presses enter and feeds the async result back.
func submit(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.thinking)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func familyAnswer() *service.Answer {
	page := 12
	return &service.Answer{
		Text: "Both parents have equal rights.",
		Sources: []domain.RetrievedSource{
			{URI: "17jul2025_familycode.pdf", Page: &page, Title: "Family Code", Snippet: "Marriage is voluntary. Parents have equal rights and duties."},
			{URI: "landcode.pdf", Snippet: "Land is state property."},
		},
	}
}

func TestChatAskShowsAnswerAndSources(t *testing.T) {
	asker := &fakeAsker{answer: familyAnswer()}
	m := sized(t, New(asker, Options{TopK: 4, Sources: []string{"17jul2025_familycode.pdf"}}))

	m = submit(t, m, "What rights do parents have?")
	assert.False(t, m.thinking)
	assert.Empty(t, m.input.Value())
	require.Len(t, asker.inputs, 1)
	assert.Equal(t, 4, asker.inputs[0].TopK)
	assert.Equal(t, []string{"17jul2025_familycode.pdf"}, asker.inputs[0].Sources)
	assert.Equal(t, locale.English, asker.inputs[0].Locale)

	out := m.renderTranscript()
	assert.Contains(t, out, "Both parents have equal rights.")
	assert.Contains(t, out, "Source 1: Family Code (Page 12)")
	assert.Contains(t, out, "Source 2: landcode.pdf (Page ?)")
	assert.Contains(t, m.View(), locale.For(locale.English).Disclaimer)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, next.(Model).cursor)
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestChatKeepsConversationAcrossQuestions(t *testing.T) {
	asker := &fakeAsker{answer: familyAnswer()}
	m := sized(t, New(asker, Options{}))
	m = submit(t, m, "first")
	m = submit(t, m, "second")

	require.Len(t, asker.inputs, 2)
	assert.Same(t, asker.inputs[0].Conversation, asker.inputs[1].Conversation)
	assert.Len(t, m.conv.Turns(), 2)
}

func TestChatErrorIsLocalised(t *testing.T) {
	asker := &fakeAsker{err: apperrors.Generation("q", errors.New("down"))}
	m := sized(t, New(asker, Options{Locale: locale.Russian}))
	m = submit(t, m, "вопрос")

	msgs := locale.For(locale.Russian)
	assert.Equal(t, msgs.GenerationUnavailable, m.status)
	assert.Contains(t, m.renderTranscript(), msgs.GenerationUnavailable)
}

func TestChatIgnoresInputWhileThinking(t *testing.T) {
	asker := &fakeAsker{answer: familyAnswer()}
	m := sized(t, New(asker, Options{}))
	m.input.SetValue("q")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	m.input.SetValue("again")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Nil(t, cmd)
}

func TestChatNewChatAndLocaleCycle(t *testing.T) {
	asker := &fakeAsker{answer: familyAnswer()}
	m := sized(t, New(asker, Options{}))
	m = submit(t, m, "q")
	require.Len(t, m.conv.Turns(), 1)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m = next.(Model)
	assert.Empty(t, m.conv.Turns())
	assert.Nil(t, m.sources)

	var seen []locale.Locale
	for range locale.All() {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
		m = next.(Model)
		seen = append(seen, m.opts.Locale)
	}
	assert.Equal(t, []locale.Locale{locale.Russian, locale.Kyrgyz, locale.English}, seen)
	assert.Equal(t, locale.For(locale.English).Placeholder, m.input.Placeholder)
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Marriage is voluntary. Parents have equal rights and duties. Land is property."
	out := highlightBestSentence(text, "parents rights")
	assert.Contains(t, out, "Marriage is voluntary.")
	assert.Contains(t, out, "Parents have equal rights and duties.")
	assert.Equal(t, "", highlightBestSentence("", "q"))
	assert.Equal(t, "One. Two.", highlightBestSentence(" One.  Two.", ""))
}
