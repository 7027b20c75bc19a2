package tui

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kalys/internal/domain"
	"kalys/internal/locale"
	"kalys/internal/service"
)

// Asker is the TUI-facing subset of the assistant.
type Asker interface {
	Ask(ctx context.Context, in service.AskInput) (*service.Answer, error)
}

// Options configures a chat session.
type Options struct {
	Locale locale.Locale
	TopK   int
	// Sources restricts retrieval to these files; nil searches everything.
	Sources []string
	Timeout time.Duration
}

// answerMsg carries the result of an asynchronous Ask back into Update.
type answerMsg struct {
	question string
	answer   *service.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	assistant Asker
	opts      Options
	conv      *domain.Conversation
	input     textinput.Model
	viewport  viewport.Model
	sources   []domain.RetrievedSource
	status    string
	cursor    int
	thinking  bool
	ready     bool
	lastQuery string
}

// New creates a chat model with an empty conversation.
func New(assistant Asker, opts Options) Model {
	if opts.Locale == "" {
		opts.Locale = locale.English
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = locale.For(opts.Locale).Placeholder
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		assistant: assistant,
		opts:      opts,
		conv:      domain.NewConversation(""),
		input:     ti,
		viewport:  vp,
		status:    locale.For(opts.Locale).Title,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // title + disclaimer
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.thinking = false
		if msg.answer != nil {
			m.sources = msg.answer.Sources
			m.cursor = 0
		}
		if msg.err != nil {
			m.status = service.UserMessage(msg.err, m.opts.Locale)
		} else {
			m.status = ""
		}
		m.lastQuery = msg.question
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.thinking {
				return m, nil
			}
			m.input.SetValue("")
			m.thinking = true
			m.status = locale.For(m.opts.Locale).Thinking
			return m, m.ask(q)
		case "ctrl+n":
			if m.thinking {
				return m, nil
			}
			m.conv.Reset()
			m.sources = nil
			m.cursor = 0
			m.lastQuery = ""
			m.status = locale.For(m.opts.Locale).NewChat
			m.refresh()
			return m, nil
		case "ctrl+l":
			m.opts.Locale = nextLocale(m.opts.Locale)
			msgs := locale.For(m.opts.Locale)
			m.input.Placeholder = msgs.Placeholder
			m.status = msgs.Label
			m.refresh()
			return m, nil
		case "down":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "up":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	in := service.AskInput{
		Question:     question,
		Conversation: m.conv,
		TopK:         m.opts.TopK,
		Sources:      m.opts.Sources,
		Locale:       m.opts.Locale,
	}
	timeout := m.opts.Timeout
	assistant := m.assistant
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ans, err := assistant.Ask(ctx, in)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	msgs := locale.For(m.opts.Locale)
	header := lipgloss.NewStyle().Bold(true).Render(msgs.Title)
	disclaimer := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(msgs.Disclaimer)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + disclaimer + "\n" + results + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) renderTranscript() string {
	msgs := locale.For(m.opts.Locale)
	turns := m.conv.Turns()
	if len(turns) == 0 && len(m.sources) == 0 {
		return msgs.Title
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(userStyle.Render("> " + t.Question))
		b.WriteString("\n")
		b.WriteString(t.Answer)
		b.WriteString("\n\n")
	}
	if len(m.sources) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(msgs.SourcesHeader))
	b.WriteString("\n")
	for i, s := range m.sources {
		line := SourceLine(msgs, i, s)
		if i == m.cursor {
			line = selectedStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(highlightBestSentence(m.sources[m.cursor].Snippet, m.lastQuery))
	return b.String()
}

// SourceLine formats one source with its localised label.
func SourceLine(msgs locale.Messages, i int, s domain.RetrievedSource) string {
	title := s.Title
	if title == "" {
		title = s.URI
	}
	page := "?"
	if s.Page != nil {
		page = strconv.Itoa(*s.Page)
	}
	return fmt.Sprintf(msgs.SourceLabel, i+1, title, page)
}

func nextLocale(l locale.Locale) locale.Locale {
	all := locale.All()
	for i, known := range all {
		if known == l {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(trimAll(sentences), " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences = trimAll(sentences)
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
