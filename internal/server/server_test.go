package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalys/internal/apperrors"
	"kalys/internal/config"
	"kalys/internal/domain"
	"kalys/internal/locale"
	"kalys/internal/logger"
	"kalys/internal/service"
	"kalys/internal/session"
	"kalys/internal/vectorstore"
	"kalys/internal/vectorstore/memory"
)

type fakeAsker struct {
	mu     sync.Mutex
	answer *service.Answer
	err    error
	inputs []service.AskInput
	turns  [][]domain.Turn
}

func (f *fakeAsker) Ask(_ context.Context, in service.AskInput) (*service.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if in.Conversation != nil {
		f.turns = append(f.turns, in.Conversation.Turns())
		_ = in.Conversation.Begin(in.Question)
		_ = in.Conversation.Complete("done")
	}
	return f.answer, f.err
}

func newTestServer(t *testing.T, asker Asker) (*Server, *session.Store, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "landcode.pdf"), []byte("%PDF-1.4 land"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "17jul2025_familycode.pdf"), []byte("%PDF-1.4 family"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644))

	idx := memory.NewStorage()
	require.NoError(t, idx.Reset(context.Background(), vectorstore.Spec{Name: "kalysbot", Dimension: 2, Metric: "cosine"}))

	store := session.NewStore(time.Hour)
	s := New(config.Default().Server, Deps{
		Assistant:     asker,
		Sessions:      store,
		Index:         idx,
		PDFDir:        dir,
		Pattern:       "*.[pP][dD][fF]",
		DefaultLocale: locale.English,
		Log:           logger.NewNop(),
	})
	return s, store, dir
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func okAnswer() *service.Answer {
	page := 3
	return &service.Answer{
		Text: "Parents have equal rights.",
		Sources: []domain.RetrievedSource{
			{URI: "17jul2025_familycode.pdf", Page: &page, Snippet: "Article 61", Title: "Family Code"},
		},
		Disclaimer: locale.For(locale.English).Disclaimer,
	}
}

func TestAskReturnsAnswerAndSources(t *testing.T) {
	asker := &fakeAsker{answer: okAnswer()}
	s, _, _ := newTestServer(t, asker)

	resp := postJSON(t, s, "/rag", map[string]interface{}{
		"question": "What are parental rights?",
		"top_k":    2,
		"filters":  []string{"17jul2025_familycode.pdf"},
		"language": "RU",
		"history": []map[string]string{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
			{"role": "user", "content": ""},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "Parents have equal rights.", body["answer"])
	sources := body["sources"].([]interface{})
	require.Len(t, sources, 1)
	first := sources[0].(map[string]interface{})
	assert.Equal(t, "17jul2025_familycode.pdf", first["uri"])
	assert.EqualValues(t, 3, first["page"])
	assert.NotContains(t, body, "session_id")

	require.Len(t, asker.inputs, 1)
	in := asker.inputs[0]
	assert.Equal(t, locale.Russian, in.Locale)
	assert.Equal(t, 2, in.TopK)
	assert.Equal(t, []string{"17jul2025_familycode.pdf"}, in.Sources)
	assert.Equal(t, []domain.Turn{{Question: "hi", Answer: "hello"}}, asker.turns[0])
}

func TestAskFiltersAbsentVersusEmpty(t *testing.T) {
	asker := &fakeAsker{answer: okAnswer()}
	s, _, _ := newTestServer(t, asker)

	resp := postJSON(t, s, "/rag", map[string]interface{}{"question": "q"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, asker.inputs[0].Sources)

	postJSON(t, s, "/rag", map[string]interface{}{"question": "q", "filters": []string{}})
	require.Len(t, asker.inputs, 2)
	assert.NotNil(t, asker.inputs[1].Sources)
	assert.Empty(t, asker.inputs[1].Sources)
}

func TestAskValidation(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing question", map[string]interface{}{"top_k": 3}},
		{"negative top_k", map[string]interface{}{"question": "q", "top_k": -1}},
		{"unknown role", map[string]interface{}{"question": "q", "history": []map[string]string{{"role": "robot", "content": "x"}}}},
		{"unsupported language", map[string]interface{}{"question": "q", "language": "de"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &fakeAsker{answer: okAnswer()}
			s, _, _ := newTestServer(t, asker)
			resp := postJSON(t, s, "/rag", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body ErrorResponse
			decode(t, resp, &body)
			assert.NotEmpty(t, body.Detail)
			assert.Empty(t, asker.inputs)
		})
	}
}

func TestAskMalformedBody(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAsker{answer: okAnswer()})
	req := httptest.NewRequest(http.MethodPost, "/rag", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAskErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		lang   string
		status int
		detail string
	}{
		{"index", apperrors.Index("q", errors.New("down")), "", http.StatusServiceUnavailable, "Error communicating with the document database."},
		{"embedding", apperrors.Embedding("q", errors.New("down")), "", http.StatusServiceUnavailable, "Error communicating with the document database."},
		{"generation", apperrors.Generation("q", errors.New("down")), "", http.StatusServiceUnavailable, "Error communicating with the language model."},
		{"unexpected", errors.New("boom"), "", http.StatusInternalServerError, "An internal server error occurred."},
		{"conflict", apperrors.Conflict("q", domain.ErrConversationBusy), "", http.StatusConflict, locale.For(locale.English).ConversationBusy},
		{"no documents", apperrors.E(apperrors.KindValidation, "q", service.ErrNoDocumentsSelected), "ky", http.StatusBadRequest, locale.For(locale.Kyrgyz).NoDocumentsSelected},
		{"localised generation", apperrors.Generation("q", errors.New("down")), "ru", http.StatusServiceUnavailable, locale.For(locale.Russian).GenerationUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, &fakeAsker{err: tt.err})
			resp := postJSON(t, s, "/rag", map[string]interface{}{"question": "q", "language": tt.lang})
			assert.Equal(t, tt.status, resp.StatusCode)
			var body ErrorResponse
			decode(t, resp, &body)
			assert.Equal(t, tt.detail, body.Detail)
		})
	}
}

func TestAskSessionKeepsConversation(t *testing.T) {
	asker := &fakeAsker{answer: okAnswer()}
	s, store, _ := newTestServer(t, asker)

	resp := postJSON(t, s, "/rag", map[string]interface{}{
		"question":   "first",
		"session_id": "abc",
		"history":    []map[string]string{{"role": "user", "content": "seed q"}, {"role": "assistant", "content": "seed a"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body RagResponse
	decode(t, resp, &body)
	assert.Equal(t, "abc", body.SessionID)

	// history is ignored once the session exists
	resp = postJSON(t, s, "/rag", map[string]interface{}{
		"question":   "second",
		"session_id": "abc",
		"history":    []map[string]string{{"role": "user", "content": "other"}, {"role": "assistant", "content": "other"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, asker.turns, 2)
	assert.Equal(t, []domain.Turn{{Question: "seed q", Answer: "seed a"}}, asker.turns[0])
	assert.Equal(t, []domain.Turn{{Question: "seed q", Answer: "seed a"}, {Question: "first", Answer: "done"}}, asker.turns[1])

	conv, ok := store.Get("abc")
	require.True(t, ok)
	assert.Len(t, conv.Turns(), 3)

	req := httptest.NewRequest(http.MethodDelete, "/rag/sessions/abc", nil)
	res, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = s.GetApp().Test(httptest.NewRequest(http.MethodDelete, "/rag/sessions/abc", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDownload(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAsker{})

	resp, err := s.GetApp().Test(httptest.NewRequest(http.MethodGet, "/download/landcode.pdf", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "landcode.pdf")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 land", string(data))

	for _, path := range []string{"/download/missing.pdf", "/download/notes.txt", "/download/..%2Fsecret.pdf", "/download/.hidden.pdf"} {
		resp, err := s.GetApp().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		var body ErrorResponse
		decode(t, resp, &body)
		assert.Equal(t, "File not found.", body.Detail, path)
	}
}

func TestDocumentsLocalisedTitles(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAsker{})

	resp, err := s.GetApp().Test(httptest.NewRequest(http.MethodGet, "/documents?language=ky", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var docs []DocumentResponse
	decode(t, resp, &docs)
	assert.Equal(t, []DocumentResponse{
		{File: "17jul2025_familycode.pdf", Title: "Үй-бүлө кодекси"},
		{File: "landcode.pdf", Title: "Жер кодекси"},
	}, docs)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAsker{})
	resp, err := s.GetApp().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["records"])
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAsker{})
	req := httptest.NewRequest(http.MethodOptions, "/rag", nil)
	req.Header.Set("Origin", "https://www.kalysbot.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "https://www.kalysbot.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHistoryTurns(t *testing.T) {
	got := historyTurns([]HistoryMessage{
		{Role: "system", Content: "ignored"},
		{Role: "assistant", Content: "Welcome"},
		{Role: "user", Content: " q1 "},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "user", Content: "q3"},
		{Role: "assistant", Content: "a3"},
		{Role: "user", Content: "dangling"},
	})
	assert.Equal(t, []domain.Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q3", Answer: "a3"},
	}, got)
}

func TestSafePDFName(t *testing.T) {
	assert.True(t, safePDFName("landcode.pdf"))
	assert.True(t, safePDFName("CODE.PDF"))
	assert.False(t, safePDFName("../landcode.pdf"))
	assert.False(t, safePDFName("a/b.pdf"))
	assert.False(t, safePDFName(`a\b.pdf`))
	assert.False(t, safePDFName(".pdf"))
	assert.False(t, safePDFName("x.txt"))
	assert.False(t, safePDFName(""))
}
