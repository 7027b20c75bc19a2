package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kalys/internal/llm"
)

// Config configures the chat-completions client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key for chat completions")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (c *Client) Name() string { return "openai:" + c.cfg.Model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat returns the first choice's content. 429 and 5xx responses are retried.
func (c *Client) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages, Temperature: c.cfg.Temperature})
	if err != nil {
		return "", err
	}
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.cfg.BackoffBase << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
		reply, retry, err := c.do(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	if resp.StatusCode >= 300 {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if len(payload) > 256 {
			payload = payload[:256]
		}
		return "", retry, fmt.Errorf("chat completion failed: %s: %s", resp.Status, payload)
	}
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", false, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.New("chat completion returned no choices")
	}
	return out.Choices[0].Message.Content, false, nil
}
