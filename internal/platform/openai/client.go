// Package openai is the concrete text-generation backend client. It speaks
// the chat-completions wire format against any OpenAI-compatible endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

// Client is the generation backend consumed by the agents.
type Client interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.Str("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return &client{
		log:        log.With("component", "OpenAIClient"),
		httpClient: &http.Client{Timeout: envutil.Dur("OPENAI_HTTP_TIMEOUT", 60*time.Second)},
		baseURL:    envutil.Str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		apiKey:     apiKey,
		model:      envutil.Str("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		maxRetries: envutil.Int("OPENAI_MAX_RETRIES", 4),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *client) Generate(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: float32(envutil.Float("OPENAI_TEMPERATURE", 0.7)),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
		}

		text, retryable, err := c.once(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		c.log.Warn("chat completion retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"error", err,
		)
	}
	return "", fmt.Errorf("chat completion failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *client) once(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("HTTP %d (retry-after %s)", resp.StatusCode, retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(body))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", true, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("backend error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", true, fmt.Errorf("empty choices in response")
	}
	return out.Choices[0].Message.Content, false, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncateBody(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
