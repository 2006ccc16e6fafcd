// Package textgen клиент OpenAI-совместимого API генерации текста.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/config"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const serviceName = "textgen"

// SystemPrompt задает роль модели.
const SystemPrompt = "You are a professional life coach and motivational speaker. " +
	"Your role is to provide personalized, inspiring, and actionable " +
	"motivational messages to help people achieve their personal development goals. " +
	"Be empathetic, encouraging, and specific in your advice."

// Result результат генерации.
type Result struct {
	Content    string
	TokensUsed int
	Elapsed    time.Duration
	Model      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Client struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	now         func() time.Time
}

// NewClient создает клиент по настройкам из конфига.
func NewClient(cfg config.AI) *Client {
	return &Client{
		apiKey:      cfg.APIKey,
		apiURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		now:         time.Now,
	}
}

// Generate отправляет промпт в модель и возвращает ответ.
func (c *Client) Generate(ctx context.Context, prompt string) (*Result, error) {
	const op = "textgen.Generate"

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	res, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &models.UpstreamError{Service: serviceName, Err: err})
	}
	res.Elapsed = c.now().Sub(start)
	if res.Model == "" {
		res.Model = c.model
	}
	return res, nil
}

func (c *Client) do(req *http.Request) (*Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("status %s: decode response: %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("status %s: %s", resp.Status, out.Error.Message)
		}
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("empty completion")
	}
	return &Result{
		Content:    content,
		TokensUsed: out.Usage.TotalTokens,
		Model:      out.Model,
	}, nil
}
