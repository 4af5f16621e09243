package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/infra/config"
)

// ErrUnavailable indicates the completion service is down or the circuit
// breaker is open.
var ErrUnavailable = errors.New("completion service unavailable")

// System prompts per conversation mode.
const (
	advisorPrompt = "You are an experienced startup advisor. Give concise, practical guidance " +
		"on fundraising, product strategy, and go-to-market questions. Ask clarifying questions " +
		"when the founder's situation is unclear."
	objectionPrompt = "You are a skeptical venture investor evaluating a startup pitch. Raise " +
		"one pointed objection at a time about the market, the team, or the business model, and " +
		"press on weak answers. Stay professional but hard to convince."
)

// Client calls an OpenAI-compatible chat completion endpoint. A circuit
// breaker trips after consecutive failures so a degraded upstream fails
// fast instead of tying up request handlers.
type Client struct {
	cfg     config.LLMSettings
	httpCli *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient constructs the completion client.
func NewClient(cfg config.LLMSettings, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		cfg:     cfg,
		httpCli: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

type chatRequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string               `json:"model"`
	Messages  []chatRequestMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation history to the completion endpoint and
// returns the assistant reply. Only the most recent HistoryWindow messages
// are forwarded.
func (c *Client) Complete(ctx context.Context, mode domain.ConversationMode, history []domain.ChatMessage) (string, error) {
	window := history
	if c.cfg.HistoryWindow > 0 && len(window) > c.cfg.HistoryWindow {
		window = window[len(window)-c.cfg.HistoryWindow:]
	}

	messages := make([]chatRequestMessage, 0, len(window)+1)
	messages = append(messages, chatRequestMessage{Role: "system", Content: systemPrompt(mode)})
	for _, msg := range window {
		messages = append(messages, chatRequestMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrUnavailable
		}
		return "", err
	}

	reply, ok := result.(string)
	if !ok || reply == "" {
		return "", ErrUnavailable
	}
	return reply, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call completion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("completion service returned error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		return nil, fmt.Errorf("completion service status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func systemPrompt(mode domain.ConversationMode) string {
	if mode == domain.ModeObjectionPractice {
		return objectionPrompt
	}
	return advisorPrompt
}

var _ port.CompletionClient = (*Client)(nil)
