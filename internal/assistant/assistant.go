package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("assistant not configured: set OPENAI_API_KEY")
	ErrNoSQL         = errors.New("failed to generate SQL query, try rephrasing the question")
)

const (
	DefaultModel       = openai.GPT4oMini
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 500
)

// Config selects the chat-completions endpoint and sampling parameters. A nil
// Temperature means DefaultTemperature; zero is a valid setting.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Assistant turns questions into SQL and runs it through a Console.
type Assistant struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	console     *Console
	logger      *slog.Logger
}

// New builds an Assistant. Without an API key every call fails with
// ErrNotConfigured.
func New(cfg Config, console *Console, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assistant{
		model:       cfg.Model,
		temperature: DefaultTemperature,
		maxTokens:   cfg.MaxTokens,
		console:     console,
		logger:      logger,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if cfg.Temperature != nil {
		a.temperature = *cfg.Temperature
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}

	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		switch {
		case cfg.HTTPClient != nil:
			oc.HTTPClient = cfg.HTTPClient
		case cfg.Timeout > 0:
			oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
		a.client = openai.NewClientWithConfig(oc)
	}
	return a
}

func (a *Assistant) Configured() bool { return a.client != nil }

// Generate asks the model for a single PostgreSQL SELECT answering question.
func (a *Assistant) Generate(ctx context.Context, question string) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", &ValidationError{Reason: msgEmptyQuestion}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(question)},
		},
		Temperature: wireTemperature(a.temperature),
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoSQL
	}

	sql := StripFences(resp.Choices[0].Message.Content)
	if sql == "" {
		return "", ErrNoSQL
	}
	a.logger.Debug("generated sql", "model", a.model, "tokens", resp.Usage.TotalTokens)
	return sql, nil
}

// wireTemperature keeps a zero temperature on the wire: the request field is
// omitempty, and an omitted temperature means the API default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Answer is the outcome of Ask. SQL is set whenever generation succeeded,
// even if validation or execution then failed.
type Answer struct {
	Question string       `json:"question"`
	SQL      string       `json:"sql,omitempty"`
	Result   *QueryResult `json:"result,omitempty"`
}

// Ask generates SQL for question, validates it and runs it.
func (a *Assistant) Ask(ctx context.Context, question string) (Answer, error) {
	ans := Answer{Question: strings.TrimSpace(question)}

	sql, err := a.Generate(ctx, question)
	if err != nil {
		return ans, err
	}
	ans.SQL = sql

	if err := ValidateSelect(sql); err != nil {
		return ans, err
	}
	if a.console == nil {
		return ans, errors.New("no query console attached")
	}

	res, err := a.console.Run(ctx, sql)
	if err != nil {
		return ans, err
	}
	ans.Result = &res
	return ans, nil
}

var fence = regexp.MustCompile("```(?:sql)?\\s*")

// StripFences removes markdown code fences from a model reply.
func StripFences(s string) string {
	return strings.TrimSpace(fence.ReplaceAllString(strings.TrimSpace(s), ""))
}
