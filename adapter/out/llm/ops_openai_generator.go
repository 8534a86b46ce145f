// Package llm adapts the OpenAI chat API to the out.TextGenerator port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"ops_server/core/port/out"
	"ops_server/pkg/httputil"
)

const DefaultModel = "gpt-4o-mini"

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("llm returned no completion")

// Config for the OpenAI generator.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for proxies and tests
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// Breaker opens after this many consecutive failures.
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

// Generator implements out.TextGenerator over the chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

var _ out.TextGenerator = (*Generator)(nil)

// NewGenerator creates a generator guarded by a circuit breaker.
func NewGenerator(cfg Config, log zerolog.Logger) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = httputil.NewClient(httputil.LLMClientConfig(cfg.Timeout))
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	log = log.With().Str("component", "llm").Logger()
	settings := gobreaker.Settings{
		Name:        "openai-chat",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		cb:          gobreaker.NewCircuitBreaker(settings),
		log:         log,
	}
}

// Generate runs one system+user chat turn.
func (g *Generator) Generate(ctx context.Context, req *out.TextRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	maxTokens := g.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	result, err := g.cb.Execute(func() (interface{}, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: g.temperature,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyCompletion
		}
		g.log.Debug().
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Dur("latency", time.Since(start)).
			Msg("completion finished")
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return strings.TrimSpace(result.(string)), nil
}

// Open reports whether the breaker is currently rejecting calls.
func (g *Generator) Open() bool {
	return g.cb.State() == gobreaker.StateOpen
}
