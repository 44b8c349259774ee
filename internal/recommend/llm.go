package recommend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

type failureClass int

const (
	failureNone failureClass = iota
	failureEmpty
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (c failureClass) String() string {
	switch c {
	case failureNone:
		return "none"
	case failureEmpty:
		return "empty"
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	default:
		return "unknown"
	}
}

// Generator produces talking points for one provider.
type Generator interface {
	Generate(ctx context.Context, s insights.ProviderSummary, company, product string) ([]string, error)
}

// AnthropicMessager is the subset of the Anthropic client used here.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

// newAnthropicClient is overridable in tests.
var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

var errEmptyResponse = errors.New("empty generator response")

// AnthropicGenerator asks Claude for talking points.
type AnthropicGenerator struct {
	messages  AnthropicMessager
	model     anthropic.Model
	maxTokens int64
}

type GeneratorOption func(*AnthropicGenerator)

func WithModel(model string) GeneratorOption {
	return func(g *AnthropicGenerator) {
		if strings.TrimSpace(model) != "" {
			g.model = anthropic.Model(model)
		}
	}
}

func WithMaxTokens(n int64) GeneratorOption {
	return func(g *AnthropicGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// NewAnthropicGenerator builds a generator for apiKey.
func NewAnthropicGenerator(apiKey string, opts ...GeneratorOption) (*AnthropicGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	g := &AnthropicGenerator{
		messages:  newAnthropicClient(apiKey),
		model:     anthropic.ModelClaudeSonnet4_20250514,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewAnthropicGeneratorFromEnv reads ANTHROPIC_API_KEY. Setting
// HCP_INSIGHTS_NO_LLM disables the generator entirely.
func NewAnthropicGeneratorFromEnv(opts ...GeneratorOption) (*AnthropicGenerator, error) {
	if envEnabled("HCP_INSIGHTS_NO_LLM") {
		return nil, errors.New("text generation disabled by HCP_INSIGHTS_NO_LLM")
	}
	return NewAnthropicGenerator(os.Getenv("ANTHROPIC_API_KEY"), opts...)
}

func (g *AnthropicGenerator) Generate(ctx context.Context, s insights.ProviderSummary, company, product string) ([]string, error) {
	resp, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: talkingPointsSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildTalkingPointsPrompt(s, company, product)))},
		Temperature: anthropic.Float(0.4),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages (%s): %w", classifyTransportError(err), err)
	}
	text := strings.TrimSpace(messageText(resp))
	if text == "" {
		return nil, errEmptyResponse
	}
	return SplitTalkingPoints(text), nil
}

func messageText(resp *anthropic.Message) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

func classifyTransportError(err error) failureClass {
	if err == nil {
		return failureNone
	}
	if errors.Is(err, errEmptyResponse) {
		return failureEmpty
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func envEnabled(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
