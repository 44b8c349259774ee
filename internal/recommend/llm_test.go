package recommend

import (
	"context"
	"errors"
	"os"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type mockMessager struct {
	response *anthropic.Message
	err      error
	calls    int
	params   anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.calls++
	m.params = params
	return m.response, m.err
}

func newMockMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func withMockClient(mock *mockMessager) func() {
	old := newAnthropicClient
	newAnthropicClient = func(_ string) AnthropicMessager { return mock }
	return func() { newAnthropicClient = old }
}

func TestAnthropicGeneratorSplitsBullets(t *testing.T) {
	mock := &mockMessager{response: newMockMessage("1. Lead with survival data\n2. **Offer** access support")}
	defer withMockClient(mock)()

	gen, err := NewAnthropicGenerator("test-key", WithModel("claude-test"))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	s := summary(map[string]int{"Immunotherapy": 1}, 0, 1, "Pembrolizumab")
	tips, err := gen.Generate(context.Background(), s, "Merck", "Keytruda")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(tips) != 2 || tips[1] != "Offer access support" {
		t.Fatalf("tips=%#v", tips)
	}
	if string(mock.params.Model) != "claude-test" {
		t.Fatalf("model=%s", mock.params.Model)
	}
	if len(mock.params.System) != 1 || mock.params.System[0].Text != talkingPointsSystemPrompt {
		t.Fatalf("unexpected system prompt: %+v", mock.params.System)
	}
}

func TestAnthropicGeneratorEmptyResponse(t *testing.T) {
	defer withMockClient(&mockMessager{response: newMockMessage("   ")})()
	gen, _ := NewAnthropicGenerator("test-key")
	_, err := gen.Generate(context.Background(), summary(nil, 0, 0, ""), "", "")
	if !errors.Is(err, errEmptyResponse) {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestNewAnthropicGeneratorFromEnv(t *testing.T) {
	defer withMockClient(&mockMessager{})()
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicGeneratorFromEnv(); err == nil {
		t.Fatal("expected error without key")
	}
	t.Setenv("ANTHROPIC_API_KEY", "k")
	if _, err := NewAnthropicGeneratorFromEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("HCP_INSIGHTS_NO_LLM", "1")
	if _, err := NewAnthropicGeneratorFromEnv(); err == nil {
		t.Fatal("expected error when HCP_INSIGHTS_NO_LLM is enabled")
	}
}

func TestRecommendFallsBackOnError(t *testing.T) {
	defer withMockClient(&mockMessager{err: errors.New("POST: 500 Internal Server Error status code: 500")})()
	gen, _ := NewAnthropicGenerator("test-key")
	s := summary(map[string]int{"Chemotherapy": 1}, 0, 0, "Docetaxel")
	res := Recommend(context.Background(), gen, s, "Pfizer", "Ibrance")
	if res.Source != SourceFallback {
		t.Fatalf("source=%s", res.Source)
	}
	if res.Error == "" {
		t.Fatal("expected surfaced error message")
	}
	want := Fallback(s, "Pfizer", "Ibrance")
	if len(res.Tips) != len(want) || res.Tips[0] != want[0] {
		t.Fatalf("tips=%#v", res.Tips)
	}
}

func TestRecommendUsesGenerator(t *testing.T) {
	defer withMockClient(&mockMessager{response: newMockMessage("- One\n- Two")})()
	gen, _ := NewAnthropicGenerator("test-key")
	res := Recommend(context.Background(), gen, summary(nil, 0, 0, ""), "", "")
	if res.Source != SourceAI || len(res.Tips) != 2 || res.Error != "" {
		t.Fatalf("result=%+v", res)
	}
}

func TestRecommendWithoutGenerator(t *testing.T) {
	res := Recommend(context.Background(), nil, summary(nil, 0, 0, ""), "", "")
	if res.Source != SourceFallback || res.Error != "" || len(res.Tips) == 0 {
		t.Fatalf("result=%+v", res)
	}
}

func TestClassifyTransportError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want failureClass
	}{
		{err: context.DeadlineExceeded, want: failureTimeout},
		{err: errors.New("status code: 429 too many"), want: failureRateLimit},
		{err: errors.New("status code: 400 bad request"), want: failureClient},
		{err: errors.New("status code: 503"), want: failureServer},
		{err: errEmptyResponse, want: failureEmpty},
		{err: errors.New("failed after 5 retries"), want: failureServer},
	} {
		if got := classifyTransportError(tc.err); got != tc.want {
			t.Fatalf("classify(%v)=%s want %s", tc.err, got, tc.want)
		}
	}
}

func TestEnvEnabled(t *testing.T) {
	for _, tc := range []struct {
		value string
		want  bool
	}{
		{value: "", want: false},
		{value: "0", want: false},
		{value: "1", want: true},
		{value: "TRUE", want: true},
		{value: "on", want: true},
	} {
		if tc.value == "" {
			_ = os.Unsetenv("X_FLAG")
		} else {
			t.Setenv("X_FLAG", tc.value)
		}
		if got := envEnabled("X_FLAG"); got != tc.want {
			t.Fatalf("envEnabled(%q) got %v, want %v", tc.value, got, tc.want)
		}
	}
}
