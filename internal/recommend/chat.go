package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ChatSystemPrompt seeds every new chat conversation.
const ChatSystemPrompt = "You are a helpful HCP targeting assistant."

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext is the dashboard selection a question was asked under.
type ChatContext struct {
	TA      string `json:"ta,omitempty"`
	Company string `json:"company,omitempty"`
	Product string `json:"product,omitempty"`
}

type Chatter interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// ChatClient posts conversations to an OpenAI-style chat endpoint.
type ChatClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewChatClient(endpoint, apiKey string) *ChatClient {
	return &ChatClient{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

type chatResponse struct {
	Reply   *string `json:"reply"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.endpoint == "" {
		return "", errors.New("chat endpoint not configured")
	}
	blob, err := json.Marshal(map[string]any{"messages": messages})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("chat endpoint error: %d", resp.StatusCode)
	}
	var out chatResponse
	_ = json.Unmarshal(body, &out)
	if out.Reply != nil {
		return *out.Reply, nil
	}
	if len(out.Choices) > 0 && out.Choices[0].Message.Content != nil {
		return *out.Choices[0].Message.Content, nil
	}
	return "", errors.New("unexpected chat response")
}

// ChatFallback is the canned reply used when no chat endpoint is reachable.
func ChatFallback(question string, cc ChatContext) string {
	bits := []string{}
	if cc.TA != "" {
		bits = append(bits, "TA: "+cc.TA)
	}
	if cc.Company != "" {
		bits = append(bits, "Company: "+cc.Company)
	}
	if cc.Product != "" {
		bits = append(bits, "Product: "+cc.Product)
	}
	var sb strings.Builder
	sb.WriteString("I don't have a live chat endpoint configured.\n")
	sb.WriteString("Question: " + question + "\n")
	if len(bits) > 0 {
		sb.WriteString("Context: " + strings.Join(bits, " | ") + "\n")
	}
	sb.WriteString("Suggested next steps: 1) Clarify patient line of therapy & biomarkers; 2) Position ")
	sb.WriteString(brandOrDefault(cc.Product))
	sb.WriteString(" vs their most-used regimen; 3) Offer access resources.")
	return sb.String()
}

type ChatReply struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// Answer sends messages to chatter and returns its reply, or the fallback
// reply for the last user question when chatter is nil or fails.
func Answer(ctx context.Context, chatter Chatter, messages []ChatMessage, cc ChatContext) ChatReply {
	question := lastUserQuestion(messages)
	if chatter == nil {
		return ChatReply{Reply: ChatFallback(question, cc), Source: SourceFallback}
	}
	reply, err := chatter.Chat(ctx, messages)
	if err != nil {
		log.Printf("chat endpoint failed, falling back to canned reply: %v", err)
		return ChatReply{Reply: ChatFallback(question, cc), Source: SourceFallback, Error: err.Error()}
	}
	return ChatReply{Reply: reply, Source: SourceAI}
}

// WithSystemPrompt prepends ChatSystemPrompt unless messages already start
// with a system message.
func WithSystemPrompt(messages []ChatMessage) []ChatMessage {
	if len(messages) > 0 && messages[0].Role == "system" {
		return messages
	}
	out := make([]ChatMessage, 0, len(messages)+1)
	out = append(out, ChatMessage{Role: "system", Content: ChatSystemPrompt})
	return append(out, messages...)
}

func lastUserQuestion(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
