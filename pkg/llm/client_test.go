package llm

import (
	"context"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

// scriptedModel returns canned responses in sequence.
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	resp := ""
	if m.calls < len(m.responses) {
		resp = m.responses[m.calls]
	}
	m.calls++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: resp}},
	}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func TestCompleteJSONRetriesOnEmpty(t *testing.T) {
	model := &scriptedModel{responses: []string{"", `{"queries": ["a", "b"]}`}}
	client := NewClient(model, "test-model")

	var out struct {
		Queries []string `json:"queries"`
	}
	if err := client.CompleteJSON(context.Background(), "prompt", &out); err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if model.calls != 2 {
		t.Errorf("expected 2 calls, got %d", model.calls)
	}
	if len(out.Queries) != 2 || out.Queries[0] != "a" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestCompleteJSONRetriesOnMalformed(t *testing.T) {
	model := &scriptedModel{responses: []string{"not json at all", "```json\n{\"ok\": true}\n```"}}
	client := NewClient(model, "test-model")

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.CompleteJSON(context.Background(), "prompt", &out); err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if !out.OK {
		t.Errorf("expected ok=true, got %+v", out)
	}
}

func TestCompleteJSONExhaustsRetries(t *testing.T) {
	model := &scriptedModel{responses: []string{"", "", ""}}
	client := NewClient(model, "test-model")

	var out map[string]any
	err := client.CompleteJSON(context.Background(), "prompt", &out)
	if err == nil {
		t.Fatal("expected terminal error after retry exhaustion")
	}
	if model.calls != DefaultMaxRetries {
		t.Errorf("expected %d calls, got %d", DefaultMaxRetries, model.calls)
	}
}
