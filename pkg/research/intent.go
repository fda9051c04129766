// Package research implements the per-round stages of the pipeline: intent
// classification, planning, web search, snippet reranking, and reflection.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

// jsonCompleter is the slice of the LLM client these stages need: a prompt
// in, a parsed JSON object out.
type jsonCompleter interface {
	CompleteJSON(ctx context.Context, prompt string, out any, opts ...func(*pipeline.CompletionOptions)) error
}

// IntentClassifier assigns one of the known intents to a query with a single
// low-temperature completion.
type IntentClassifier struct {
	LLM    jsonCompleter
	Model  string
	Logger *slog.Logger
}

func NewIntentClassifier(llm jsonCompleter, model string) *IntentClassifier {
	return &IntentClassifier{LLM: llm, Model: model, Logger: slog.Default()}
}

func (c *IntentClassifier) Classify(ctx context.Context, query pipeline.Query) (pipeline.Intent, error) {
	prompt := fmt.Sprintf(`Analyze the following user query and classify its intent into one of these categories:

- INFORMATIONAL: General questions seeking factual information
- COMPARATIVE: Questions comparing multiple things
- NEWS: Questions about current events or recent news
- CODE: Questions about programming, code examples, or technical implementation
- TUTORIAL: Questions seeking step-by-step instructions or how-to guides
- RESEARCH: Academic or in-depth research questions
- GENERAL: General conversational queries

Query: %q

Respond with a JSON object containing:
- "intent": the category (one of the above)
- "confidence": a number between 0 and 1
- "reasoning": brief explanation for the classification`, query.Text)

	var resp struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	err := c.LLM.CompleteJSON(ctx, prompt, &resp,
		pipeline.WithModel(c.Model),
		pipeline.WithTemperature(0.3),
	)
	if err != nil {
		return pipeline.IntentGeneral, fmt.Errorf("intent classification failed: %w", err)
	}

	intent := parseIntent(resp.Intent)
	c.logger().Info("Intent classified", "intent", intent, "confidence", resp.Confidence)
	return intent, nil
}

func parseIntent(s string) pipeline.Intent {
	switch pipeline.Intent(strings.ToLower(strings.TrimSpace(s))) {
	case pipeline.IntentInformational:
		return pipeline.IntentInformational
	case pipeline.IntentComparative:
		return pipeline.IntentComparative
	case pipeline.IntentNews:
		return pipeline.IntentNews
	case pipeline.IntentCode:
		return pipeline.IntentCode
	case pipeline.IntentTutorial:
		return pipeline.IntentTutorial
	case pipeline.IntentResearch:
		return pipeline.IntentResearch
	default:
		return pipeline.IntentGeneral
	}
}

func (c *IntentClassifier) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
