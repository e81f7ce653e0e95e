// internal/nlu/classifier.go
package nlu

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/user/amana/internal/types"
	"github.com/user/amana/pkg/llm"
)

// Classification is the classifier's verdict on a single utterance.
// Reply carries the conversational fallback text when Intent is NONE.
type Classification struct {
	Intent     types.Intent
	Confidence float64
	Reply      string
}

// Classifier detects the intent of a first-turn utterance. It sees the
// current utterance plus a fixed preamble enumerating the intent tags,
// with recent history for disambiguation.
//
// Classify never returns an error: LLM failures degrade to NONE with
// confidence 0 so the orchestrator can fall back conversationally.
type Classifier struct {
	provider  llm.Provider
	prompts   *promptBuilder
	threshold float64
}

// NewClassifier builds a Classifier over the given provider. threshold is
// the minimum confidence for a non-NONE verdict (default 0.5 when <= 0).
func NewClassifier(provider llm.Provider, model string, tz *time.Location, threshold float64) (*Classifier, error) {
	if threshold <= 0 {
		threshold = 0.5
	}
	prompts, err := newPromptBuilder(model, tz, time.Now)
	if err != nil {
		return nil, err
	}
	return &Classifier{provider: provider, prompts: prompts, threshold: threshold}, nil
}

// Classify returns the detected intent with its confidence.
func (c *Classifier) Classify(ctx context.Context, text string, history []types.HistoryEntry) Classification {
	messages := []llm.Message{{Role: "system", Content: c.prompts.classifyPreamble()}}
	messages = append(messages, c.prompts.historyMessages(history)...)
	messages = append(messages, llm.Message{Role: "user", Content: text})

	resp, err := c.provider.Complete(ctx, messages)
	if err != nil {
		slog.Warn("classifier LLM call failed", "error", err)
		return Classification{Intent: types.IntentNone}
	}

	body, ok := JSONSlice(resp.Content)
	if !ok {
		slog.Warn("classifier returned non-JSON output")
		return Classification{Intent: types.IntentNone, Reply: strings.TrimSpace(resp.Content)}
	}

	tag := types.Intent(strings.ToUpper(gjson.Get(body, "intent").String()))
	confidence := gjson.Get(body, "confidence").Float()
	reply := gjson.Get(body, "reply").String()

	if !types.Known(tag) || confidence < c.threshold {
		return Classification{Intent: types.IntentNone, Confidence: confidence, Reply: reply}
	}
	return Classification{Intent: tag, Confidence: confidence, Reply: reply}
}

// JSONSlice locates the first '{' and last '}' in raw and returns the
// slice between them. Models wrap JSON in prose or code fences often
// enough that strict parsing is not an option.
func JSONSlice(raw string) (string, bool) {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	slice := raw[first : last+1]
	if !gjson.Valid(slice) {
		return "", false
	}
	return slice, true
}
