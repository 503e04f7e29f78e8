package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxline/sales-ai-platform/internal/observability/metrics"
	"github.com/voxline/sales-ai-platform/pkg/logging"
)

const (
	// ActionAdvance recommends leaving the current stage this turn.
	ActionAdvance = "advance"
	// ActionStay recommends holding the current stage.
	ActionStay = "stay"
)

// Analysis is the structured read of one user utterance: the classified
// intent, any facts worth remembering, and an advisory stay/advance call.
// extracted_info merges into session metadata; the rest is consumed by the
// current turn's gating decision only.
type Analysis struct {
	Intent            string         `json:"intent"`
	ExtractedInfo     map[string]any `json:"extracted_info"`
	IsVague           bool           `json:"is_vague"`
	RecommendedAction string         `json:"recommended_action"`
}

// fallbackAnalysis is the degraded-mode record returned whenever the
// underlying call fails or produces unparseable output. The flow engine
// must never see a hard failure from analysis.
func fallbackAnalysis() Analysis {
	return Analysis{
		Intent:            "other",
		ExtractedInfo:     map[string]any{},
		IsVague:           true,
		RecommendedAction: ActionStay,
	}
}

// Analyzer turns raw user text into an Analysis. Implementations must be
// total: on any internal failure they return the fallback record.
type Analyzer interface {
	Analyze(ctx context.Context, userText string, history []ChatMessage, stage Stage) Analysis
}

const analysisPromptTemplate = `You are a Conversation Analyzer for a formal sales process.
Your job is to analyze the latest User message and the history to provide structured feedback.

Stages:
- GREETING: Initial hello.
- QUALIFICATION: Determining role, company, and fit.
- PROBLEM: Identifying pain points and business challenges.
- SOLUTION: Presenting product value.
- OBJECTION: Handling pricing or trust issues.
- CLOSING: Next steps / meeting booking.

Output strictly valid JSON:
{
  "intent": "string (one of: greeting, providing_info, sharing_pain, interest, affirmation, objection, clarification, pricing_query, curiosity, evasion, other)",
  "intent_definitions": {
    "interest": "User explicitly likes the solution or wants to move forward (e.g., 'sounds good', 'I like that').",
    "curiosity": "User asks a 'how it works' or product feature question without clear acceptance yet.",
    "affirmation": "Simple 'yes', 'okay', 'correct'.",
    "clarification": "User asks about the sales process or repeats a question for understanding."
  },
  "extracted_info": {
    "role": "string or null",
    "company": "string or null",
    "pain_points": "string or null",
    "value_accepted": "boolean (Set to true ONLY if user explicitly says yes/sounds good to the solution)",
    "concerns_addressed": "boolean or null",
    "meeting_intent": "boolean or null",
    "meeting_locked": "boolean or null"
  },
  "is_vague": "boolean",
  "recommended_action": "stay or advance"
}

Current Stage: %s
History:
%s

Latest User Message: %s`

const analysisTemperature = 0.1

// LLMAnalyzer classifies user input with a low-temperature LLM call and a
// strict JSON output contract.
type LLMAnalyzer struct {
	client  LLMClient
	model   string
	window  int
	logger  *logging.Logger
	metrics *metrics.FlowMetrics
}

// NewLLMAnalyzer creates an analyzer backed by the supplied LLM client.
// window bounds how much history is shown to the model (default 5 entries).
func NewLLMAnalyzer(client LLMClient, model string, window int, logger *logging.Logger, m *metrics.FlowMetrics) *LLMAnalyzer {
	if client == nil {
		panic("agent: analyzer llm client cannot be nil")
	}
	if window <= 0 {
		window = 5
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMAnalyzer{
		client:  client,
		model:   model,
		window:  window,
		logger:  logger,
		metrics: m,
	}
}

// Analyze never fails: any transport or parse error degrades to the
// fallback record, logged and counted.
func (a *LLMAnalyzer) Analyze(ctx context.Context, userText string, history []ChatMessage, stage Stage) Analysis {
	prompt := fmt.Sprintf(analysisPromptTemplate, stage, formatHistory(tail(history, a.window)), userText)

	resp, err := a.client.Complete(ctx, LLMRequest{
		Model:       a.model,
		System:      []string{prompt},
		Temperature: analysisTemperature,
	})
	if err != nil {
		a.logger.Warn("analyzer call failed, using fallback record", "error", err, "stage", stage.String())
		a.metrics.ObserveAnalyzerFallback()
		return fallbackAnalysis()
	}

	analysis, err := parseAnalysis(resp.Text)
	if err != nil {
		a.logger.Warn("analyzer output unparseable, using fallback record", "error", err, "stage", stage.String())
		a.metrics.ObserveAnalyzerFallback()
		return fallbackAnalysis()
	}
	return analysis
}

func parseAnalysis(raw string) (Analysis, error) {
	cleaned := stripMarkdownFences(raw)

	var analysis Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("agent: failed to decode analysis: %w", err)
	}
	if analysis.ExtractedInfo == nil {
		analysis.ExtractedInfo = map[string]any{}
	}
	if analysis.RecommendedAction != ActionAdvance {
		analysis.RecommendedAction = ActionStay
	}
	if analysis.Intent == "" {
		analysis.Intent = "other"
	}
	return analysis, nil
}

// stripMarkdownFences removes a ```json ... ``` (or bare ```) wrapper some
// models add around structured output.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func formatHistory(history []ChatMessage) string {
	if len(history) == 0 {
		return "(no prior messages)"
	}
	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func tail(history []ChatMessage, n int) []ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
