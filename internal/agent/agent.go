package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxline/sales-ai-platform/internal/observability/metrics"
	"github.com/voxline/sales-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrGeneration marks a generation-backend failure. The turn's user message
// is retained; no assistant message is appended and no reply is returned.
var ErrGeneration = errors.New("agent: generation failed")

// ErrCorruptSession marks session metadata that cannot be normalized into a
// valid flow state. This is a configuration/corruption fault, not a user
// input problem.
var ErrCorruptSession = errors.New("agent: corrupt session state")

var agentTracer = otel.Tracer("salesai.internal.agent")

// Service is the session-facing surface of the flow engine.
type Service interface {
	HandleTurn(ctx context.Context, sessionID, userText string) (string, error)
	Snapshot(ctx context.Context, sessionID string) (SessionState, error)
	SetMode(ctx context.Context, sessionID, mode string) error
	ClearSession(ctx context.Context, sessionID string) error
}

// SessionState is a read-only view of a session for inspection endpoints.
type SessionState struct {
	SessionID      string `json:"session_id"`
	Stage          string `json:"stage"`
	Mode           string `json:"mode"`
	TurnsInStage   int    `json:"turns_in_stage"`
	ValuePresented bool   `json:"value_presented"`
	SessionLocked  bool   `json:"session_locked"`
	MessageCount   int    `json:"message_count"`
}

type agentConfig struct {
	chatModel      string
	temperature    float32
	nudgeThreshold int
}

// Option configures a SalesAgent.
type Option func(*agentConfig)

// WithChatModel overrides the generation model identifier.
func WithChatModel(model string) Option {
	return func(cfg *agentConfig) {
		if model != "" {
			cfg.chatModel = model
		}
	}
}

// WithTemperature overrides the generation sampling temperature.
func WithTemperature(t float32) Option {
	return func(cfg *agentConfig) {
		if t >= 0 {
			cfg.temperature = t
		}
	}
}

// WithNudgeThreshold sets how many stalled user turns are tolerated in one
// stage before the instruction payload carries a nudge.
func WithNudgeThreshold(turns int) Option {
	return func(cfg *agentConfig) {
		if turns > 0 {
			cfg.nudgeThreshold = turns
		}
	}
}

// SalesAgent drives the stage-gated sales flow: the backend controls the
// conversation; the LLM only generates language.
type SalesAgent struct {
	store    SessionStore
	analyzer Analyzer
	llm      LLMClient
	logger   *logging.Logger
	metrics  *metrics.FlowMetrics
	locks    keyedMutex
	cfg      agentConfig
}

var _ Service = (*SalesAgent)(nil)

// NewSalesAgent wires the flow engine around an injected store, analyzer,
// and generation client.
func NewSalesAgent(store SessionStore, analyzer Analyzer, llm LLMClient, logger *logging.Logger, m *metrics.FlowMetrics, opts ...Option) *SalesAgent {
	if store == nil {
		panic("agent: session store cannot be nil")
	}
	if analyzer == nil {
		panic("agent: analyzer cannot be nil")
	}
	if llm == nil {
		panic("agent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := agentConfig{
		temperature:    0.7,
		nudgeThreshold: 2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &SalesAgent{
		store:    store,
		analyzer: analyzer,
		llm:      llm,
		logger:   logger,
		metrics:  m,
		cfg:      cfg,
	}
}

// HandleTurn processes one user utterance and returns the assistant reply.
// Turns for the same session key are serialized; different sessions run
// concurrently.
func (a *SalesAgent) HandleTurn(ctx context.Context, sessionID, userText string) (string, error) {
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	ctx, span := agentTracer.Start(ctx, "agent.turn",
		trace.WithAttributes(attribute.String("salesai.session_id", sessionID)))
	defer span.End()

	started := time.Now()

	if err := a.store.AppendMessage(ctx, sessionID, ChatRoleUser, userText); err != nil {
		span.RecordError(err)
		return "", err
	}

	stage, err := a.currentStage(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("salesai.stage", stage.String()))

	history, err := a.store.History(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	analysis := a.analyzer.Analyze(ctx, userText, history, stage)
	a.logger.Info("analyzed user turn",
		"session_id", sessionID,
		"intent", analysis.Intent,
		"action", analysis.RecommendedAction,
		"vague", analysis.IsVague,
	)

	if err := a.mergeFacts(ctx, sessionID, analysis); err != nil {
		span.RecordError(err)
		return "", err
	}

	instructions, stage, err := a.prepareInstructions(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	if analysis.IsVague {
		messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: vagueFollowupDirective})
	}

	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.cfg.chatModel,
		System:      []string{instructions},
		Messages:    messages,
		Temperature: a.cfg.temperature,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	reply := resp.Text

	if err := a.store.AppendMessage(ctx, sessionID, ChatRoleAssistant, reply); err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := a.applyAdvance(ctx, sessionID, stage, analysis); err != nil {
		span.RecordError(err)
		return "", err
	}

	a.logger.Debug("turn complete",
		"session_id", sessionID,
		"stage", stage.String(),
		"duration_ms", time.Since(started).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return reply, nil
}

// Snapshot returns the current flow state of a session.
func (a *SalesAgent) Snapshot(ctx context.Context, sessionID string) (SessionState, error) {
	stage, err := a.currentStage(ctx, sessionID)
	if err != nil {
		return SessionState{}, err
	}

	mode, err := a.factString(ctx, sessionID, metaMode)
	if err != nil {
		return SessionState{}, err
	}
	turns, err := a.factInt(ctx, sessionID, metaTurnsInStage)
	if err != nil {
		return SessionState{}, err
	}
	valuePresented, err := a.factTruthy(ctx, sessionID, FactValuePresented)
	if err != nil {
		return SessionState{}, err
	}
	locked, err := a.factTruthy(ctx, sessionID, FactSessionLocked)
	if err != nil {
		return SessionState{}, err
	}
	history, err := a.store.History(ctx, sessionID)
	if err != nil {
		return SessionState{}, err
	}

	return SessionState{
		SessionID:      sessionID,
		Stage:          stage.String(),
		Mode:           mode,
		TurnsInStage:   turns,
		ValuePresented: valuePresented,
		SessionLocked:  locked,
		MessageCount:   len(history),
	}, nil
}

// SetMode selects the persona for a session before its first turn.
func (a *SalesAgent) SetMode(ctx context.Context, sessionID, mode string) error {
	unlock := a.locks.Lock(sessionID)
	defer unlock()
	return a.store.SetFact(ctx, sessionID, metaMode, mode)
}

// ClearSession removes all history and metadata for the session key.
func (a *SalesAgent) ClearSession(ctx context.Context, sessionID string) error {
	unlock := a.locks.Lock(sessionID)
	defer unlock()
	return a.store.Clear(ctx, sessionID)
}

// mergeFacts copies non-null extracted facts into session metadata. A true
// value_accepted also latches the pricing gate open; nothing ever resets it.
func (a *SalesAgent) mergeFacts(ctx context.Context, sessionID string, analysis Analysis) error {
	for key, value := range analysis.ExtractedInfo {
		if value == nil {
			continue
		}
		if err := a.store.SetFact(ctx, sessionID, key, value); err != nil {
			return err
		}
		if key == FactValueAccepted && value == true {
			if err := a.store.SetFact(ctx, sessionID, FactValuePresented, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// prepareInstructions assembles the layered system instructions for the
// generation call and resolves the current stage.
func (a *SalesAgent) prepareInstructions(ctx context.Context, sessionID string) (string, Stage, error) {
	stage, err := a.currentStage(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	mode, err := a.factString(ctx, sessionID, metaMode)
	if err != nil {
		return "", "", err
	}
	turns, err := a.factInt(ctx, sessionID, metaTurnsInStage)
	if err != nil {
		return "", "", err
	}
	valuePresented, err := a.factTruthy(ctx, sessionID, FactValuePresented)
	if err != nil {
		return "", "", err
	}
	locked, err := a.factTruthy(ctx, sessionID, FactSessionLocked)
	if err != nil {
		return "", "", err
	}

	instructions, nudged := buildInstructions(instructionState{
		Mode:           mode,
		Stage:          stage,
		TurnsInStage:   turns,
		ValuePresented: valuePresented,
		SessionLocked:  locked,
		NudgeThreshold: a.cfg.nudgeThreshold,
	})
	if nudged {
		a.logger.Info("stalling detected, nudge added",
			"session_id", sessionID,
			"stage", stage.String(),
			"turns_in_stage", turns,
		)
		a.metrics.ObserveNudge(stage.String())
	}
	return instructions, stage, nil
}

// applyAdvance runs the gated stay/advance decision for the turn. The
// analyzer recommendation is narrowed by the intent gate, then by the exit
// conditions, in that order. Closing never advances; it only locks.
func (a *SalesAgent) applyAdvance(ctx context.Context, sessionID string, stage Stage, analysis Analysis) error {
	if stage == StageClosing {
		meetingLocked, err := a.factTruthy(ctx, sessionID, FactMeetingLocked)
		if err != nil {
			return err
		}
		if meetingLocked {
			a.logger.Info("meeting locked, locking session", "session_id", sessionID)
			return a.store.SetFact(ctx, sessionID, FactSessionLocked, true)
		}
		return nil
	}

	shouldAdvance := analysis.RecommendedAction == ActionAdvance

	if shouldAdvance && !intentAllowed(stage, analysis.Intent) {
		a.logger.Info("intent not allowed to advance, blocking",
			"session_id", sessionID,
			"stage", stage.String(),
			"intent", analysis.Intent,
		)
		a.metrics.ObserveBlockedAdvance(stage.String(), "intent")
		shouldAdvance = false
	}

	for _, field := range requiredFacts(stage) {
		value, err := a.store.Fact(ctx, sessionID, field)
		if err != nil {
			return err
		}
		if !truthy(value) {
			if shouldAdvance {
				a.metrics.ObserveBlockedAdvance(stage.String(), "exit_condition")
			}
			a.logger.Info("required fact missing, staying",
				"session_id", sessionID,
				"stage", stage.String(),
				"fact", field,
			)
			shouldAdvance = false
			break
		}
	}

	if !shouldAdvance {
		a.logger.Debug("stage hold", "session_id", sessionID, "stage", stage.String())
		return nil
	}

	next, ok := stage.Next()
	if !ok {
		a.logger.Info("end of flow reached", "session_id", sessionID, "stage", stage.String())
		a.metrics.ObserveEndOfFlow()
		return nil
	}

	a.logger.Info("stage transition",
		"session_id", sessionID,
		"from", stage.String(),
		"to", next.String(),
	)
	a.metrics.ObserveTransition(stage.String(), next.String())
	return a.store.AdvanceTo(ctx, sessionID, next)
}

// currentStage reads and normalizes the stored stage. Unparseable values
// surface as ErrCorruptSession rather than silently defaulting.
func (a *SalesAgent) currentStage(ctx context.Context, sessionID string) (Stage, error) {
	raw, err := a.store.Fact(ctx, sessionID, metaStage)
	if err != nil {
		return "", err
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: stage is %T, want string", ErrCorruptSession, raw)
	}
	stage, err := ParseStage(str)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return stage, nil
}

func (a *SalesAgent) factString(ctx context.Context, sessionID, key string) (string, error) {
	value, err := a.store.Fact(ctx, sessionID, key)
	if err != nil {
		return "", err
	}
	str, _ := value.(string)
	return strings.TrimSpace(str), nil
}

func (a *SalesAgent) factInt(ctx context.Context, sessionID, key string) (int, error) {
	value, err := a.store.Fact(ctx, sessionID, key)
	if err != nil {
		return 0, err
	}
	return asInt(value), nil
}

func (a *SalesAgent) factTruthy(ctx context.Context, sessionID, key string) (bool, error) {
	value, err := a.store.Fact(ctx, sessionID, key)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}
