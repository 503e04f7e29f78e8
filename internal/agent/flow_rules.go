package agent

// Metadata keys with flow-level meaning. Any other fact name the analyzer
// produces is stored as-is alongside these.
const (
	metaStage        = "stage"
	metaMode         = "mode"
	metaIntent       = "intent"
	metaTurnsInStage = "turns_in_stage"

	// FactValuePresented is the pricing gate: price may not be disclosed
	// while it is false. Latched true once value_accepted lands.
	FactValuePresented = "value_presented"
	// FactValueAccepted is set by extraction when the user explicitly
	// accepts the value proposition.
	FactValueAccepted = "value_accepted"
	// FactMeetingLocked is set by extraction once a meeting is confirmed.
	FactMeetingLocked = "meeting_locked"
	// FactSessionLocked marks a session as terminally closed out.
	FactSessionLocked = "session_locked"
)

// exitConditions lists the facts that must be truthy in session metadata
// before a stage may be left. Order matters: the first missing fact blocks
// the advance. Business rule changes happen here, nowhere else.
var exitConditions = map[Stage][]string{
	StageGreeting:      {},
	StageQualification: {"role", "company"},
	StageProblem:       {"pain_points"},
	StageSolution:      {FactValueAccepted},
	StageObjection:     {"concerns_addressed"},
	StageClosing:       {FactMeetingLocked},
}

// allowedAdvanceIntents lists which extraction intents may legally trigger
// an advance out of each stage. The analyzer's recommendation is advisory;
// this table is authoritative. Closing has no entry: it never advances, it
// only locks.
var allowedAdvanceIntents = map[Stage]map[string]struct{}{
	StageGreeting:      setOf("greeting", "information_request", "other"),
	StageQualification: setOf("providing_info", "affirmation"),
	StageProblem:       setOf("sharing_pain", "affirmation"),
	StageSolution:      setOf("interest", "affirmation"),
	StageObjection:     setOf("acceptance", "affirmation"),
}

func setOf(items ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func intentAllowed(stage Stage, intent string) bool {
	allowed, ok := allowedAdvanceIntents[stage]
	if !ok {
		return false
	}
	_, ok = allowed[intent]
	return ok
}

// requiredFacts returns the exit conditions for a stage in declared order.
func requiredFacts(stage Stage) []string {
	return exitConditions[stage]
}

// truthy mirrors the gate semantics for fact values: nil, false, empty
// strings, zero numbers, and empty collections do not satisfy a condition.
// Values round-trip through JSON, so numbers usually arrive as float64.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case float32:
		return val != 0
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
