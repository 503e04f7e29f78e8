package agent

import "testing"

func TestExitConditionsDeclaredOrder(t *testing.T) {
	facts := requiredFacts(StageQualification)
	if len(facts) != 2 || facts[0] != "role" || facts[1] != "company" {
		t.Fatalf("unexpected qualification exit conditions: %v", facts)
	}
	if len(requiredFacts(StageGreeting)) != 0 {
		t.Fatal("greeting must require no facts")
	}
	if facts := requiredFacts(StageClosing); len(facts) != 1 || facts[0] != FactMeetingLocked {
		t.Fatalf("unexpected closing exit conditions: %v", facts)
	}
}

func TestIntentAllowed(t *testing.T) {
	tests := []struct {
		stage  Stage
		intent string
		want   bool
	}{
		{StageQualification, "providing_info", true},
		{StageQualification, "curiosity", false},
		{StageSolution, "interest", true},
		{StageSolution, "curiosity", false},
		{StageObjection, "acceptance", true},
		{StageClosing, "affirmation", false}, // closing has no advance intents
	}
	for _, tt := range tests {
		if got := intentAllowed(tt.stage, tt.intent); got != tt.want {
			t.Fatalf("intentAllowed(%s, %s) = %t, want %t", tt.stage, tt.intent, got, tt.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, "", 0, float64(0), []any{}, map[string]any{}}
	for _, v := range falsy {
		if truthy(v) {
			t.Fatalf("expected %#v to be falsy", v)
		}
	}
	truthyVals := []any{true, "VP of Sales", 3, float64(1), []any{"x"}, map[string]any{"k": 1}}
	for _, v := range truthyVals {
		if !truthy(v) {
			t.Fatalf("expected %#v to be truthy", v)
		}
	}
}
