package agent

import "testing"

func TestStageChain(t *testing.T) {
	tests := []struct {
		from Stage
		want Stage
	}{
		{StageGreeting, StageQualification},
		{StageQualification, StageProblem},
		{StageProblem, StageSolution},
		{StageSolution, StageObjection},
		{StageObjection, StageClosing},
	}

	for _, tt := range tests {
		next, ok := tt.from.Next()
		if !ok {
			t.Fatalf("expected %s to have a successor", tt.from)
		}
		if next != tt.want {
			t.Fatalf("expected %s -> %s, got %s", tt.from, tt.want, next)
		}
	}
}

func TestClosingIsTerminal(t *testing.T) {
	if _, ok := StageClosing.Next(); ok {
		t.Fatal("closing must have no successor")
	}
	if !StageClosing.Terminal() {
		t.Fatal("closing must be terminal")
	}
	if StageGreeting.Terminal() {
		t.Fatal("greeting must not be terminal")
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		raw  string
		want Stage
	}{
		{"greeting", StageGreeting},
		{"QUALIFICATION", StageQualification},
		{"  closing  ", StageClosing},
		{"Problem", StageProblem},
	}
	for _, tt := range tests {
		got, err := ParseStage(tt.raw)
		if err != nil {
			t.Fatalf("ParseStage(%q) returned error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseStage(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestParseStageUnknown(t *testing.T) {
	for _, raw := range []string{"", "discovery", "closed", "greeting2"} {
		if _, err := ParseStage(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
