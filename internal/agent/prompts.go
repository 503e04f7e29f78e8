package agent

import (
	"fmt"
	"strings"
)

const sdrSystemPrompt = `You are a professional AI voice sales development representative (SDR).
Your goal is to qualify the lead, ask discovery questions, and book a meeting.

Rules:
1. Speak naturally, calmly, and confidently.
2. Ask only ONE question at a time.
3. Be concise; avoid long monologues.
4. If the user is interested, propose a specific day and time for a meeting.
5. Do not mention you are an AI unless asked.
6. Use natural filler words occasionally to sound human (e.g., "uh", "let's see").`

const closerSystemPrompt = `You are a professional AI voice sales agent.
Your goal is to handle objections, explain the value proposition, and move toward a close or handoff.

Rules:
1. Speak naturally, calmly, and confidently.
2. Listen carefully to objections and address them with empathy and evidence.
3. Ask only ONE question at a time.
4. Be concise and persuasive.
5. Do not mention you are an AI unless asked.
6. Adapt your tone based on the user's personality.`

const voiceStyleDirective = `Keep your response brief and optimized for speech. Ideally under 20 words.`

// stageGoals states what each turn should accomplish in the current stage,
// and what it must not do yet.
var stageGoals = map[Stage]string{
	StageGreeting:      "Greet the user briefly and ask how they are today. Do NOT pitch or ask deep questions yet.",
	StageQualification: "Collect their specific role and company name to ensure fit. Stay in this stage until both are clear.",
	StageProblem:       "Identify exactly which sales or call volume pain points they have. NEVER jump to the solution yet.",
	StageSolution:      "Explain how our AI sales agent solves THEIR specific pain points. End your response by explicitly asking: 'Does this sound like something that would help you?'",
	StageObjection:     "Handle pricing or trust objections using our value-first approach. Be calm and empathetic.",
	StageClosing: `Follow these sub-steps for a professional close:
1. Confirm intent to meet/next steps.
2. Propose a specific day and time.
3. Confirm the suggested time.
4. Lock the meeting and end the call politely.
Do NOT jump to step 4 immediately.`,
}

const semanticLockTemplate = `
STICK TO THE STAGE GOAL:
- Current Stage: %s
- Goal: %s
- Forbidden: Do NOT ask questions or discuss topics from other stages.
- Example: If in SOLUTION, do not ask "What challenges do you face?".`

const pricingGateDirective = `
IMPORTANT: If the user asks about pricing:
- If you have NOT yet fully explained the value (value_presented is false), politely explain that you'd like to understand their needs first to give an accurate quote.
- DO NOT give a price if value_presented is false.`

const nudgeTemplate = `
[GUARDRAIL NUDGE]
The conversation is stalling in the current stage.
Gently nudge the user by rephrasing your goal: %s
Stop letting them wander.`

const sessionLockDirective = `
[CLOSING LOCK]
The meeting is already confirmed and locked.
Politely thank the user and end the conversation now.
No new discovery. No more small talk.`

const vagueFollowupDirective = `The user was vague or evasive. Gently but firmly ask for the missing information before proceeding.`

// instructionState is everything the payload assembler needs from session
// metadata to build one turn's system instructions.
type instructionState struct {
	Mode           string
	Stage          Stage
	TurnsInStage   int
	ValuePresented bool
	SessionLocked  bool
	NudgeThreshold int
}

// buildInstructions layers the instruction payload: persona, stage goal,
// semantic lock, pricing gate, optional stalling nudge, optional session
// lock, and the speech-delivery wrapper, in that order. Later layers refine
// earlier guidance, so the order is part of the contract.
func buildInstructions(state instructionState) (string, bool) {
	goal := stageGoals[state.Stage]

	var b strings.Builder
	if state.Mode == "SDR" {
		b.WriteString(sdrSystemPrompt)
	} else {
		b.WriteString(closerSystemPrompt)
	}

	fmt.Fprintf(&b, semanticLockTemplate, state.Stage, goal)

	fmt.Fprintf(&b, "\nValue Presented: %t", state.ValuePresented)
	b.WriteString(pricingGateDirective)

	nudged := state.TurnsInStage > state.NudgeThreshold && state.Stage != StageClosing
	if nudged {
		fmt.Fprintf(&b, nudgeTemplate, goal)
	}

	if state.SessionLocked {
		b.WriteString(sessionLockDirective)
	}

	b.WriteString("\n\n")
	b.WriteString(voiceStyleDirective)

	return b.String(), nudged
}
