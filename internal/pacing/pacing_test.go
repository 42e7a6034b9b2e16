package pacing

import (
	"strings"
	"testing"
)

func TestBuildPhasePrecedence(t *testing.T) {
	const minTurns, maxTurns = 4, 6
	cases := []struct {
		name string
		turn Turn
		want Phase
	}{
		{"first turn wins over everything", Turn{Number: 1, Correct: true, FoundCount: 3, TruthCount: 3}, Opening},
		{"ceiling is unconditional", Turn{Number: 6, Correct: false, FoundCount: 0, TruthCount: 2}, WrappingUp},
		{"past ceiling still wraps", Turn{Number: 9, Correct: false, TruthCount: 2}, WrappingUp},
		{"min turns plus correct wraps", Turn{Number: 4, Correct: true, FoundCount: 1, TruthCount: 3}, WrappingUp},
		{"all found after three turns wraps", Turn{Number: 3, Correct: false, FoundCount: 2, TruthCount: 2}, WrappingUp},
		{"all found too early keeps going", Turn{Number: 2, Correct: true, FoundCount: 2, TruthCount: 2}, Celebrating},
		{"correct before min turns celebrates", Turn{Number: 2, Correct: true, FoundCount: 1, TruthCount: 3}, Celebrating},
		{"incorrect encourages", Turn{Number: 3, Correct: false, FoundCount: 0, TruthCount: 2}, Encouraging},
		{"empty ground truth wraps at three", Turn{Number: 3, Correct: false, FoundCount: 0, TruthCount: 0}, WrappingUp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildPhase(tc.turn, minTurns, maxTurns); got != tc.want {
				t.Fatalf("BuildPhase(%+v) = %s, want %s", tc.turn, got, tc.want)
			}
		})
	}
}

func TestSignalsWrapUp(t *testing.T) {
	if !SignalsWrapUp("Yay! Let's see ANOTHER PHOTO!") {
		t.Fatal("expected case-insensitive signal match")
	}
	if SignalsWrapUp("Who else do you see?") {
		t.Fatal("did not expect a wrap-up signal")
	}
	if SignalsWrapUp("") {
		t.Fatal("empty text carries no signal")
	}
}

func TestBuildPromptContainsTurnFacts(t *testing.T) {
	pc := PromptContext{
		Instructions:  "Speak slowly.",
		CompanionName: "Sarah",
		UserName:      "My",
		Description:   "My with her brother at the park",
		Heard:         "Brother",
		Turn:          Turn{Number: 2, Correct: true},
		Phase:         Celebrating,
		People:        []string{"Brother"},
	}
	system, user := BuildPrompt(pc)
	if system != "Speak slowly." {
		t.Fatalf("system prompt should pass instructions verbatim, got %q", system)
	}
	for _, want := range []string{
		"You are Sarah",
		"talking to My",
		"IMAGE: My with her brother at the park",
		"TURN: 2",
		"PHASE: CELEBRATING",
		"They correctly said Brother",
		"NEVER say they're wrong",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestBuildPromptEncouragingIncludesHint(t *testing.T) {
	pc := PromptContext{
		CompanionName: "Sarah",
		UserName:      "My",
		Heard:         "Uncle",
		Turn:          Turn{Number: 2},
		Phase:         Encouraging,
		People:        []string{"Mom", "Brother"},
	}
	_, user := BuildPrompt(pc)
	if !strings.Contains(user, "Mom, Brother") {
		t.Fatalf("encouraging prompt should hint at people in the photo:\n%s", user)
	}
}

func TestBuildPromptWrapUpVariants(t *testing.T) {
	base := PromptContext{CompanionName: "Sarah", UserName: "My", Heard: "Mom", Phase: WrappingUp}

	correct := base
	correct.Turn = Turn{Number: 4, Correct: true}
	_, user := BuildPrompt(correct)
	if !strings.Contains(user, "They said Mom!") {
		t.Fatalf("correct wrap-up should celebrate the pick:\n%s", user)
	}

	timeout := base
	timeout.Turn = Turn{Number: 6, Correct: false}
	_, user = BuildPrompt(timeout)
	if !strings.Contains(user, "Time to move on") {
		t.Fatalf("timeout wrap-up should celebrate participation:\n%s", user)
	}
}
