// Package pacing decides the tone of each companion reply and builds the
// prompt handed to the language model. The phase keeps a photo's exchange
// going long enough to matter while guaranteeing it ends: the max-turn
// ceiling holds no matter what the generator produces.
package pacing

import (
	"fmt"
	"strings"
)

// Phase classifies the tone requested from the generator for one turn.
type Phase string

const (
	Opening     Phase = "OPENING"
	Encouraging Phase = "ENCOURAGING"
	Celebrating Phase = "CELEBRATING"
	WrappingUp  Phase = "WRAPPING UP"
	Continuing  Phase = "CONTINUING"
)

// WrapUpSignal is the transition phrase a wrapping-up reply is asked to
// contain. Generated text is not contract-bound to include it, so callers
// treat its presence as one advisory signal among several, never the sole
// gate on advancing.
const WrapUpSignal = "another photo"

// Turn carries the per-turn facts the phase policy needs.
type Turn struct {
	Number     int
	Correct    bool
	FoundCount int
	TruthCount int
}

// BuildPhase applies the pacing policy in strict precedence order.
func BuildPhase(t Turn, minTurns, maxTurns int) Phase {
	switch {
	case t.Number == 1:
		return Opening
	case t.Number >= maxTurns:
		return WrappingUp
	case t.Number >= minTurns && t.Correct:
		return WrappingUp
	case t.FoundCount >= t.TruthCount && t.Number >= 3:
		return WrappingUp
	case t.Correct:
		return Celebrating
	default:
		return Encouraging
	}
}

// SignalsWrapUp reports whether generated text contains the transition phrase.
func SignalsWrapUp(text string) bool {
	return strings.Contains(strings.ToLower(text), WrapUpSignal)
}

// PromptContext gathers everything the prompt needs for one turn.
type PromptContext struct {
	Instructions  string // fixed system guidance, passed verbatim
	CompanionName string
	UserName      string
	Description   string // photo description, used as visual context
	Heard         string // what the user said or picked
	Turn          Turn
	Phase         Phase
	People        []string // ground-truth labels, for hints
}

// instruction returns the phase-specific steering line.
func instruction(pc PromptContext) string {
	switch pc.Phase {
	case Opening:
		return "First turn! Be excited about the photo. Ask who they see."
	case Celebrating:
		return fmt.Sprintf("They correctly said %s! Celebrate big! Then ask 'Who else do you see?'", pc.Heard)
	case WrappingUp:
		if pc.Turn.Correct {
			return fmt.Sprintf("They said %s! Big celebration, then say 'Let's see %s!'", pc.Heard, WrapUpSignal)
		}
		return fmt.Sprintf("Time to move on. Celebrate their participation, say 'Let's see %s!'", WrapUpSignal)
	default:
		return fmt.Sprintf("They picked %s. Be warm and encouraging! Give a gentle hint about someone who IS in the photo: %s",
			pc.Heard, strings.Join(pc.People, ", "))
	}
}

// BuildPrompt renders the system and user messages for the generator.
func BuildPrompt(pc PromptContext) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a warm playful friend talking to %s.\n\n", pc.CompanionName, pc.UserName)
	fmt.Fprintf(&b, "IMAGE: %s\n", pc.Description)
	fmt.Fprintf(&b, "TURN: %d\n", pc.Turn.Number)
	fmt.Fprintf(&b, "PHASE: %s\n", pc.Phase)
	fmt.Fprintf(&b, "%s SAID: %s\n", strings.ToUpper(pc.UserName), pc.Heard)
	fmt.Fprintf(&b, "CORRECT: %v\n\n", pc.Turn.Correct)
	b.WriteString(instruction(pc))
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- Very short sentences (3-6 words max)\n")
	b.WriteString("- Be warm, playful, encouraging\n")
	b.WriteString("- NEVER say they're wrong\n")
	fmt.Fprintf(&b, "- Only say 'Let's see %s!' if PHASE is %s\n", WrapUpSignal, WrappingUp)
	b.WriteString("- Add sounds like \"Oooh\" or \"Mmm\" or \"Hehe\"\n")
	return pc.Instructions, b.String()
}
