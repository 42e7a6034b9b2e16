// Package session owns the conversation state machine: progress through the
// photo deck, per-photo turn pacing, and the advance decision. Collaborators
// (transcription, generation, synthesis) are invoked synchronously within a
// turn and every one of them has a deterministic local fallback, so a turn
// always produces some reply even under total collaborator failure.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/keepsakelabs/keepsake-core/internal/config"
	"github.com/keepsakelabs/keepsake-core/internal/deck"
	"github.com/keepsakelabs/keepsake-core/internal/llm"
	"github.com/keepsakelabs/keepsake-core/internal/pacing"
	"github.com/keepsakelabs/keepsake-core/internal/relationship"
	"github.com/keepsakelabs/keepsake-core/internal/speech"
	"github.com/keepsakelabs/keepsake-core/internal/stt"
	"github.com/keepsakelabs/keepsake-core/internal/tts"
)

// State names the session's position in its lifecycle.
type State string

const (
	StateAwaitingGreeting State = "awaiting_greeting"
	StateAwaitingInput    State = "awaiting_input"
	StateProcessing       State = "processing"
	StateCompleted        State = "completed"
)

// FillerUtterance substitutes for an empty or failed transcription so every
// turn produces a classifiable input.
const FillerUtterance = "mmm"

// ErrNotAccepting is returned when input arrives in a state that cannot
// consume it.
var ErrNotAccepting = errors.New("session is not accepting input")

// Config carries the session's pacing and generation parameters.
type Config struct {
	MinTurns      int
	MaxTurns      int
	Voice         string
	Speed         float64
	UserName      string
	CompanionName string
	MaxTokens     int
	Temperature   float64
}

// ConfigFrom merges the yaml session and llm sections into a session Config.
func ConfigFrom(sc config.SessionConfig, lc config.LLMConfig) Config {
	return Config{
		MinTurns:      sc.MinTurns,
		MaxTurns:      sc.MaxTurns,
		Voice:         sc.Voice,
		Speed:         sc.Speed,
		UserName:      sc.UserName,
		CompanionName: sc.CompanionName,
		MaxTokens:     lc.MaxTokens,
		Temperature:   lc.Temperature,
	}
}

// Reply is what one state-machine step hands back to the transport layer.
// Synthesized audio travels separately through the pending-speech mailbox.
type Reply struct {
	Text       string       `json:"text"`
	Phase      pacing.Phase `json:"phase"`
	PhotoIndex int          `json:"photo_index"`
	Turn       int          `json:"turn"`
	Heard      string       `json:"heard,omitempty"`
	Correct    bool         `json:"correct"`
	Found      []string     `json:"found,omitempty"`
	Advanced   bool         `json:"advanced"`
	Completed  bool         `json:"completed"`
	Fallback   bool         `json:"fallback"`
}

// Snapshot is a read-only view of session progress for the HTTP surface.
type Snapshot struct {
	ID         string   `json:"id"`
	State      State    `json:"state"`
	PhotoIndex int      `json:"photo_index"`
	DeckSize   int      `json:"deck_size"`
	Turn       int      `json:"turn"`
	Found      []string `json:"found,omitempty"`
}

// Session is the single-owner conversation state machine. All methods are
// safe for concurrent use, but turns are strictly serialized: one input is
// processed fully before the next is accepted.
type Session struct {
	id           string
	deck         *deck.Deck
	instructions string
	recognizer   stt.Recognizer
	generator    llm.Generator
	synth        tts.Synthesizer
	shaper       *speech.Shaper
	cfg          Config
	log          *slog.Logger

	mu              sync.Mutex
	state           State
	photoIndex      int
	turn            int
	found           relationship.Set
	lastFingerprint string
	pendingSpeech   []byte
	closingSpoken   bool
}

func New(d *deck.Deck, instructions string, recognizer stt.Recognizer, generator llm.Generator, synth tts.Synthesizer, shaper *speech.Shaper, cfg Config, log *slog.Logger) *Session {
	return &Session{
		id:           uuid.NewString(),
		deck:         d,
		instructions: instructions,
		recognizer:   recognizer,
		generator:    generator,
		synth:        synth,
		shaper:       shaper,
		cfg:          cfg,
		log:          log.With(slog.String("component", "session")),
		state:        StateAwaitingGreeting,
		found:        make(relationship.Set),
	}
}

// Fingerprint derives the dedup key for a captured utterance.
func Fingerprint(audio []byte) string {
	return strconv.FormatUint(xxhash.Sum64(audio), 16)
}

func (s *Session) ID() string { return s.id }

// Voice reports the synthesis voice replies are rendered with.
func (s *Session) Voice() string { return s.cfg.Voice }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		State:      s.state,
		PhotoIndex: s.photoIndex,
		DeckSize:   s.deck.Size(),
		Turn:       s.turn,
		Found:      s.found.Strings(),
	}
}

// Greet produces the opening utterance for the current photo, or the one-time
// closing celebration when the deck is exhausted. Returns (nil, nil) when
// there is nothing left to say.
func (s *Session) Greet(ctx context.Context) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAwaitingGreeting:
		photo := s.deck.Photo(s.photoIndex)
		s.turn = 1
		s.found = make(relationship.Set)
		text := photo.Opening()
		s.say(ctx, s.shaper.Greeting(text))
		s.state = StateAwaitingInput
		return &Reply{
			Text:       text,
			Phase:      pacing.Opening,
			PhotoIndex: s.photoIndex,
			Turn:       s.turn,
		}, nil
	case StateCompleted:
		if s.closingSpoken {
			return nil, nil
		}
		s.closingSpoken = true
		text := fmt.Sprintf("Yay! All done! Great job %s! You did so well! I'm so proud of you!", s.cfg.UserName)
		s.say(ctx, s.shaper.Greeting(text))
		return &Reply{
			Text:       text,
			Phase:      pacing.Celebrating,
			PhotoIndex: s.photoIndex,
			Completed:  true,
		}, nil
	default:
		return nil, ErrNotAccepting
	}
}

// SubmitUtterance runs one spoken turn: dedup, transcribe, classify, reply.
// A repeated fingerprint is stale re-delivery of already-captured audio and
// is silently ignored: (nil, nil), no state change.
func (s *Session) SubmitUtterance(ctx context.Context, pcm []byte, fingerprint string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingInput {
		return nil, ErrNotAccepting
	}
	if fingerprint != "" && fingerprint == s.lastFingerprint {
		return nil, nil
	}
	s.lastFingerprint = fingerprint
	s.state = StateProcessing

	heard := FillerUtterance
	result, err := s.recognizer.Transcribe(ctx, pcm)
	if err != nil {
		s.log.Warn("transcription failed, using filler utterance", slogError(err))
	} else if strings.TrimSpace(result.Text) != "" {
		heard = strings.TrimSpace(result.Text)
	}

	truth := s.deck.GroundTruth(s.photoIndex)
	correct := relationship.IsCorrect(heard, truth)
	for _, label := range relationship.Matches(heard, truth) {
		s.found.Add(label)
	}
	return s.process(ctx, heard, correct), nil
}

// SubmitSelection runs one touch turn. The label equality check replaces the
// classifier; phase and advance logic are identical to the spoken path.
func (s *Session) SubmitSelection(ctx context.Context, label relationship.Label, fingerprint string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingInput {
		return nil, ErrNotAccepting
	}
	if fingerprint != "" && fingerprint == s.lastFingerprint {
		return nil, nil
	}
	s.lastFingerprint = fingerprint
	s.state = StateProcessing

	truth := s.deck.GroundTruth(s.photoIndex)
	correct := truth.Has(label)
	if correct {
		s.found.Add(label)
	}
	return s.process(ctx, string(label), correct), nil
}

// process runs the shared turn body with s.mu held. The turn counter is
// incremented before phase and advance evaluation, so the photo's opening
// counts as turn one and the ceiling check sees the turn being produced.
func (s *Session) process(ctx context.Context, heard string, correct bool) *Reply {
	s.turn++
	photo := s.deck.Photo(s.photoIndex)
	truth := s.deck.GroundTruth(s.photoIndex)

	pt := pacing.Turn{
		Number:     s.turn,
		Correct:    correct,
		FoundCount: s.found.Len(),
		TruthCount: truth.Len(),
	}
	phase := pacing.BuildPhase(pt, s.cfg.MinTurns, s.cfg.MaxTurns)

	system, user := pacing.BuildPrompt(pacing.PromptContext{
		Instructions:  s.instructions,
		CompanionName: s.cfg.CompanionName,
		UserName:      s.cfg.UserName,
		Description:   photo.Description,
		Heard:         heard,
		Turn:          pt,
		Phase:         phase,
		People:        truth.Strings(),
	})

	fallback := false
	text, err := s.generator.Generate(ctx, llm.Request{
		System:      system,
		Prompt:      user,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.log.Warn("generation failed, using fallback phrase", slogError(err))
	}
	if strings.TrimSpace(text) == "" {
		fallback = true
		text = fallbackPhrase(correct, heard)
	}

	s.say(ctx, s.shaper.Reply(text))

	// Advance gate: the ceiling is unconditional; the wrap-up phrase in
	// generated text is one advisory signal, never the sole condition.
	advance := s.turn >= s.cfg.MaxTurns ||
		(s.turn >= s.cfg.MinTurns && pacing.SignalsWrapUp(text)) ||
		(s.found.Len() >= truth.Len() && s.turn >= 3)

	reply := &Reply{
		Text:       text,
		Phase:      phase,
		PhotoIndex: s.photoIndex,
		Turn:       s.turn,
		Heard:      heard,
		Correct:    correct,
		Found:      s.found.Strings(),
		Fallback:   fallback,
	}

	if advance {
		reply.Advanced = true
		s.advance()
		reply.Completed = s.state == StateCompleted
	} else {
		s.state = StateAwaitingInput
	}
	return reply
}

// advance moves to the next photo or completes the session. Caller holds s.mu.
func (s *Session) advance() {
	s.photoIndex++
	s.turn = 0
	s.found = make(relationship.Set)
	if s.photoIndex >= s.deck.Size() {
		s.state = StateCompleted
		return
	}
	s.state = StateAwaitingGreeting
}

// Skip force-advances past the current photo without a processed turn.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return ErrNotAccepting
	}
	s.advance()
	return nil
}

// Reset restores the session to its initial values and returns to the first
// photo's greeting. This is the only exit from the completed state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAwaitingGreeting
	s.photoIndex = 0
	s.turn = 0
	s.found = make(relationship.Set)
	s.lastFingerprint = ""
	s.pendingSpeech = nil
	s.closingSpoken = false
}

// ConsumeSpeech drains the single-slot speech mailbox: at most one unplayed
// payload, consumed exactly once.
func (s *Session) ConsumeSpeech() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio := s.pendingSpeech
	s.pendingSpeech = nil
	return audio
}

// say synthesizes shaped text into the pending-speech slot. Empty shaped text
// means nothing to speak; synthesis failure degrades the turn to text-only.
// Either way the slot is overwritten, never queued.
func (s *Session) say(ctx context.Context, shaped string) {
	if shaped == "" {
		s.pendingSpeech = nil
		return
	}
	audio, err := s.synth.Synthesize(ctx, tts.Request{Text: shaped, Voice: s.cfg.Voice, Speed: s.cfg.Speed})
	if err != nil {
		s.log.Warn("synthesis failed, continuing without audio", slogError(err))
		s.pendingSpeech = nil
		return
	}
	s.pendingSpeech = audio
}

func fallbackPhrase(correct bool, heard string) string {
	if correct {
		return fmt.Sprintf("Yay! You see %s! Who else?", heard)
	}
	return "Mmm, good try! Who else do you see?"
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
