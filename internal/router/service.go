// Package router is the bus-facing surface of the runtime: it consumes
// device input subjects, drives the session state machine one turn at a
// time, and broadcasts replies and synthesized speech back onto the bus.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/keepsakelabs/keepsake-core/internal/bus"
	"github.com/keepsakelabs/keepsake-core/internal/eventstore"
	"github.com/keepsakelabs/keepsake-core/internal/protocol"
	"github.com/keepsakelabs/keepsake-core/internal/relationship"
	"github.com/keepsakelabs/keepsake-core/internal/session"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Service struct {
	bus     *bus.Client
	session *session.Session
	store   *eventstore.Store
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	subsMu sync.Mutex
	subs   []*nats.Subscription

	turnCounter     metric.Int64Counter
	fallbackCounter metric.Int64Counter
	turnLatency     metric.Float64Histogram
}

func NewService(parent context.Context, busClient *bus.Client, sess *session.Session, store *eventstore.Store, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		bus:     busClient,
		session: sess,
		store:   store,
		logger:  logger.With(slog.String("component", "router")),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	meter := otel.Meter("github.com/keepsakelabs/keepsake-core/runtime")
	var err error
	if s.turnCounter, err = meter.Int64Counter("keepsake.turns",
		metric.WithDescription("Processed conversation turns")); err != nil {
		s.logger.Warn("failed to create turn counter", slogError(err))
	}
	if s.fallbackCounter, err = meter.Int64Counter("keepsake.fallbacks",
		metric.WithDescription("Turns answered with a local fallback phrase")); err != nil {
		s.logger.Warn("failed to create fallback counter", slogError(err))
	}
	if s.turnLatency, err = meter.Float64Histogram("keepsake.turn.latency_ms",
		metric.WithDescription("End-to-end turn processing latency"),
		metric.WithUnit("ms")); err != nil {
		s.logger.Warn("failed to create latency histogram", slogError(err))
	}
}

// Start subscribes to the device input subjects and speaks the opening for
// the first photo.
func (s *Service) Start() error {
	conn := s.bus.Conn()
	for subject, handler := range map[string]nats.MsgHandler{
		protocol.SubjectUtterance: s.handleUtterance,
		protocol.SubjectSelection: s.handleSelection,
		protocol.SubjectControl:   s.handleControl,
	} {
		sub, err := conn.Subscribe(subject, handler)
		if err != nil {
			s.Close()
			return err
		}
		s.subsMu.Lock()
		s.subs = append(s.subs, sub)
		s.subsMu.Unlock()
	}

	if err := s.store.AppendSession(s.ctx, s.session.ID(), s.session.Snapshot().DeckSize); err != nil {
		s.logger.Warn("failed to record session", slogError(err))
	}
	s.greet()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.subsMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subsMu.Unlock()
	for _, sub := range subs {
		_ = sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs) == 3
}

func (s *Service) handleUtterance(msg *nats.Msg) {
	var utt protocol.Utterance
	if err := json.Unmarshal(msg.Data, &utt); err != nil {
		s.logger.Warn("invalid utterance message", slogError(err))
		return
	}
	fingerprint := utt.Fingerprint
	if fingerprint == "" {
		fingerprint = session.Fingerprint(utt.PCM)
	}

	start := time.Now()
	reply, err := s.session.SubmitUtterance(s.ctx, utt.PCM, fingerprint)
	if err != nil {
		s.logger.Warn("utterance rejected", slogError(err))
		return
	}
	if reply == nil {
		s.logger.Debug("duplicate utterance dropped", slog.String("fingerprint", fingerprint))
		return
	}
	s.recordTurn(reply, "voice", time.Since(start))
	s.publishReply(reply, utt.DeviceID, eventstore.EventTurn)
	s.followUp(reply)
}

func (s *Service) handleSelection(msg *nats.Msg) {
	var sel protocol.Selection
	if err := json.Unmarshal(msg.Data, &sel); err != nil {
		s.logger.Warn("invalid selection message", slogError(err))
		return
	}
	label, ok := relationship.Parse(sel.Label)
	if !ok {
		s.logger.Warn("unknown relationship label", slog.String("label", sel.Label))
		return
	}

	start := time.Now()
	reply, err := s.session.SubmitSelection(s.ctx, label, sel.Fingerprint)
	if err != nil {
		s.logger.Warn("selection rejected", slogError(err))
		return
	}
	if reply == nil {
		return
	}
	s.recordTurn(reply, "touch", time.Since(start))
	s.publishReply(reply, sel.DeviceID, eventstore.EventTurn)
	s.followUp(reply)
}

func (s *Service) handleControl(msg *nats.Msg) {
	var ctl protocol.Control
	if err := json.Unmarshal(msg.Data, &ctl); err != nil {
		s.logger.Warn("invalid control message", slogError(err))
		return
	}
	switch ctl.Action {
	case protocol.ControlGreet:
		s.greet()
	case protocol.ControlNext:
		if err := s.session.Skip(); err != nil {
			s.logger.Warn("next photo rejected", slogError(err))
			return
		}
		s.appendEvent(eventstore.Event{Type: eventstore.EventSkip, DeviceID: ctl.DeviceID})
		s.greet()
	case protocol.ControlReset:
		s.session.Reset()
		s.appendEvent(eventstore.Event{Type: eventstore.EventReset, DeviceID: ctl.DeviceID})
		s.greet()
	default:
		s.logger.Warn("unknown control action", slog.String("action", ctl.Action))
	}
}

// greet speaks the current photo's opening, or the one-time closing
// celebration once the deck is done.
func (s *Service) greet() {
	reply, err := s.session.Greet(s.ctx)
	if err != nil {
		s.logger.Warn("greeting rejected", slogError(err))
		return
	}
	if reply == nil {
		return
	}
	kind := eventstore.EventGreeting
	if reply.Completed {
		kind = eventstore.EventClosing
	}
	s.publishReply(reply, "", kind)
}

// followUp chains the next photo's opening (or the closing celebration)
// directly after an advancing turn, so devices never have to ask for it.
func (s *Service) followUp(reply *session.Reply) {
	if reply.Advanced {
		s.greet()
	}
}

func (s *Service) publishReply(reply *session.Reply, deviceID, eventType string) {
	out := protocol.Reply{
		Text:       reply.Text,
		Phase:      string(reply.Phase),
		PhotoIndex: reply.PhotoIndex,
		Turn:       reply.Turn,
		Heard:      reply.Heard,
		Correct:    reply.Correct,
		Found:      reply.Found,
		Advanced:   reply.Advanced,
		Completed:  reply.Completed,
		Fallback:   reply.Fallback,
		Timestamp:  time.Now().UTC(),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		s.logger.Warn("failed to encode reply", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectReply, payload); err != nil {
		s.logger.Warn("failed to publish reply", slogError(err))
	}

	if audio := s.session.ConsumeSpeech(); len(audio) > 0 {
		s.publishAudio(audio)
	}

	evt := eventstore.Event{
		SessionID:  s.session.ID(),
		DeviceID:   deviceID,
		Type:       eventType,
		PhotoIndex: reply.PhotoIndex,
		Turn:       reply.Turn,
		Payload:    payload,
	}
	s.appendEvent(evt)
	if reply.Advanced {
		s.appendEvent(eventstore.Event{
			Type:       eventstore.EventAdvance,
			DeviceID:   deviceID,
			PhotoIndex: reply.PhotoIndex,
			Turn:       reply.Turn,
		})
	}
}

// replyAudio stamps synthesized speech with the voice it was rendered in.
func (s *Service) replyAudio(audio []byte) protocol.ReplyAudio {
	return protocol.ReplyAudio{
		Voice:     s.session.Voice(),
		Audio:     audio,
		Timestamp: time.Now().UTC(),
	}
}

func (s *Service) publishAudio(audio []byte) {
	payload, err := json.Marshal(s.replyAudio(audio))
	if err != nil {
		s.logger.Warn("failed to encode reply audio", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectReplyAudio, payload); err != nil {
		s.logger.Warn("failed to publish reply audio", slogError(err))
	}
}

func (s *Service) appendEvent(evt eventstore.Event) {
	if evt.SessionID == "" {
		evt.SessionID = s.session.ID()
	}
	if err := s.store.AppendEvent(s.ctx, evt); err != nil {
		s.logger.Warn("failed to append timeline event", slogError(err))
	}
}

func (s *Service) recordTurn(reply *session.Reply, input string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("input", input),
		attribute.String("phase", string(reply.Phase)),
		attribute.Bool("correct", reply.Correct),
	)
	if s.turnCounter != nil {
		s.turnCounter.Add(s.ctx, 1, attrs)
	}
	if reply.Fallback && s.fallbackCounter != nil {
		s.fallbackCounter.Add(s.ctx, 1, metric.WithAttributes(attribute.String("input", input)))
	}
	if s.turnLatency != nil {
		s.turnLatency.Record(s.ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
