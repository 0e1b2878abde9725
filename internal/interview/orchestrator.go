package interview

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/heetsz/Parakh.ai/internal/archive"
	"github.com/heetsz/Parakh.ai/internal/observability"
	"github.com/heetsz/Parakh.ai/internal/protocol"
)

const rateLimitNotice = "Text-to-speech rate limit reached. Please try again in a moment."

// Orchestrator drives interview sessions: it dispatches inbound units,
// runs the transcribe/respond/synthesize pipeline per turn, and applies
// the failure policy. One RunConnection loop per websocket; sessions
// never share mutable state beyond the credential pool.
type Orchestrator struct {
	transcriber Transcriber
	replies     ReplyGenerator
	evaluator   Evaluator
	synths      SynthesizerPool
	registry    *Registry
	store       archive.Store
	metrics     *observability.Metrics

	ttsModel     string
	defaultVoice string
	ttsFormat    string
}

func NewOrchestrator(
	transcriber Transcriber,
	replies ReplyGenerator,
	evaluator Evaluator,
	synths SynthesizerPool,
	registry *Registry,
	store archive.Store,
	metrics *observability.Metrics,
	ttsModel string,
	defaultVoice string,
	ttsFormat string,
) *Orchestrator {
	return &Orchestrator{
		transcriber:  transcriber,
		replies:      replies,
		evaluator:    evaluator,
		synths:       synths,
		registry:     registry,
		store:        store,
		metrics:      metrics,
		ttsModel:     ttsModel,
		defaultVoice: defaultVoice,
		ttsFormat:    ttsFormat,
	}
}

// NewSession creates per-connection state. The synthesis credential is
// assigned here, once for the session's lifetime.
func (o *Orchestrator) NewSession() *Session {
	return &Session{
		ID:        newSessionID(),
		State:     StateAwaitingContext,
		StartedAt: time.Now().UTC(),
		Voice:     o.defaultVoice,
		synth:     o.synths.Assign(),
	}
}

// RunConnection consumes inbound units until the channel closes, the
// context is cancelled, or the session receives end_call. It is the only
// goroutine that touches the session. Outbound is closed on return; the
// transport writer drains it.
func (o *Orchestrator) RunConnection(ctx context.Context, sess *Session, inbound <-chan any, outbound chan<- any) error {
	o.registry.Add(sess.ID)
	o.metrics.SessionEvents.WithLabelValues("created").Inc()
	o.metrics.ActiveSessions.Set(float64(o.registry.ActiveCount()))
	defer func() {
		sess.State = StateTerminated
		o.registry.Remove(sess.ID)
		o.metrics.SessionEvents.WithLabelValues("ended").Inc()
		o.metrics.ActiveSessions.Set(float64(o.registry.ActiveCount()))
		close(outbound)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case unit, ok := <-inbound:
			if !ok {
				return nil
			}
			switch u := unit.(type) {
			case protocol.AudioChunk:
				// Always legal, regardless of state.
				sess.AppendAudio(u.Data)
			case protocol.ControlMessage:
				o.dispatch(ctx, sess, outbound, u)
				if sess.State == StateTerminated {
					return nil
				}
			}
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, sess *Session, outbound chan<- any, msg protocol.ControlMessage) {
	switch msg.Type {
	case protocol.TypeInterviewContext:
		o.handleContext(ctx, sess, outbound, msg.Data)
	case protocol.TypeSegmentEnd, protocol.TypeFlush:
		o.runTurn(ctx, sess, outbound)
	case protocol.TypeEndCall:
		o.handleEndCall(ctx, sess, outbound)
	default:
		// Unknown control words are ignored; the receive loop continues.
	}
}

func (o *Orchestrator) handleContext(ctx context.Context, sess *Session, outbound chan<- any, data protocol.ContextData) {
	sess.Context = Context{
		Role:       data.Role,
		Difficulty: data.Difficulty,
		Notes:      data.Notes,
		AIVoice:    data.AIVoice,
	}
	if v := strings.TrimSpace(data.AIVoice); v != "" {
		sess.Voice = v
	}
	if sess.State == StateAwaitingContext {
		sess.State = StateActive
	}

	// A re-sent context overwrites fields and greets again; clients own
	// the dedupe.
	greeting := Greeting(sess.Context.RoleOrDefault())
	sess.Append(SpeakerInterviewer, greeting)
	o.send(ctx, outbound, protocol.AssistantText{
		Type:       protocol.TypeAssistantText,
		Transcript: "",
		Text:       greeting,
	})
	o.speak(ctx, sess, outbound, greeting)
}

// runTurn executes the turn pipeline for the audio buffered so far. Every
// step has a degraded outcome; the buffer is cleared no matter what.
func (o *Orchestrator) runTurn(ctx context.Context, sess *Session, outbound chan<- any) {
	start := time.Now()
	defer sess.ClearAudio()

	transcript := ""
	if audio := sess.AudioBytes(); len(audio) > 0 {
		transcript = o.transcriber.Transcribe(ctx, audio)
	}
	if strings.TrimSpace(transcript) == "" {
		transcript = PlaceholderTranscript
	}
	sess.Append(SpeakerCandidate, transcript)

	reply := o.replies.GenerateReply(ctx, sess.History(), sess.Context)
	sess.Append(SpeakerInterviewer, reply)

	// Text goes out first so the client renders the exchange before the
	// audio is ready. This ordering is part of the protocol contract.
	o.send(ctx, outbound, protocol.AssistantText{
		Type:       protocol.TypeAssistantText,
		Transcript: transcript,
		Text:       reply,
	})
	o.speak(ctx, sess, outbound, reply)

	o.metrics.ObserveTurnLatency(time.Since(start))
}

// speak synthesizes and emits one assistant line. Rate limits surface as
// a notice with no retry; other failures get exactly one retry with the
// default voice, then degrade to an empty-audio format frame.
func (o *Orchestrator) speak(ctx context.Context, sess *Session, outbound chan<- any, text string) {
	res, err := sess.synth.Synthesize(ctx, text, VoiceParams{
		Model:  o.ttsModel,
		Voice:  sess.Voice,
		Format: o.ttsFormat,
	})
	if err != nil {
		if errors.Is(err, ErrSynthesisRateLimited) {
			o.metrics.ProviderErrors.WithLabelValues("groq_tts", "rate_limited").Inc()
			o.send(ctx, outbound, protocol.RateLimitError{Type: protocol.TypeRateLimitError, Message: rateLimitNotice})
			return
		}
		o.metrics.ProviderErrors.WithLabelValues("groq_tts", "synthesis").Inc()
		log.Printf("[tts] synthesis failed, retrying with default voice: %v", err)

		res, err = sess.synth.Synthesize(ctx, text, VoiceParams{
			Model:  o.ttsModel,
			Voice:  o.defaultVoice,
			Format: o.ttsFormat,
		})
		if err != nil {
			if errors.Is(err, ErrSynthesisRateLimited) {
				o.metrics.ProviderErrors.WithLabelValues("groq_tts", "rate_limited").Inc()
				o.send(ctx, outbound, protocol.RateLimitError{Type: protocol.TypeRateLimitError, Message: rateLimitNotice})
				return
			}
			o.metrics.ProviderErrors.WithLabelValues("groq_tts", "synthesis").Inc()
			log.Printf("[tts] default-voice fallback failed: %v", err)
			res = SpeechResult{MIME: "audio/" + o.ttsFormat}
		}
	}

	o.send(ctx, outbound, protocol.AssistantAudio{Type: protocol.TypeAssistantAudio, AudioFormat: res.MIME})
	if len(res.Audio) > 0 {
		o.send(ctx, outbound, protocol.AudioFrame{Data: res.Audio})
	}
}

func (o *Orchestrator) handleEndCall(ctx context.Context, sess *Session, outbound chan<- any) {
	eval := o.evaluator.Evaluate(ctx, sess.History(), sess.Context)
	o.send(ctx, outbound, protocol.Evaluation{Type: protocol.TypeEvaluation, Result: eval})
	o.archiveSession(ctx, sess, eval)
	sess.State = StateTerminated
}

// archiveSession stores the finished interview. Best effort: a storage
// failure never disturbs the client-facing close sequence.
func (o *Orchestrator) archiveSession(ctx context.Context, sess *Session, eval Evaluation) {
	if o.store == nil {
		return
	}

	payload, err := json.Marshal(eval)
	if err != nil {
		log.Printf("[archive] marshal evaluation: %v", err)
		return
	}

	history := sess.History()
	turns := make([]archive.Turn, 0, len(history))
	for _, t := range history {
		turns = append(turns, archive.Turn{Speaker: string(t.Speaker), Text: t.Text})
	}

	record := archive.Record{
		ID:         sess.ID,
		Role:       sess.Context.Role,
		Difficulty: sess.Context.Difficulty,
		Notes:      sess.Context.Notes,
		Turns:      turns,
		Evaluation: payload,
		StartedAt:  sess.StartedAt,
		EndedAt:    time.Now().UTC(),
	}
	if err := o.store.SaveInterview(ctx, record); err != nil {
		log.Printf("[archive] save interview %s: %v", sess.ID, err)
	}
}

func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
		if t, ok := protocol.OutboundTypeOf(msg); ok {
			o.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
		}
	case <-ctx.Done():
	}
}
