package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/heetsz/Parakh.ai/internal/archive"
	"github.com/heetsz/Parakh.ai/internal/observability"
	"github.com/heetsz/Parakh.ai/internal/protocol"
)

var metricsSeq atomic.Int64

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("parakh_test_interview_%d", metricsSeq.Add(1)))
}

type fakeTranscriber struct {
	text  string
	calls [][]byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) string {
	f.calls = append(f.calls, append([]byte(nil), audio...))
	return f.text
}

type fakeReplies struct {
	reply string
}

func (f *fakeReplies) GenerateReply(_ context.Context, _ History, _ Context) string {
	return f.reply
}

type fakeEvaluator struct {
	eval  Evaluation
	calls int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ History, _ Context) Evaluation {
	f.calls++
	return f.eval
}

// scriptedSynth returns the scripted error for each call in order; a nil
// entry (or running past the script) means success.
type scriptedSynth struct {
	script []error
	audio  []byte
	calls  []VoiceParams
}

func (s *scriptedSynth) Synthesize(_ context.Context, _ string, params VoiceParams) (SpeechResult, error) {
	s.calls = append(s.calls, params)
	idx := len(s.calls) - 1
	if idx < len(s.script) && s.script[idx] != nil {
		return SpeechResult{MIME: "audio/" + params.Format}, s.script[idx]
	}
	return SpeechResult{Audio: s.audio, MIME: "audio/" + params.Format}, nil
}

type staticPool struct {
	synth Synthesizer
}

func (p staticPool) Assign() Synthesizer { return p.synth }

type fixture struct {
	orchestrator *Orchestrator
	transcriber  *fakeTranscriber
	replies      *fakeReplies
	evaluator    *fakeEvaluator
	synth        *scriptedSynth
	store        *archive.InMemoryStore
}

func newFixture() *fixture {
	f := &fixture{
		transcriber: &fakeTranscriber{text: "I would shard the database"},
		replies:     &fakeReplies{reply: "How would you pick a shard key?"},
		evaluator:   &fakeEvaluator{eval: DefaultEvaluation()},
		synth:       &scriptedSynth{audio: []byte("wav-bytes")},
		store:       archive.NewInMemoryStore(),
	}
	f.orchestrator = NewOrchestrator(
		f.transcriber,
		f.replies,
		f.evaluator,
		staticPool{f.synth},
		NewRegistry(),
		f.store,
		newTestMetrics(),
		"playai-tts",
		"Fritz-PlayAI",
		"wav",
	)
	return f
}

// run feeds the units through a fresh connection loop and returns the
// session plus everything emitted, in order.
func (f *fixture) run(t *testing.T, units ...any) (*Session, []any) {
	t.Helper()

	sess := f.orchestrator.NewSession()
	inbound := make(chan any, len(units)+1)
	outbound := make(chan any, 256)
	for _, u := range units {
		inbound <- u
	}
	close(inbound)

	if err := f.orchestrator.RunConnection(context.Background(), sess, inbound, outbound); err != nil {
		t.Fatalf("RunConnection() error = %v", err)
	}

	var out []any
	for msg := range outbound {
		out = append(out, msg)
	}
	return sess, out
}

func audioChunk(s string) protocol.AudioChunk {
	return protocol.AudioChunk{Data: []byte(s)}
}

func control(t protocol.MessageType) protocol.ControlMessage {
	return protocol.ControlMessage{Type: t}
}

func contextMsg(role, difficulty, voice string) protocol.ControlMessage {
	return protocol.ControlMessage{
		Type: protocol.TypeInterviewContext,
		Data: protocol.ContextData{Role: role, Difficulty: difficulty, AIVoice: voice},
	}
}

func TestTurnPipelineConcatenatesFramesAndDrainsBuffer(t *testing.T) {
	f := newFixture()

	sess, out := f.run(t,
		contextMsg("Backend Engineer", "Hard", ""),
		audioChunk("chunk-1|"),
		audioChunk("chunk-2|"),
		audioChunk("chunk-3"),
		control(protocol.TypeSegmentEnd),
	)

	if len(f.transcriber.calls) != 1 {
		t.Fatalf("transcriber calls = %d, want 1", len(f.transcriber.calls))
	}
	if got := string(f.transcriber.calls[0]); got != "chunk-1|chunk-2|chunk-3" {
		t.Fatalf("transcribed audio = %q, want concatenation in arrival order", got)
	}
	if len(sess.AudioBytes()) != 0 {
		t.Fatalf("audio buffer not drained after turn: %d bytes left", len(sess.AudioBytes()))
	}

	var text *protocol.AssistantText
	for _, msg := range out {
		if m, ok := msg.(protocol.AssistantText); ok && m.Transcript != "" {
			text = &m
			break
		}
	}
	if text == nil {
		t.Fatalf("no assistant_text frame with transcript in output: %#v", out)
	}
	if text.Transcript != "I would shard the database" {
		t.Fatalf("Transcript = %q, want transcriber output", text.Transcript)
	}
	if text.Text != "How would you pick a shard key?" {
		t.Fatalf("Text = %q, want reply generator output", text.Text)
	}
}

func TestSegmentEndWithoutAudioUsesPlaceholderAndSkipsService(t *testing.T) {
	f := newFixture()

	_, out := f.run(t, control(protocol.TypeSegmentEnd))

	if len(f.transcriber.calls) != 0 {
		t.Fatalf("transcriber called %d times with empty buffer, want 0", len(f.transcriber.calls))
	}

	text, ok := out[0].(protocol.AssistantText)
	if !ok {
		t.Fatalf("first frame = %T, want AssistantText", out[0])
	}
	if text.Transcript != PlaceholderTranscript {
		t.Fatalf("Transcript = %q, want placeholder %q", text.Transcript, PlaceholderTranscript)
	}
}

func TestTextFrameAlwaysPrecedesAudioFrames(t *testing.T) {
	f := newFixture()

	_, out := f.run(t,
		audioChunk("pcm"),
		control(protocol.TypeSegmentEnd),
	)

	sawText := false
	for _, msg := range out {
		switch msg.(type) {
		case protocol.AssistantText:
			sawText = true
		case protocol.AssistantAudio, protocol.AudioFrame:
			if !sawText {
				t.Fatalf("audio frame emitted before assistant_text: %#v", out)
			}
		}
	}
	if !sawText {
		t.Fatalf("no assistant_text frame emitted")
	}
}

func TestRateLimitEmitsSingleNoticeAndNoRetry(t *testing.T) {
	f := newFixture()
	f.synth.script = []error{fmt.Errorf("synthesize: %w", ErrSynthesisRateLimited)}

	sess, out := f.run(t,
		audioChunk("pcm"),
		control(protocol.TypeSegmentEnd),
	)

	if len(f.synth.calls) != 1 {
		t.Fatalf("synthesizer calls = %d, want exactly 1 (no retry on rate limit)", len(f.synth.calls))
	}

	notices := 0
	for _, msg := range out {
		switch msg.(type) {
		case protocol.RateLimitError:
			notices++
		case protocol.AssistantAudio, protocol.AudioFrame:
			t.Fatalf("audio frame emitted despite rate limit: %#v", msg)
		}
	}
	if notices != 1 {
		t.Fatalf("rate_limit_error frames = %d, want 1", notices)
	}

	if len(sess.AudioBytes()) != 0 {
		t.Fatalf("audio buffer not drained after rate-limited turn")
	}
	if sess.State != StateTerminated {
		// The run helper closes inbound, which ends the loop; the session
		// must have stayed active through the rate-limited turn itself.
		t.Fatalf("State = %q, want terminated after loop exit", sess.State)
	}
}

func TestGenericSynthFailureRetriesOnceWithDefaultVoice(t *testing.T) {
	f := newFixture()
	// Greeting synthesis succeeds, first turn attempt fails generically,
	// the default-voice retry succeeds.
	f.synth.script = []error{nil, fmt.Errorf("boom")}

	_, out := f.run(t,
		contextMsg("SRE", "Medium", "Celeste-PlayAI"),
		audioChunk("pcm"),
		control(protocol.TypeSegmentEnd),
	)

	if len(f.synth.calls) != 3 {
		t.Fatalf("synthesizer calls = %d, want 3 (greeting + attempt + one retry)", len(f.synth.calls))
	}
	if got := f.synth.calls[1].Voice; got != "Celeste-PlayAI" {
		t.Fatalf("turn attempt voice = %q, want client preference", got)
	}
	if got := f.synth.calls[2].Voice; got != "Fritz-PlayAI" {
		t.Fatalf("retry voice = %q, want default voice", got)
	}

	// Retry succeeded, so the turn still carries audio.
	gotBinary := false
	for _, msg := range out {
		if frame, ok := msg.(protocol.AudioFrame); ok && string(frame.Data) == "wav-bytes" {
			gotBinary = true
		}
	}
	if !gotBinary {
		t.Fatalf("no binary audio frame after successful retry: %#v", out)
	}
}

func TestDoubleSynthFailureEmitsEmptyFormatFrame(t *testing.T) {
	f := newFixture()
	f.synth.script = []error{fmt.Errorf("boom"), fmt.Errorf("boom again")}

	_, out := f.run(t,
		audioChunk("pcm"),
		control(protocol.TypeSegmentEnd),
	)

	if len(f.synth.calls) != 2 {
		t.Fatalf("synthesizer calls = %d, want 2 (attempt + single retry)", len(f.synth.calls))
	}

	var sawFormat bool
	for i, msg := range out {
		switch msg.(type) {
		case protocol.AssistantAudio:
			sawFormat = true
			if i+1 < len(out) {
				if _, isBinary := out[i+1].(protocol.AudioFrame); isBinary {
					t.Fatalf("binary frame followed empty-audio format frame")
				}
			}
		case protocol.AudioFrame:
			t.Fatalf("binary audio frame emitted after double failure")
		}
	}
	if !sawFormat {
		t.Fatalf("no audio-format frame after double failure: %#v", out)
	}
}

func TestContextGreetsOnEveryOccurrenceAndOverwrites(t *testing.T) {
	f := newFixture()

	sess, out := f.run(t,
		contextMsg("Backend Engineer", "Hard", ""),
		contextMsg("Data Scientist", "Easy", ""),
	)

	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 greeting turns", len(history))
	}
	if !strings.Contains(history[0].Text, "Backend Engineer") {
		t.Fatalf("first greeting = %q, want reference to Backend Engineer", history[0].Text)
	}
	if !strings.Contains(history[1].Text, "Data Scientist") {
		t.Fatalf("second greeting = %q, want reference to Data Scientist", history[1].Text)
	}

	if sess.Context.Role != "Data Scientist" || sess.Context.Difficulty != "Easy" {
		t.Fatalf("Context = %+v, want fields overwritten by second message", sess.Context)
	}

	greetings := 0
	for _, msg := range out {
		if m, ok := msg.(protocol.AssistantText); ok && m.Transcript == "" {
			greetings++
		}
	}
	if greetings != 2 {
		t.Fatalf("greeting frames = %d, want 2", greetings)
	}
}

func TestEndCallAlwaysEmitsExactlyOneEvaluation(t *testing.T) {
	f := newFixture()

	sess, out := f.run(t,
		control(protocol.TypeEndCall),
		// Anything after end_call must not be processed.
		control(protocol.TypeSegmentEnd),
	)

	if f.evaluator.calls != 1 {
		t.Fatalf("evaluator calls = %d, want 1", f.evaluator.calls)
	}
	if sess.State != StateTerminated {
		t.Fatalf("State = %q, want %q", sess.State, StateTerminated)
	}

	evaluations := 0
	for _, msg := range out {
		switch msg.(type) {
		case protocol.Evaluation:
			evaluations++
		case protocol.AssistantText:
			t.Fatalf("turn processed after end_call")
		}
	}
	if evaluations != 1 {
		t.Fatalf("evaluation frames = %d, want 1", evaluations)
	}
}

func TestUnknownControlTypesAreIgnored(t *testing.T) {
	f := newFixture()

	sess, out := f.run(t,
		control(protocol.MessageType("ping")),
		control(protocol.MessageType("hello there")),
	)

	if len(out) != 0 {
		t.Fatalf("output = %#v, want none for unknown control words", out)
	}
	if len(sess.History()) != 0 {
		t.Fatalf("history mutated by unknown control words")
	}
}

func TestEndCallArchivesCompletedInterview(t *testing.T) {
	f := newFixture()

	_, _ = f.run(t,
		contextMsg("Backend Engineer", "Hard", ""),
		control(protocol.TypeSegmentEnd),
		control(protocol.TypeEndCall),
	)

	records, err := f.store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("archived records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Role != "Backend Engineer" || rec.Difficulty != "Hard" {
		t.Fatalf("record context = %q/%q, want Backend Engineer/Hard", rec.Role, rec.Difficulty)
	}
	if len(rec.Turns) != 3 {
		t.Fatalf("archived turns = %d, want 3 (greeting + candidate + reply)", len(rec.Turns))
	}
	var eval Evaluation
	if err := json.Unmarshal(rec.Evaluation, &eval); err != nil {
		t.Fatalf("archived evaluation not decodable: %v", err)
	}
	if eval.Scores.Overall != f.evaluator.eval.Scores.Overall {
		t.Fatalf("archived overall = %d, want %d", eval.Scores.Overall, f.evaluator.eval.Scores.Overall)
	}
}

// Mirrors the full conversation shape: context, two empty-audio turns,
// then end_call.
func TestFullSessionScenario(t *testing.T) {
	f := newFixture()

	sess, out := f.run(t,
		contextMsg("Backend Engineer", "Hard", ""),
		control(protocol.TypeSegmentEnd),
		control(protocol.TypeSegmentEnd),
		control(protocol.TypeEndCall),
	)

	history := sess.History()
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5 (greeting + 2 candidate + 2 interviewer)", len(history))
	}
	if history[0].Speaker != SpeakerInterviewer || !strings.Contains(history[0].Text, "Backend Engineer") {
		t.Fatalf("history[0] = %+v, want role-derived greeting", history[0])
	}
	for _, i := range []int{1, 3} {
		if history[i].Speaker != SpeakerCandidate || history[i].Text != PlaceholderTranscript {
			t.Fatalf("history[%d] = %+v, want placeholder candidate turn", i, history[i])
		}
	}

	last := out[len(out)-1]
	if _, ok := last.(protocol.Evaluation); !ok {
		t.Fatalf("last frame = %T, want Evaluation", last)
	}
	if sess.State != StateTerminated {
		t.Fatalf("State = %q, want %q", sess.State, StateTerminated)
	}
}

func TestSessionsGetRotatedCredentialsOncePerSession(t *testing.T) {
	f := newFixture()

	a := f.orchestrator.NewSession()
	b := f.orchestrator.NewSession()
	if a.ID == b.ID {
		t.Fatalf("sessions share an ID")
	}
	if a.State != StateAwaitingContext || b.State != StateAwaitingContext {
		t.Fatalf("new sessions state = %q/%q, want %q", a.State, b.State, StateAwaitingContext)
	}
	if a.synth == nil || b.synth == nil {
		t.Fatalf("sessions missing assigned synthesizer")
	}
}
