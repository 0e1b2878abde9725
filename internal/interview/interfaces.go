package interview

import (
	"context"
	"errors"
)

// ErrSynthesisRateLimited distinguishes capacity exhaustion at the speech
// provider from other synthesis failures. The orchestrator never retries
// the same credential after seeing it.
var ErrSynthesisRateLimited = errors.New("speech synthesis rate limited")

// Transcriber converts one recorded candidate segment to text. Failures
// and empty input degrade to an empty transcript; they are never surfaced
// as errors.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) string
}

// ReplyGenerator produces the next interviewer line from the recent
// conversation window and the interview context. Failures degrade to a
// fixed clarifying question; they are never surfaced as errors.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, recent History, ictx Context) string
}

// VoiceParams are the synthesis parameters for a single speech call.
type VoiceParams struct {
	Model  string
	Voice  string
	Format string
}

// SpeechResult is synthesized audio plus its announced mime type. Audio
// may be empty when the provider is unavailable or the input was blank.
type SpeechResult struct {
	Audio []byte
	MIME  string
}

// Synthesizer turns text into speech. A rate-limited provider is reported
// via ErrSynthesisRateLimited so the caller can branch on it; other
// errors propagate for the one-shot default-voice fallback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params VoiceParams) (SpeechResult, error)
}

// SynthesizerPool hands out a synthesizer credential per session,
// round-robin across the configured accounts.
type SynthesizerPool interface {
	Assign() Synthesizer
}

// Evaluator scores a finished conversation. It always produces a result;
// malformed model output degrades to DefaultEvaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, history History, ictx Context) Evaluation
}
