package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/heetsz/Parakh.ai/internal/groq"
)

const (
	// Recent-history window passed to the reply model, bounding input size.
	replyHistoryWindow = 10
	replyMaxTokens     = 160
	replyTemperature   = 0.6

	// Wider window for the post-call evaluation transcript.
	evalHistoryWindow = 50
	evalMaxTokens     = 2000
	evalTemperature   = 0.7
)

const replyFallback = "Can you elaborate more on your approach?"
const notConfiguredReply = "Please configure GROQ_API_KEY on the server."

// GroqTranscriber runs speech-to-text through the Whisper endpoint.
type GroqTranscriber struct {
	client *groq.Client
	model  string
}

func NewGroqTranscriber(client *groq.Client, model string) *GroqTranscriber {
	return &GroqTranscriber{client: client, model: model}
}

func (t *GroqTranscriber) Transcribe(ctx context.Context, audio []byte) string {
	if len(audio) == 0 || !t.client.Configured() {
		return ""
	}
	text, err := t.client.Transcribe(ctx, audio, t.model)
	if err != nil {
		log.Printf("[stt] transcription failed: %v", err)
		return ""
	}
	return text
}

// GroqReplyGenerator produces the next interviewer line.
type GroqReplyGenerator struct {
	client *groq.Client
	model  string
}

func NewGroqReplyGenerator(client *groq.Client, model string) *GroqReplyGenerator {
	return &GroqReplyGenerator{client: client, model: model}
}

func (g *GroqReplyGenerator) GenerateReply(ctx context.Context, recent History, ictx Context) string {
	if !g.client.Configured() {
		return notConfiguredReply
	}

	messages := []groq.ChatMessage{{Role: "system", Content: replySystemPrompt(ictx)}}
	for _, turn := range recent.Tail(replyHistoryWindow) {
		messages = append(messages, groq.ChatMessage{Role: turn.Speaker.ChatRole(), Content: turn.Text})
	}

	text, err := g.client.ChatCompletion(ctx, groq.ChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			log.Printf("[llm] reply generation failed: %v", err)
		}
		return replyFallback
	}
	return text
}

func replySystemPrompt(ictx Context) string {
	var b strings.Builder
	b.WriteString("You are a concise technical interviewer.")
	if strings.TrimSpace(ictx.Role) != "" {
		fmt.Fprintf(&b, " The interview is for a %s position; keep every question relevant to that role.", ictx.Role)
	}
	if strings.TrimSpace(ictx.Difficulty) != "" {
		fmt.Fprintf(&b, " Target %s difficulty.", ictx.Difficulty)
	}
	if strings.TrimSpace(ictx.Notes) != "" {
		fmt.Fprintf(&b, " Additional notes from the candidate: %s.", ictx.Notes)
	}
	b.WriteString(" Ask one follow-up question or provide brief feedback in under 2 sentences.")
	b.WriteString(" Respond only in English, regardless of the language the candidate uses.")
	return b.String()
}

// GroqSynthesizer runs text-to-speech for one assigned credential.
type GroqSynthesizer struct {
	client *groq.Client
}

func (s *GroqSynthesizer) Synthesize(ctx context.Context, text string, params VoiceParams) (SpeechResult, error) {
	mime := "audio/" + params.Format
	if strings.TrimSpace(text) == "" || !s.client.Configured() {
		return SpeechResult{MIME: mime}, nil
	}

	audio, mime, err := s.client.Speech(ctx, params.Model, params.Voice, text, params.Format)
	if err != nil {
		if errors.Is(err, groq.ErrRateLimited) {
			return SpeechResult{MIME: mime}, fmt.Errorf("synthesize: %w", ErrSynthesisRateLimited)
		}
		return SpeechResult{MIME: mime}, fmt.Errorf("synthesize: %w", err)
	}
	return SpeechResult{Audio: audio, MIME: mime}, nil
}

// GroqSynthesizerPool assigns one synthesis credential per session,
// rotating round-robin over the configured accounts.
type GroqSynthesizerPool struct {
	pool *groq.Pool
}

func NewGroqSynthesizerPool(pool *groq.Pool) *GroqSynthesizerPool {
	return &GroqSynthesizerPool{pool: pool}
}

func (p *GroqSynthesizerPool) Assign() Synthesizer {
	return &GroqSynthesizer{client: p.pool.Assign()}
}

// GroqEvaluator scores a finished conversation.
type GroqEvaluator struct {
	client *groq.Client
	model  string
}

func NewGroqEvaluator(client *groq.Client, model string) *GroqEvaluator {
	return &GroqEvaluator{client: client, model: model}
}

func (e *GroqEvaluator) Evaluate(ctx context.Context, history History, ictx Context) Evaluation {
	if !e.client.Configured() {
		return DefaultEvaluation()
	}

	raw, err := e.client.ChatCompletion(ctx, groq.ChatRequest{
		Model: e.model,
		Messages: []groq.ChatMessage{
			{Role: "system", Content: "You are an expert interview evaluator. Always respond with valid JSON only."},
			{Role: "user", Content: evaluationPrompt(history, ictx)},
		},
		Temperature: evalTemperature,
		MaxTokens:   evalMaxTokens,
	})
	if err != nil {
		log.Printf("[evaluate] completion failed: %v", err)
		return DefaultEvaluation()
	}

	eval, err := parseEvaluation(raw)
	if err != nil {
		log.Printf("[evaluate] unparsable model output: %v", err)
		return DefaultEvaluation()
	}
	return eval
}

func evaluationPrompt(history History, ictx Context) string {
	var lines []string
	for _, turn := range history.Tail(evalHistoryWindow) {
		lines = append(lines, turn.Speaker.Label()+": "+turn.Text)
	}

	role := ictx.Role
	if role == "" {
		role = "Software Engineer"
	}
	difficulty := ictx.Difficulty
	if difficulty == "" {
		difficulty = "Medium"
	}

	return fmt.Sprintf(`You are an expert interview evaluator. Analyze this %s interview at %s difficulty level.

CONVERSATION:
%s

Provide a comprehensive evaluation in the following JSON format (must be valid JSON):
{
  "scores": {
    "communication": <0-100>,
    "technicalSkills": <0-100>,
    "problemSolving": <0-100>,
    "confidence": <0-100>,
    "clarity": <0-100>,
    "overall": <0-100>
  },
  "feedback": {
    "strengths": ["strength1", "strength2", "strength3"],
    "weaknesses": ["weakness1", "weakness2"],
    "improvements": ["improvement1", "improvement2", "improvement3"],
    "nextFocusAreas": ["focus1", "focus2", "focus3"],
    "detailedFeedback": "A detailed paragraph explaining the overall performance"
  }
}

Provide honest, constructive feedback. Be specific with examples from the conversation.
Return ONLY valid JSON, no markdown formatting or extra text.`, role, difficulty, strings.Join(lines, "\n"))
}
