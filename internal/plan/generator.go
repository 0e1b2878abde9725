package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/heetsz/Parakh.ai/internal/groq"
)

// Spec describes the interview a client wants prepared.
type Spec struct {
	Title      string `json:"title,omitempty"`
	Role       string `json:"role"`
	Experience string `json:"experience,omitempty"`
	Type       string `json:"type,omitempty"`
	Difficulty string `json:"difficulty"`
	Resume     string `json:"resume,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Question is one generated interview question.
type Question struct {
	Question   string `json:"question"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}

// QuestionSet is a generated interview plan.
type QuestionSet struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Generator produces interview plans and titles via the LLM.
type Generator struct {
	client *groq.Client
	model  string
}

func NewGenerator(client *groq.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

const questionsSystemPrompt = "You are an expert interviewer generator. Given a job role, candidate experience level, " +
	"interview type, difficulty, and optional resume/notes, produce a JSON object with a concise title " +
	"and an array of 6-10 interview questions appropriate to the role and difficulty. " +
	"Return ONLY valid JSON with the schema: " +
	`{"title": string, "questions": [{"question": string, "topic": string, "difficulty": string}]}`

// GenerateQuestions builds a question plan for the spec. Model output
// that is not bare JSON is salvaged by extracting the first JSON object
// from the text.
func (g *Generator) GenerateQuestions(ctx context.Context, spec Spec) (QuestionSet, error) {
	raw, err := g.client.ChatCompletion(ctx, groq.ChatRequest{
		Model: g.model,
		Messages: []groq.ChatMessage{
			{Role: "system", Content: questionsSystemPrompt},
			{Role: "user", Content: specPrompt(spec)},
		},
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return QuestionSet{}, fmt.Errorf("generate questions: %w", err)
	}

	var set QuestionSet
	if err := json.Unmarshal([]byte(raw), &set); err == nil {
		return set, nil
	}
	snippet, ok := extractJSONObject(raw)
	if !ok {
		return QuestionSet{}, fmt.Errorf("generate questions: no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(snippet), &set); err != nil {
		return QuestionSet{}, fmt.Errorf("generate questions: decode extracted JSON: %w", err)
	}
	return set, nil
}

// GenerateTitle produces a short creative interview title, degrading to
// the deterministic fallback format on any failure.
func (g *Generator) GenerateTitle(ctx context.Context, spec Spec) string {
	fallback := FallbackTitle(spec)
	if !g.client.Configured() {
		return fallback
	}

	title, err := g.client.ChatCompletion(ctx, groq.ChatRequest{
		Model: g.model,
		Messages: []groq.ChatMessage{
			{Role: "system", Content: "You name mock interviews. Reply with a single short, catchy title (at most 8 words). No quotes, no extra text."},
			{Role: "user", Content: specPrompt(spec)},
		},
		Temperature: 0.8,
		MaxTokens:   30,
	})
	if err != nil {
		log.Printf("[plan] title generation failed: %v", err)
		return fallback
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return fallback
	}
	return title
}

// FallbackTitle is the deterministic non-LLM title format.
func FallbackTitle(spec Spec) string {
	role := strings.TrimSpace(spec.Role)
	if role == "" {
		role = "General"
	}
	difficulty := strings.TrimSpace(spec.Difficulty)
	if difficulty == "" {
		difficulty = "Medium"
	}
	return fmt.Sprintf("%s - %s Interview", role, difficulty)
}

func specPrompt(spec Spec) string {
	resume := spec.Resume
	if strings.TrimSpace(resume) == "" {
		resume = spec.Notes
	}
	return fmt.Sprintf("Role: %s\nExperience: %s\nType: %s\nDifficulty: %s\nResume/Notes: %s\n",
		spec.Role, spec.Experience, spec.Type, spec.Difficulty, resume)
}

// extractJSONObject finds the outermost object span in free-form text.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
