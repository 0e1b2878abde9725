package interview

import "fmt"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerCandidate   Speaker = "candidate"
	SpeakerInterviewer Speaker = "interviewer"
)

// ChatRole maps a speaker onto the chat completion role vocabulary.
func (s Speaker) ChatRole() string {
	if s == SpeakerInterviewer {
		return "assistant"
	}
	return "user"
}

// Label is the speaker name used in evaluation transcripts.
func (s Speaker) Label() string {
	if s == SpeakerInterviewer {
		return "Interviewer"
	}
	return "Candidate"
}

// Turn is one utterance in the conversation. Immutable once appended;
// history order is the sole timeline of record.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// History is the ordered, append-only turn record of a session.
type History []Turn

// Tail returns the most recent n turns, bounding model input size.
func (h History) Tail(n int) History {
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[len(h)-n:]
}

// Context holds the interview setup declared by the client.
type Context struct {
	Role       string `json:"role"`
	Difficulty string `json:"difficulty"`
	Notes      string `json:"notes,omitempty"`
	AIVoice    string `json:"aiVoice,omitempty"`
}

// RoleOrDefault returns the declared role, or a generic placeholder when
// the client never named one.
func (c Context) RoleOrDefault() string {
	if c.Role == "" {
		return "candidate"
	}
	return c.Role
}

// Greeting derives the deterministic interviewer opening line for a role.
func Greeting(role string) string {
	return fmt.Sprintf("Hello! I'll be conducting your %s interview today. Let's begin. Tell me about yourself and your experience.", role)
}

// PlaceholderTranscript substitutes for a segment that produced no usable
// transcript, so the turn never fails.
const PlaceholderTranscript = "(couldn't transcribe)"

// Scores are the numeric sub-scores of a post-call evaluation, 0-100.
type Scores struct {
	Communication   int `json:"communication"`
	TechnicalSkills int `json:"technicalSkills"`
	ProblemSolving  int `json:"problemSolving"`
	Confidence      int `json:"confidence"`
	Clarity         int `json:"clarity"`
	Overall         int `json:"overall"`
}

// Feedback is the qualitative half of an evaluation.
type Feedback struct {
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Improvements     []string `json:"improvements"`
	NextFocusAreas   []string `json:"nextFocusAreas"`
	DetailedFeedback string   `json:"detailedFeedback"`
}

// Evaluation is the structured post-call performance result.
type Evaluation struct {
	Scores   Scores   `json:"scores"`
	Feedback Feedback `json:"feedback"`
}

// DefaultEvaluation is the neutral result used when the model output is
// missing or unparsable. The evaluation pipeline always produces a result.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		Scores: Scores{
			Communication:   70,
			TechnicalSkills: 65,
			ProblemSolving:  70,
			Confidence:      68,
			Clarity:         72,
			Overall:         69,
		},
		Feedback: Feedback{
			Strengths:        []string{"Engaged in conversation", "Attempted to answer questions"},
			Weaknesses:       []string{"More practice needed", "Could improve technical depth"},
			Improvements:     []string{"Practice more interviews", "Study core concepts", "Work on communication"},
			NextFocusAreas:   []string{"Technical fundamentals", "Problem-solving practice", "Communication skills"},
			DetailedFeedback: "Good effort in the interview. Continue practicing to improve your skills.",
		},
	}
}
