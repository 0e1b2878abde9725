package archive

import (
	"context"
	"encoding/json"
	"time"
)

// Turn is one archived conversational exchange entry.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Record is a completed interview: the full transcript plus the final
// evaluation. Live session state is never persisted; records exist only
// after end_call.
type Record struct {
	ID         string          `json:"id"`
	Role       string          `json:"role"`
	Difficulty string          `json:"difficulty"`
	Notes      string          `json:"notes,omitempty"`
	Turns      []Turn          `json:"turns"`
	Evaluation json.RawMessage `json:"evaluation"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at"`
}

// Store persists and retrieves completed interviews.
type Store interface {
	SaveInterview(ctx context.Context, record Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
