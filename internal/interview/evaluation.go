package interview

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseEvaluation decodes the evaluator model output. Models sometimes
// wrap the JSON in markdown code fences despite instructions, so fences
// are stripped before decoding.
func parseEvaluation(raw string) (Evaluation, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var eval Evaluation
	if err := json.Unmarshal([]byte(text), &eval); err != nil {
		return Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	return eval, nil
}
