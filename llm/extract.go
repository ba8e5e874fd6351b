package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zero-day-ai/verdict"
)

// ExtractJSONObject decodes the span between the first '{' and the last '}'
// of s. Models often wrap JSON in prose or code fences; anything outside the
// span is ignored. Numbers decode as json.Number.
func ExtractJSONObject(s string) (map[string]any, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, verdict.NewValidationError("llm.ExtractJSONObject",
			fmt.Errorf("%w: no JSON object in model output", verdict.ErrMalformedOutput))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s[start : end+1])))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, verdict.NewValidationError("llm.ExtractJSONObject",
			fmt.Errorf("%w: %w", verdict.ErrMalformedOutput, err))
	}
	return obj, nil
}
