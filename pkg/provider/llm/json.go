package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotJSON is returned by [DecodeJSON] when model output is not exactly one
// JSON value.
var ErrNotJSON = errors.New("llm: response is not valid JSON")

// StripCodeFence removes an optional markdown code fence (```json ... ```)
// that some models wrap around structured output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// DecodeJSON strips a code fence from content and decodes exactly one JSON
// value into v. Unknown object fields and trailing data are rejected.
func DecodeJSON(content string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(StripCodeFence(content))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", ErrNotJSON)
	}
	return nil
}
