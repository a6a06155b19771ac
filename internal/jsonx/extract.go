// Package jsonx extracts JSON payloads from oracle text output. Oracles
// frequently wrap JSON in commentary or markdown fences; this package digs
// the object out so callers can parse it structurally.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject locates the JSON object inside response and unmarshals it
// into out. It tries, in order: the whole response, the response with
// markdown fences stripped, and the span between the first '{' and the last
// '}'. Arrays are out of scope — the oracle contracts in this module all
// exchange objects.
func ExtractObject(response string, out any) error {
	raw, err := extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

func extract(response string) (string, error) {
	candidate := stripFences(response)

	var probe any
	if json.Unmarshal([]byte(candidate), &probe) == nil {
		return candidate, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start != -1 && end > start {
		inner := candidate[start : end+1]
		if json.Unmarshal([]byte(inner), &probe) == nil {
			return inner, nil
		}
	}

	preview := response
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return "", fmt.Errorf("no JSON object in response: %q", preview)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
