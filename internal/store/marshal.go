package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalLoops converts loop records to JSON TEXT for storage.
// Field order is fixed by the struct, so equal records serialize equally.
func marshalLoops(loops []LoopRecord) (string, error) {
	if len(loops) == 0 {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(loops); err != nil {
		return "", fmt.Errorf("marshal loops: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalLoops parses JSON TEXT to loop records.
func unmarshalLoops(data string) ([]LoopRecord, error) {
	if data == "" || data == "[]" {
		return []LoopRecord{}, nil
	}
	var loops []LoopRecord
	if err := json.Unmarshal([]byte(data), &loops); err != nil {
		return nil, fmt.Errorf("unmarshal loops: %w", err)
	}
	return loops, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
