package domain

import (
	"encoding/json"
	"fmt"
)

// DecodeString reads a payload that must be a bare JSON string.
func DecodeString(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%w: expected string: %v", ErrInvalidPayload, err)
	}
	return s, nil
}

// DecodeLabel reads a display name or room name. Any string is taken as
// sent; only the empty string is refused, since it means "unset".
func DecodeLabel(data json.RawMessage) (string, error) {
	s, err := DecodeString(data)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty string", ErrInvalidPayload)
	}
	return s, nil
}
