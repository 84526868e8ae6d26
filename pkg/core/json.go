package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for nil or empty JSON inputs
var ErrInvalidInput = errors.New("invalid input")

// JSONEncode encodes a value to JSON bytes (fail-fast)
func JSONEncode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: cannot encode nil value", ErrInvalidInput)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode failed: %w", err)
	}
	return data, nil
}

// JSONDecode decodes JSON bytes into v (fail-fast)
func JSONDecode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: cannot decode empty data", ErrInvalidInput)
	}
	if v == nil {
		return fmt.Errorf("%w: cannot decode into nil value", ErrInvalidInput)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	return nil
}
