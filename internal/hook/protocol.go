package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type jsonProtocol struct{}

// NewProtocol returns the stdin/stdout JSON protocol.
func NewProtocol() Protocol {
	return jsonProtocol{}
}

// ReadInput decodes a single hook JSON object. Empty input, non-object JSON
// and payloads over MaxInputBytes are rejected with ErrHookInvalidInput.
func (jsonProtocol) ReadInput(r io.Reader) (*HookInput, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrHookInvalidInput, err)
	}
	if len(data) > MaxInputBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrHookInvalidInput, MaxInputBytes)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrHookInvalidInput)
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrHookInvalidInput)
	}

	var input HookInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHookInvalidInput, err)
	}
	return &input, nil
}

// WriteOutput writes output as one JSON line. A nil output writes {}.
func (jsonProtocol) WriteOutput(w io.Writer, output *HookOutput) error {
	if output == nil {
		output = &HookOutput{}
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("hook: marshal output: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("hook: write output: %w", err)
	}
	return nil
}
