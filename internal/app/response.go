package app

import (
	"encoding/json"
	"fmt"
	"io"

	"turnkeep/internal/turn"
)

// Envelope is the single JSON document every CLI command prints.
type Envelope struct {
	OK       bool           `json:"ok"`
	Command  string         `json:"command"`
	Data     any            `json:"data,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    string         `json:"error,omitempty"`
	Message  string         `json:"message,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// Success wraps the result of a command.
func Success(command string, data any, warnings ...string) *Envelope {
	if warnings == nil {
		warnings = []string{}
	}
	return &Envelope{OK: true, Command: command, Data: data, Warnings: warnings}
}

// Failure reports err by its code. Errors without a code are reported as io.
func Failure(command string, err error) *Envelope {
	code := turn.CodeOf(err)
	if code == "" {
		code = turn.CodeIO
	}
	return &Envelope{
		OK:      false,
		Command: command,
		Error:   string(code),
		Message: err.Error(),
		Details: turn.DetailsOf(err),
	}
}

// Write prints the envelope as indented JSON.
func (e *Envelope) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
