package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	op := NewOperation("turn commit", now)

	if op.ID != "20240115T103000.000Z" {
		t.Errorf("ID = %q", op.ID)
	}
	if op.Command != "turn commit" {
		t.Errorf("Command = %q, want turn commit", op.Command)
	}
	if op.Status != "success" {
		t.Errorf("Status = %q, want success", op.Status)
	}

	op.Finish(nil)
	if op.Status != "success" {
		t.Errorf("Status after Finish(nil) = %q, want success", op.Status)
	}
	op.Finish(errors.New("boom"))
	if op.Status != "error" {
		t.Errorf("Status after Finish(err) = %q, want error", op.Status)
	}
}

func TestOperation_Mutating(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"turn begin", true},
		{"turn commit", true},
		{"campaign branch", true},
		{"turn diff", false},
		{"turn status", false},
		{"state get", false},
		{"archive verify", false},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			op := &Operation{Command: tt.command}
			if got := op.Mutating(); got != tt.want {
				t.Errorf("Mutating() = %v, want %v", got, tt.want)
			}
		})
	}
}
