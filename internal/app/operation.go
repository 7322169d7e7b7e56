package app

import "time"

// Operation tracks a single CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	ID        string
	Command   string
	Campaign  string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation creates an operation for command, started at now.
func NewOperation(command string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405.000Z"),
		Command:   command,
		StartedAt: now,
		Status:    "success",
	}
}

// Finish records the outcome of the operation.
func (op *Operation) Finish(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Mutating reports whether the command writes campaign state.
func (op *Operation) Mutating() bool {
	switch op.Command {
	case "campaign create", "campaign branch", "campaign repair-log", "campaign recover", "campaign load",
		"turn begin", "turn record", "turn commit", "turn rollback", "turn undo":
		return true
	}
	return false
}
