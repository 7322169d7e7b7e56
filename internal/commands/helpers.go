package commands

import (
	"encoding/json"
	"fmt"
	"math"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

func decode[T any](payload json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, turn.WrapError(turn.CodeValidationFailed, "record", err, "decoding payload")
	}
	return &v, nil
}

// num reads a numeric field. Entities read back from the store carry
// float64; entities built in the same handler may carry ints.
func num(e state.Entity, field string) float64 {
	switch v := e[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// mustGet loads an entity or fails with not_found.
func mustGet(tx turn.StateTx, kind, id string) (state.Entity, error) {
	e, ok, err := tx.Get(kind, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, turn.NewError(turn.CodeNotFound, "record", "%s %s not found", kind, id).
			WithDetails(map[string]any{"kind": kind, "id": id})
	}
	return e, nil
}

// setIf copies optional payload fields onto an entity.
func setIf[T any](e state.Entity, field string, v *T) {
	if v != nil {
		e[field] = *v
	}
}

func rejected(reason string, format string, args ...any) error {
	return turn.NewError(turn.CodeValidation, "record", format, args...).
		WithDetails(map[string]any{"reason": reason})
}

func ownerKey(ownerType, ownerID string) string {
	return fmt.Sprintf("%s:%s", ownerType, ownerID)
}
