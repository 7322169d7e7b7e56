package diff

import (
	"encoding/json"
	"fmt"
	"strconv"

	"turnkeep/internal/state"
)

// Summarize renders the diff as short player-facing lines, in category
// order. after is consulted for context values such as max_hp.
func Summarize(d *Diff, after state.State) []string {
	lines := []string{}
	for _, c := range d.All() {
		lines = append(lines, summarizeChange(c, after))
	}
	return lines
}

func summarizeChange(c Change, after state.State) string {
	subject := c.Kind + " " + c.Entity
	if c.Field == "" {
		return fmt.Sprintf("%s %s", subject, c.Op)
	}

	if c.Field == "current_hp" && c.Op == OpChanged && c.Delta != nil {
		hp := formatValue(c.After)
		if e, ok := after.Get(c.Kind, c.Entity); ok {
			if maxHP, ok := e["max_hp"]; ok {
				hp += "/" + formatValue(maxHP)
			}
		}
		return fmt.Sprintf("%s HP %s (%s)", subject, hp, formatDelta(*c.Delta))
	}

	switch c.Op {
	case OpAdded:
		return fmt.Sprintf("%s %s = %s", subject, c.Field, formatValue(c.After))
	case OpRemoved:
		return fmt.Sprintf("%s %s removed (was %s)", subject, c.Field, formatValue(c.Before))
	default:
		line := fmt.Sprintf("%s %s %s -> %s", subject, c.Field, formatValue(c.Before), formatValue(c.After))
		if c.Delta != nil {
			line += " (" + formatDelta(*c.Delta) + ")"
		}
		return line
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	}
	if n, ok := number(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func formatDelta(d float64) string {
	s := strconv.FormatFloat(d, 'f', -1, 64)
	if d > 0 {
		return "+" + s
	}
	return s
}
