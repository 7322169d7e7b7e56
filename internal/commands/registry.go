// Package commands maps command names to payload schemas and to the
// mutations they perform on live campaign state.
//
// Payloads are validated against a JSON Schema before they are staged, so a
// malformed payload never reaches the event log. The turn engine itself
// treats payloads as opaque.
package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"turnkeep/internal/turn"
)

// Handler turns a payload that passed schema validation into a mutation of
// live state.
type Handler func(payload json.RawMessage) (turn.Mutation, error)

type entry struct {
	schema  *jsonschema.Schema
	handler Handler
}

// Registry holds the known commands. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*entry)}
}

// Register compiles schemaJSON and adds the command. handler may be nil for
// commands that are only recorded.
func (r *Registry) Register(name, schemaJSON string, handler Handler) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("unmarshal schema for %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	loc := name + ".json"
	if err := c.AddResource(loc, doc); err != nil {
		return fmt.Errorf("add schema resource for %s: %w", name, err)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("command %s already registered", name)
	}
	r.commands[name] = &entry{schema: sch, handler: handler}
	return nil
}

// MustRegister is Register for built-in commands whose schemas are known to
// compile.
func (r *Registry) MustRegister(name, schemaJSON string, handler Handler) {
	if err := r.Register(name, schemaJSON, handler); err != nil {
		panic(err)
	}
}

// Validate checks payload against the command's schema.
func (r *Registry) Validate(command string, payload json.RawMessage) error {
	e, err := r.lookup(command)
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return turn.WrapError(turn.CodeValidationFailed, "record", err, "payload for %s is not valid JSON", command)
	}
	if err := e.schema.Validate(inst); err != nil {
		details := map[string]any{"command": command}
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			details["violations"] = violations(ve)
		}
		return turn.WrapError(turn.CodeValidationFailed, "record", err, "payload for %s does not match its schema", command).
			WithDetails(details)
	}
	return nil
}

// Mutation validates payload and returns the state change it describes. A
// command without a handler yields a nil mutation.
func (r *Registry) Mutation(command string, payload json.RawMessage) (turn.Mutation, error) {
	if err := r.Validate(command, payload); err != nil {
		return nil, err
	}
	e, err := r.lookup(command)
	if err != nil {
		return nil, err
	}
	if e.handler == nil {
		return nil, nil
	}
	return e.handler(payload)
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(command string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.commands[command]
	if !ok {
		return nil, turn.NewError(turn.CodeValidationFailed, "record", "unknown command %q", command).
			WithDetails(map[string]any{"command": command})
	}
	return e, nil
}

// violations flattens a validation error tree into "location: keyword"
// strings, leaves only.
func violations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, strings.Join(ve.ErrorKind.KeywordPath(), "/"))}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, violations(c)...)
	}
	return out
}

var _ turn.PayloadValidator = (*Registry)(nil)
