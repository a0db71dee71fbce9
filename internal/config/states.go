package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"cfetariff/internal/tariff"
)

// DefaultStatesFile is the state mapping shipped next to the binary.
const DefaultStatesFile = "estados_dict.json"

// ErrNoStates is returned when nothing is left to process.
var ErrNoStates = errors.New("config: no states to process")

// LoadStates reads a {"<id>": "<name>"} object keeping the key order of the
// file, which is the order states are processed in.
func LoadStates(path string) ([]tariff.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state mapping: %w", err)
	}
	defer f.Close()

	states, err := DecodeStates(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return states, nil
}

// DecodeStates parses a state mapping from r.
func DecodeStates(r io.Reader) ([]tariff.State, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read state mapping: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("state mapping must be a JSON object")
	}

	var states []tariff.State
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read state id: %w", err)
		}
		id, _ := tok.(string)

		var name string
		if err := dec.Decode(&name); err != nil {
			return nil, fmt.Errorf("state %q: name must be a string: %w", id, err)
		}
		if id == "" || name == "" {
			return nil, fmt.Errorf("state %q has an empty id or name", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("state %q is listed twice", id)
		}
		seen[id] = true
		states = append(states, tariff.State{ID: id, Name: name})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read state mapping: %w", err)
	}
	return states, nil
}

// SkipStates drops the first offset states, for resuming a partial run.
func SkipStates(states []tariff.State, offset int) ([]tariff.State, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d", offset)
	}
	if offset >= len(states) {
		return nil, fmt.Errorf("offset %d skips all %d states: %w", offset, len(states), ErrNoStates)
	}
	return states[offset:], nil
}
