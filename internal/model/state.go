package model

import (
	"encoding/json"
	"fmt"
)

// State of the model. Transitions only move forward.
type State int

const (
	StateUninitialized State = iota
	StateBootstrapped
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapped:
		return "bootstrapped"
	case StateTrained:
		return "trained"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTrained reports whether the model was fitted on real feedback.
func (s State) IsTrained() bool {
	return s == StateTrained
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "uninitialized", "":
		*s = StateUninitialized
	case "bootstrapped":
		*s = StateBootstrapped
	case "trained":
		*s = StateTrained
	default:
		return fmt.Errorf("unknown model state %q", name)
	}
	return nil
}
