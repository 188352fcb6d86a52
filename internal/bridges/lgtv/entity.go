package lgtv

import (
	"encoding/json"
	"fmt"
)

// Kind is the entity type exposed to the platform.
type Kind string

const (
	// KindMediaPlayer is the full media player with volume and sources.
	KindMediaPlayer Kind = "media_player"

	// KindRemote replays raw (category, action) commands.
	KindRemote Kind = "remote"
)

// Action is one service call on an entity.
type Action struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Entity is a controllable projection of a set.
type Entity interface {
	// ID is stable across restarts: {unique_id}_{kind}.
	ID() string

	// Name is the display name.
	Name() string

	Kind() Kind

	// State returns a snapshot safe to marshal and compare.
	State() map[string]any

	// Update refreshes State from the set.
	Update() error

	// Apply performs an action, blocking until the set has answered.
	Apply(a Action) error
}

// EntityID builds an entity ID from an entry's unique ID and a kind.
func EntityID(uniqueID string, kind Kind) string {
	return uniqueID + "_" + string(kind)
}

// EntityName is the display name for the set with tvID.
func EntityName(tvID int) string {
	return fmt.Sprintf("LG TV RS232 %d", tvID)
}

// Parameter helpers. Values arrive either from Go callers or decoded JSON,
// where every number is a float64 and every list is []any.

func floatParam(params map[string]any, key string) (float64, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, true, fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
		return f, true, nil
	}
	return 0, true, fmt.Errorf("%w: %s must be a number", ErrInvalidValue, key)
}

func intParam(params map[string]any, key string) (int, bool, error) {
	f, ok, err := floatParam(params, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != float64(int(f)) {
		return 0, true, fmt.Errorf("%w: %s must be a whole number", ErrInvalidValue, key)
	}
	return int(f), true, nil
}

func boolParam(params map[string]any, key string) (bool, error) {
	raw, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: %s is required", ErrInvalidValue, key)
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, key)
	}
	return v, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidValue, key)
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
	}
	return v, nil
}

// stringsParam accepts a list of strings or a single string.
func stringsParam(params map[string]any, key string) ([]string, error) {
	switch v := params[key].(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain strings", ErrInvalidValue, key)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidValue, key)
	}
	return nil, fmt.Errorf("%w: %s must be a list of strings", ErrInvalidValue, key)
}

// send issues one command through h and reports a missing acknowledgement.
func send(h *Handle, category, action string) error {
	ok, err := h.Request(category, action)
	if err != nil {
		return err
	}
	return ackError(ok, category, action)
}
