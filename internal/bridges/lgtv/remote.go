package lgtv

import (
	"fmt"
	"strings"
	"time"
)

// Remote command defaults.
const (
	defaultNumRepeats = 1
	defaultDelaySecs  = 0.4
)

// Remote exposes power and raw command replay.
//
// Commands are tokens of the form category_action, e.g. "volume_up" or
// "input_hdmi1", sent exactly as written.
type Remote struct {
	id     string
	name   string
	handle *Handle
	sleep  Sleeper
}

// NewRemote creates the remote for an entry. A nil sleep uses time.Sleep.
func NewRemote(uniqueID string, h *Handle, sleep Sleeper) *Remote {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Remote{
		id:     EntityID(uniqueID, KindRemote),
		name:   EntityName(h.TVID()),
		handle: h,
		sleep:  sleep,
	}
}

func (r *Remote) ID() string   { return r.id }
func (r *Remote) Name() string { return r.name }
func (r *Remote) Kind() Kind   { return KindRemote }

// IsOn mirrors the handle's cached power flag; it does not query the set.
func (r *Remote) IsOn() bool {
	return r.handle.Status().On
}

// State returns {"state": "on"|"off", "is_on": bool}.
func (r *Remote) State() map[string]any {
	on := r.IsOn()
	state := "off"
	if on {
		state = "on"
	}
	return map[string]any{"state": state, "is_on": on}
}

// Update is a no-op; the power flag is refreshed by every exchange on the
// handle, including the media player's poll.
func (r *Remote) Update() error { return nil }

// Apply runs turn_on, turn_off or
// send_command{command, num_repeats, delay_secs}.
func (r *Remote) Apply(a Action) error {
	switch a.Name {
	case "turn_on":
		return send(r.handle, "power", "on")
	case "turn_off":
		return send(r.handle, "power", "off")
	case "send_command":
		commands, err := stringsParam(a.Params, "command")
		if err != nil {
			return err
		}
		repeats, ok, err := intParam(a.Params, "num_repeats")
		if err != nil {
			return err
		}
		if !ok {
			repeats = defaultNumRepeats
		}
		delaySecs, ok, err := floatParam(a.Params, "delay_secs")
		if err != nil {
			return err
		}
		if !ok {
			delaySecs = defaultDelaySecs
		}
		if delaySecs < 0 {
			return fmt.Errorf("%w: delay_secs must not be negative", ErrInvalidValue)
		}
		return r.SendCommand(commands, repeats, time.Duration(delaySecs*float64(time.Second)))
	}
	return fmt.Errorf("%w: %s does not support %q", ErrInvalidCommand, KindRemote, a.Name)
}

// SendCommand replays commands repeats times, strictly in order, sleeping
// delay after every request.
//
// Every token is checked before anything is sent. A set that does not
// acknowledge a command does not stop the replay; a request error does.
func (r *Remote) SendCommand(commands []string, repeats int, delay time.Duration) error {
	if repeats < 0 {
		return fmt.Errorf("%w: num_repeats must not be negative", ErrInvalidValue)
	}

	parsed := make([][2]string, 0, len(commands))
	for _, c := range commands {
		category, action, err := splitCommand(c)
		if err != nil {
			return err
		}
		parsed = append(parsed, [2]string{category, action})
	}

	for i := 0; i < repeats; i++ {
		for _, c := range parsed {
			if _, err := r.handle.Request(c[0], c[1]); err != nil {
				return err
			}
			r.sleep(delay)
		}
	}
	return nil
}

// splitCommand splits "category_action" into its two halves.
func splitCommand(token string) (string, string, error) {
	parts := strings.Split(token, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q is not category_action", ErrInvalidCommand, token)
	}
	return parts[0], parts[1], nil
}
