package lgtv

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
)

// Media player features, advertised in State as supported_features.
var mediaPlayerFeatures = []string{
	"turn_on",
	"turn_off",
	"volume_set",
	"volume_mute",
	"select_source",
}

// MediaPlayer exposes power, volume, mute and input selection.
//
// Volume is a level in [0, 1] mapped to the set's 0-100 scale.
type MediaPlayer struct {
	id     string
	name   string
	handle *Handle

	mu      sync.RWMutex
	on      bool
	volume  *float64
	muted   *bool
	source  string
	sources []string
}

// NewMediaPlayer creates the media player for an entry. The entity reads
// as off until the first Update.
func NewMediaPlayer(uniqueID string, h *Handle) *MediaPlayer {
	return &MediaPlayer{
		id:      EntityID(uniqueID, KindMediaPlayer),
		name:    EntityName(h.TVID()),
		handle:  h,
		sources: h.Status().Sources,
	}
}

func (m *MediaPlayer) ID() string   { return m.id }
func (m *MediaPlayer) Name() string { return m.name }
func (m *MediaPlayer) Kind() Kind   { return KindMediaPlayer }

// State returns the current attributes. Volume, mute and source are only
// reported while the set is on.
func (m *MediaPlayer) State() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := map[string]any{
		"state":              "off",
		"source_list":        slices.Clone(m.sources),
		"supported_features": slices.Clone(mediaPlayerFeatures),
	}
	if !m.on {
		return state
	}

	state["state"] = "on"
	if m.volume != nil {
		state["volume_level"] = *m.volume
	}
	if m.muted != nil {
		state["is_volume_muted"] = *m.muted
	}
	if m.source != "" {
		state["source"] = m.source
	}
	return state
}

// Update polls the set. While the set is off the last volume, mute and
// source are kept but not reported.
func (m *MediaPlayer) Update() error {
	if err := m.handle.Refresh(); err != nil {
		return err
	}
	s := m.handle.Status()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.on = s.On
	m.sources = s.Sources
	if s.On {
		level := float64(s.Volume) / 100
		muted := s.Muted
		m.volume = &level
		m.muted = &muted
		m.source = s.Input
	}
	return nil
}

// Apply runs turn_on, turn_off, set_volume{volume}, mute{mute} or
// select_source{source}.
//
// The command just sent is reflected locally even when the set does not
// acknowledge it; the next Update corrects any drift.
func (m *MediaPlayer) Apply(a Action) error {
	switch a.Name {
	case "turn_on":
		return m.setPower(true)
	case "turn_off":
		return m.setPower(false)
	case "set_volume":
		return m.setVolume(a.Params)
	case "mute":
		return m.setMute(a.Params)
	case "select_source":
		return m.selectSource(a.Params)
	}
	return fmt.Errorf("%w: %s does not support %q", ErrInvalidCommand, KindMediaPlayer, a.Name)
}

func (m *MediaPlayer) setPower(on bool) error {
	action := "off"
	if on {
		action = "on"
	}
	ok, err := m.handle.Request("power", action)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.on = on
	m.mu.Unlock()

	return ackError(ok, "power", action)
}

func (m *MediaPlayer) setVolume(params map[string]any) error {
	v, present, err := floatParam(params, "volume")
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("%w: volume is required", ErrInvalidValue)
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: volume %v outside 0..1", ErrInvalidValue, v)
	}

	level := int(math.Round(v * 100))
	action := strconv.Itoa(level)
	ok, err := m.handle.Request("volume", action)
	if err != nil {
		return err
	}

	reflected := float64(level) / 100
	m.mu.Lock()
	m.volume = &reflected
	m.mu.Unlock()

	return ackError(ok, "volume", action)
}

func (m *MediaPlayer) setMute(params map[string]any) error {
	mute, err := boolParam(params, "mute")
	if err != nil {
		return err
	}

	action := "off"
	if mute {
		action = "on"
	}
	ok, err := m.handle.Request("sound", action)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.muted = &mute
	m.mu.Unlock()

	return ackError(ok, "sound", action)
}

func (m *MediaPlayer) selectSource(params map[string]any) error {
	source, err := stringParam(params, "source")
	if err != nil {
		return err
	}

	m.mu.RLock()
	known := slices.Contains(m.sources, source)
	m.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	ok, err := m.handle.Request("input", source)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.source = source
	m.mu.Unlock()

	return ackError(ok, "input", source)
}

func ackError(ok bool, category, action string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: %s %s", ErrNotAcknowledged, category, action)
}
