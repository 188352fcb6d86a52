package lgtv

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
)

// ValidationConfig controls the connection-validation sequence.
type ValidationConfig struct {
	// Attempts is how many "power on" requests the wake probe sends.
	Attempts int

	// Delay is the pause after each wake attempt.
	Delay time.Duration

	// Settle is the pause after powering a woken set off.
	Settle time.Duration

	// PowerOffAfterWake returns a woken set to standby.
	PowerOffAfterWake bool
}

// DefaultValidationConfig returns the stock sequence: two wake attempts
// one second apart, power off, ten seconds to settle.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		Attempts:          2,
		Delay:             time.Second,
		Settle:            10 * time.Second,
		PowerOffAfterWake: true,
	}
}

// ValidationConfigFrom converts the file configuration.
func ValidationConfigFrom(cfg config.ValidationConfig) ValidationConfig {
	return ValidationConfig{
		Attempts:          cfg.Attempts,
		Delay:             time.Duration(cfg.Delay) * time.Second,
		Settle:            time.Duration(cfg.Settle) * time.Second,
		PowerOffAfterWake: cfg.PowerOffAfterWake,
	}
}

// Validator checks that a set answers before it is exposed.
type Validator struct {
	cfg   ValidationConfig
	sleep Sleeper
}

// NewValidator creates a validator. A nil sleep uses time.Sleep.
func NewValidator(cfg ValidationConfig, sleep Sleeper) *Validator {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Validator{cfg: cfg, sleep: sleep}
}

// Validate runs the validation sequence against r.
//
// A set that answers the power check is valid straight away and nothing
// else is sent. Otherwise the set is woken with WakeTV; if that fails the
// result is ErrCannotConnect and no power off is sent. When configured,
// a woken set is powered off again and given the settle time before it
// is reported valid; otherwise it is valid as soon as it wakes.
//
// Request errors are returned unchanged.
func (v *Validator) Validate(r Requester) error {
	ok, err := r.Request("power", "check")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	ok, err = WakeTV(r, v.cfg.Attempts, v.cfg.Delay, v.sleep)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no answer after %d wake attempts", ErrCannotConnect, v.cfg.Attempts)
	}

	if !v.cfg.PowerOffAfterWake {
		return nil
	}
	if _, err := r.Request("power", "off"); err != nil {
		return err
	}
	v.sleep(v.cfg.Settle)
	return nil
}
