package lgtv

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*MockLink)
		cfg        func(*ValidationConfig)
		wantErr    error
		wantCalls  []string
		wantSleeps []time.Duration
	}{
		{
			name:      "answers power check",
			setup:     func(*MockLink) {},
			wantCalls: []string{"power check"},
		},
		{
			name: "woken on first attempt",
			setup: func(l *MockLink) {
				l.Reply("power", "check", false)
			},
			wantCalls:  []string{"power check", "power on", "power off"},
			wantSleeps: []time.Duration{time.Second, 10 * time.Second},
		},
		{
			name: "power off unanswered",
			setup: func(l *MockLink) {
				l.Reply("power", "check", false).Reply("power", "off", false)
			},
			wantCalls:  []string{"power check", "power on", "power off"},
			wantSleeps: []time.Duration{time.Second, 10 * time.Second},
		},
		{
			name: "unreachable sends no power off",
			setup: func(l *MockLink) {
				l.Unreachable()
			},
			wantErr:    ErrCannotConnect,
			wantCalls:  []string{"power check", "power on", "power on"},
			wantSleeps: []time.Duration{time.Second, time.Second},
		},
		{
			name: "power off disabled",
			setup: func(l *MockLink) {
				l.Reply("power", "check", false)
			},
			cfg:        func(c *ValidationConfig) { c.PowerOffAfterWake = false },
			wantCalls:  []string{"power check", "power on"},
			wantSleeps: []time.Duration{time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := NewMockLink()
			tt.setup(link)
			cfg := DefaultValidationConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			sleeper := &recordingSleeper{}

			err := NewValidator(cfg, sleeper.Sleep).Validate(link)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}

			var calls []string
			for _, c := range link.Calls() {
				calls = append(calls, c.String())
			}
			if !reflect.DeepEqual(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if got := sleeper.Durations(); !reflect.DeepEqual(got, tt.wantSleeps) {
				t.Errorf("sleeps = %v, want %v", got, tt.wantSleeps)
			}
		})
	}
}

func TestValidate_RequestErrors(t *testing.T) {
	boom := errors.New("write failed")

	tests := []struct {
		name  string
		setup func(*MockLink)
	}{
		{name: "power check", setup: func(l *MockLink) { l.Fail("power", "check", boom) }},
		{name: "wake", setup: func(l *MockLink) { l.Reply("power", "check", false).Fail("power", "on", boom) }},
		{name: "power off", setup: func(l *MockLink) { l.Reply("power", "check", false).Fail("power", "off", boom) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := NewMockLink()
			tt.setup(link)

			err := NewValidator(DefaultValidationConfig(), (&recordingSleeper{}).Sleep).Validate(link)
			if !errors.Is(err, boom) {
				t.Errorf("Validate() error = %v, want %v", err, boom)
			}
		})
	}
}

func TestValidationConfigFrom(t *testing.T) {
	got := ValidationConfigFrom(config.ValidationConfig{
		Attempts:          3,
		Delay:             2,
		Settle:            5,
		PowerOffAfterWake: true,
	})
	want := ValidationConfig{
		Attempts:          3,
		Delay:             2 * time.Second,
		Settle:            5 * time.Second,
		PowerOffAfterWake: true,
	}
	if got != want {
		t.Errorf("ValidationConfigFrom() = %+v, want %+v", got, want)
	}
}
