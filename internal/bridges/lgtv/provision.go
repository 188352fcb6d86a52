package lgtv

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
)

// PortLister discovers serial ports. rs232.Ports satisfies it.
type PortLister func() ([]string, error)

// ProvisionerOptions holds configuration for creating a provisioner.
type ProvisionerOptions struct {
	// Entries stores config entries. Required.
	Entries entry.Repository

	// Runtime validates and runs entries. Required.
	Runtime *Runtime

	// Ports lists selectable ports. Default: rs232.Ports.
	Ports PortLister

	// Logger is optional.
	Logger Logger
}

// Provisioner is the configuration flow: it adds, re-options and removes
// config entries, keeping the runtime in step.
type Provisioner struct {
	entries entry.Repository
	runtime *Runtime
	ports   PortLister

	logSink
}

// NewProvisioner creates a provisioner.
func NewProvisioner(opts ProvisionerOptions) (*Provisioner, error) {
	if opts.Entries == nil {
		return nil, fmt.Errorf("entry repository is required")
	}
	if opts.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	ports := opts.Ports
	if ports == nil {
		ports = rs232.Ports
	}

	p := &Provisioner{
		entries: opts.Entries,
		runtime: opts.Runtime,
		ports:   ports,
	}
	p.SetLogger(opts.Logger)
	return p, nil
}

// Ports returns the serial ports a TV can be configured on.
func (p *Provisioner) Ports() ([]string, error) {
	return p.ports()
}

// Provision configures the set with tvID on port.
//
// The set must pass the validation sequence before anything is stored.
// The stored entry is then set up in the runtime; a failure at that point
// is logged and the entry is kept, matching a restart with the TV away.
//
// Returns:
//   - entry.Entry: The stored entry
//   - error: ErrInvalidTVID, ErrUnknownPort, ErrAlreadyConfigured, or the
//     validation error (see Classify)
func (p *Provisioner) Provision(ctx context.Context, port string, tvID int) (entry.Entry, error) {
	if err := checkTVID(tvID); err != nil {
		return entry.Entry{}, err
	}

	available, err := p.ports()
	if err != nil {
		return entry.Entry{}, fmt.Errorf("listing serial ports: %w", err)
	}
	if !slices.Contains(available, port) {
		return entry.Entry{}, fmt.Errorf("%w: %s", ErrUnknownPort, port)
	}

	uniqueID := entry.UniqueID(tvID)
	if _, err := p.entries.GetByUniqueID(ctx, uniqueID); err == nil {
		return entry.Entry{}, fmt.Errorf("%w: %s", ErrAlreadyConfigured, uniqueID)
	} else if !errors.Is(err, entry.ErrEntryNotFound) {
		return entry.Entry{}, fmt.Errorf("checking for %s: %w", uniqueID, err)
	}

	if err := p.runtime.Probe(port, tvID); err != nil {
		p.logWarn("provisioning validation failed", "port", port, "tv_id", tvID, "error", err)
		return entry.Entry{}, err
	}

	e := entry.New(port, tvID)
	if err := p.entries.Create(ctx, &e); err != nil {
		if errors.Is(err, entry.ErrEntryExists) {
			return entry.Entry{}, fmt.Errorf("%w: %s", ErrAlreadyConfigured, uniqueID)
		}
		return entry.Entry{}, fmt.Errorf("storing entry: %w", err)
	}
	p.logInfo("entry created", "entry_id", e.ID, "unique_id", e.UniqueID, "port", port)

	if err := p.runtime.SetupEntry(e); err != nil {
		p.logWarn("new entry stored but not loaded", "entry_id", e.ID, "error", err)
	}
	return e, nil
}

// SetOptions changes the set ID an entry talks to and reloads it.
// A reload failure is logged; the options are kept.
func (p *Provisioner) SetOptions(ctx context.Context, entryID string, tvID int) (entry.Entry, error) {
	if err := checkTVID(tvID); err != nil {
		return entry.Entry{}, err
	}

	e, err := p.entries.UpdateOptions(ctx, entryID, entry.Options{TVID: &tvID})
	if err != nil {
		return entry.Entry{}, err
	}

	if err := p.runtime.ReloadEntry(e); err != nil {
		p.logWarn("entry not reloaded after options change", "entry_id", e.ID, "error", err)
	}
	return e, nil
}

// Remove unloads and deletes an entry.
func (p *Provisioner) Remove(ctx context.Context, entryID string) error {
	if err := p.runtime.UnloadEntry(entryID); err != nil && !errors.Is(err, ErrEntryNotLoaded) {
		return err
	}
	if err := p.entries.Delete(ctx, entryID); err != nil {
		return err
	}
	p.logInfo("entry removed", "entry_id", entryID)
	return nil
}

func checkTVID(tvID int) error {
	if tvID < 0 || tvID > rs232.MaxSetID {
		return fmt.Errorf("%w: %d not in 0-%d", ErrInvalidTVID, tvID, rs232.MaxSetID)
	}
	return nil
}
