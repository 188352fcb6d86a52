package lgtv

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
)

// defaultWorkers bounds concurrent setup and poll work when unset.
const defaultWorkers = 4

// EntryLister provides the stored entries loaded on start.
// *entry.SQLiteRepository satisfies it.
type EntryLister interface {
	List(ctx context.Context) ([]entry.Entry, error)
}

// History records entity state and validation outcomes over time.
// *influxdb.Client satisfies it; a nil client records nothing.
type History interface {
	WriteEntityState(entityID, kind string, state map[string]any, at time.Time)
	WriteValidation(uniqueID, result string, took time.Duration, at time.Time)
}

// StateListener is called after an entity's state changed.
// It runs on the goroutine that observed the change and must not block.
type StateListener func(ent Entity, state map[string]any)

// RemovalListener is called for each entity of an unloaded entry.
type RemovalListener func(ent Entity)

// RuntimeOptions holds configuration for creating a runtime.
type RuntimeOptions struct {
	// Open opens device links. Required.
	Open OpenFunc

	// Entries lists stored entries for SetupAll. Optional.
	Entries EntryLister

	// Validation configures the validation sequence.
	Validation ValidationConfig

	// Workers bounds concurrent setup and polling. Default: 4.
	Workers int

	// Sleep pauses between retries and remote commands. Default: time.Sleep.
	Sleep Sleeper

	// Metrics is optional.
	Metrics *Metrics

	// History is optional.
	History History

	// Logger is optional.
	Logger Logger
}

// RuntimeStats are counters reported in health messages.
type RuntimeStats struct {
	Polls      uint64
	PollErrors uint64
}

// loaded is one running entry: the handle and its entities.
type loaded struct {
	entry    entry.Entry
	handle   *Handle
	entities []Entity
}

// Runtime owns every running entry. It validates entries before exposing
// their entities, polls them, and notifies listeners of state changes.
//
// Thread Safety: All methods are safe for concurrent use.
type Runtime struct {
	open      OpenFunc
	entries   EntryLister
	validator *Validator
	workers   int
	sleep     Sleeper
	metrics   *Metrics
	history   History

	// setupLocks serialise setup and unload per entry ID
	setupLocks   map[string]*sync.Mutex
	setupLocksMu sync.Mutex

	mu       sync.RWMutex
	loaded   map[string]*loaded // by entry ID
	entities map[string]*loaded // by entity ID

	// State cache for change detection
	states   map[string]map[string]any
	statesMu sync.Mutex

	listeners   []StateListener
	removals    []RemovalListener
	listenersMu sync.RWMutex

	polls      atomic.Uint64
	pollErrors atomic.Uint64

	logSink
}

// NewRuntime creates an empty runtime.
func NewRuntime(opts RuntimeOptions) (*Runtime, error) {
	if opts.Open == nil {
		return nil, fmt.Errorf("open function is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	r := &Runtime{
		open:       opts.Open,
		entries:    opts.Entries,
		validator:  NewValidator(opts.Validation, sleep),
		workers:    workers,
		sleep:      sleep,
		metrics:    opts.Metrics,
		history:    opts.History,
		setupLocks: make(map[string]*sync.Mutex),
		loaded:     make(map[string]*loaded),
		entities:   make(map[string]*loaded),
		states:     make(map[string]map[string]any),
	}
	r.SetLogger(opts.Logger)
	return r, nil
}

// Subscribe registers a listener for state changes.
func (r *Runtime) Subscribe(listener StateListener) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, listener)
	r.listenersMu.Unlock()
}

// SubscribeRemovals registers a listener for entities that go away.
func (r *Runtime) SubscribeRemovals(listener RemovalListener) {
	r.listenersMu.Lock()
	r.removals = append(r.removals, listener)
	r.listenersMu.Unlock()
}

// entryLock returns the lock serialising setup and unload of entryID.
func (r *Runtime) entryLock(entryID string) *sync.Mutex {
	r.setupLocksMu.Lock()
	defer r.setupLocksMu.Unlock()
	l, ok := r.setupLocks[entryID]
	if !ok {
		l = &sync.Mutex{}
		r.setupLocks[entryID] = l
	}
	return l
}

// Probe opens a link to (port, tvID), runs the validation sequence and
// closes the link again.
func (r *Runtime) Probe(port string, tvID int) error {
	link, err := r.open(port, tvID)
	if err != nil {
		r.metrics.observeValidation(err)
		return err
	}
	h := NewHandle(port, tvID, link, r.metrics)
	defer h.Close() //nolint:errcheck // Probe result matters, not the close

	err = r.validator.Validate(h)
	r.metrics.observeValidation(err)
	return err
}

// SetupEntry validates e and, on success, exposes its media player and
// remote. A failed validation closes the link; nothing is exposed and the
// error is returned. An entry already loaded under the same ID is
// replaced. Calls for the same entry ID run one at a time.
func (r *Runtime) SetupEntry(e entry.Entry) error {
	lock := r.entryLock(e.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.unload(e.ID); err != nil && !errors.Is(err, ErrEntryNotLoaded) {
		return err
	}

	tvID := e.EffectiveTVID()
	start := time.Now()

	link, err := r.open(e.Port, tvID)
	if err != nil {
		r.recordValidation(e, err, start)
		r.logError("failed to open serial port", err, "entry_id", e.ID, "port", e.Port)
		return fmt.Errorf("setting up %s: %w", e.UniqueID, err)
	}

	h := NewHandle(e.Port, tvID, link, r.metrics)
	if err := r.validator.Validate(h); err != nil {
		r.recordValidation(e, err, start)
		h.Close() //nolint:errcheck // Already failing
		r.logError("tv did not pass validation", err,
			"entry_id", e.ID, "port", e.Port, "tv_id", tvID)
		return fmt.Errorf("setting up %s: %w", e.UniqueID, err)
	}
	r.recordValidation(e, nil, start)

	le := &loaded{
		entry:  e,
		handle: h,
		entities: []Entity{
			NewMediaPlayer(e.UniqueID, h),
			NewRemote(e.UniqueID, h, r.sleep),
		},
	}

	// Initial read so the first published state is real.
	for _, ent := range le.entities {
		if err := ent.Update(); err != nil {
			r.logWarn("initial update failed", "entity_id", ent.ID(), "error", err)
		}
	}

	r.mu.Lock()
	stale := r.loaded[e.ID]
	r.loaded[e.ID] = le
	for _, ent := range le.entities {
		r.entities[ent.ID()] = le
	}
	count := len(r.loaded)
	r.mu.Unlock()

	if stale != nil {
		stale.handle.Close() //nolint:errcheck // Replaced
	}

	r.metrics.setEntriesLoaded(count)
	r.logInfo("entry loaded", "entry_id", e.ID, "unique_id", e.UniqueID, "port", e.Port, "tv_id", tvID)

	r.observe(le)
	return nil
}

// SetupAll loads every stored entry, validating up to Workers at a time.
// Entries that fail validation are logged and skipped.
//
// Returns:
//   - int: Number of entries now running
//   - error: Only when the entries could not be listed
func (r *Runtime) SetupAll(ctx context.Context) (int, error) {
	if r.entries == nil {
		return 0, nil
	}
	stored, err := r.entries.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing entries: %w", err)
	}

	var (
		g  errgroup.Group
		ok atomic.Int64
	)
	g.SetLimit(r.workers)
	for _, e := range stored {
		e := e
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.SetupEntry(e); err == nil {
				ok.Add(1)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // Workers never return errors

	r.logInfo("entries set up", "loaded", ok.Load(), "stored", len(stored))
	return int(ok.Load()), nil
}

// UnloadEntry closes an entry's handle and drops its entities. Removal
// listeners are told about each entity.
func (r *Runtime) UnloadEntry(entryID string) error {
	lock := r.entryLock(entryID)
	lock.Lock()
	defer lock.Unlock()
	return r.unload(entryID)
}

// unload does the work of UnloadEntry; the caller holds the entry lock.
func (r *Runtime) unload(entryID string) error {
	r.mu.Lock()
	le, ok := r.loaded[entryID]
	if !ok {
		r.mu.Unlock()
		return ErrEntryNotLoaded
	}
	delete(r.loaded, entryID)
	for _, ent := range le.entities {
		delete(r.entities, ent.ID())
	}
	count := len(r.loaded)
	r.mu.Unlock()

	r.statesMu.Lock()
	for _, ent := range le.entities {
		delete(r.states, ent.ID())
		r.metrics.forgetEntity(ent.ID())
	}
	r.statesMu.Unlock()
	r.metrics.setEntriesLoaded(count)

	if err := le.handle.Close(); err != nil {
		r.logError("failed to close serial port", err, "entry_id", entryID)
	}

	r.listenersMu.RLock()
	removals := make([]RemovalListener, len(r.removals))
	copy(removals, r.removals)
	r.listenersMu.RUnlock()
	for _, ent := range le.entities {
		for _, l := range removals {
			l(ent)
		}
	}

	r.logInfo("entry unloaded", "entry_id", entryID)
	return nil
}

// ReloadEntry unloads e if it is running and sets it up again, picking up
// changed options.
func (r *Runtime) ReloadEntry(e entry.Entry) error {
	return r.SetupEntry(e)
}

// Loaded returns the number of running entries.
func (r *Runtime) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loaded)
}

// ExpectedCount returns the number of stored entries.
func (r *Runtime) ExpectedCount(ctx context.Context) (int, error) {
	if r.entries == nil {
		return r.Loaded(), nil
	}
	stored, err := r.entries.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(stored), nil
}

// IsLoaded reports whether entryID is running.
func (r *Runtime) IsLoaded(entryID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[entryID]
	return ok
}

// Entities returns every running entity ordered by ID.
func (r *Runtime) Entities() []Entity {
	r.mu.RLock()
	out := make([]Entity, 0, len(r.entities))
	for _, le := range r.loaded {
		out = append(out, le.entities...)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Entity returns a running entity.
func (r *Runtime) Entity(entityID string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	le, ok := r.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", ErrEntryNotLoaded, entityID)
	}
	for _, ent := range le.entities {
		if ent.ID() == entityID {
			return ent, nil
		}
	}
	return nil, fmt.Errorf("%w: entity %s", ErrEntryNotLoaded, entityID)
}

// Apply runs an action on an entity and notifies listeners of the
// resulting state of every entity on the same set.
func (r *Runtime) Apply(entityID string, a Action) error {
	ent, err := r.Entity(entityID)
	if err != nil {
		return err
	}

	err = ent.Apply(a)

	r.mu.RLock()
	le := r.entities[entityID]
	r.mu.RUnlock()
	if le != nil {
		r.observe(le)
	}
	return err
}

// Refresh updates one entity from the set and returns its state.
func (r *Runtime) Refresh(entityID string) (map[string]any, error) {
	ent, err := r.Entity(entityID)
	if err != nil {
		return nil, err
	}
	if err := ent.Update(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	le := r.entities[entityID]
	r.mu.RUnlock()
	if le != nil {
		r.observe(le)
	}
	return ent.State(), nil
}

// Poll updates every running entity once. Sets are polled concurrently,
// up to Workers at a time; the entities of one set are updated in order.
func (r *Runtime) Poll(ctx context.Context) {
	r.mu.RLock()
	snapshot := make([]*loaded, 0, len(r.loaded))
	for _, le := range r.loaded {
		snapshot = append(snapshot, le)
	}
	r.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, le := range snapshot {
		le := le
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r.pollEntry(le)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // Workers never return errors
	r.polls.Add(1)
}

// Run polls every interval until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Poll(ctx)
		}
	}
}

// Stats returns poll counters.
func (r *Runtime) Stats() RuntimeStats {
	return RuntimeStats{
		Polls:      r.polls.Load(),
		PollErrors: r.pollErrors.Load(),
	}
}

// Close unloads every entry.
func (r *Runtime) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.loaded))
	for id := range r.loaded {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.UnloadEntry(id) //nolint:errcheck // Concurrent unload is fine
	}
}

// current reports whether le is still the running instance of its entry.
func (r *Runtime) current(le *loaded) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded[le.entry.ID] == le
}

func (r *Runtime) pollEntry(le *loaded) {
	if !r.current(le) {
		return
	}
	for _, ent := range le.entities {
		if err := ent.Update(); err != nil {
			r.pollErrors.Add(1)
			r.metrics.observePollError()
			r.logError("entity update failed", err, "entity_id", ent.ID())
		}
	}

	if !r.current(le) {
		return
	}
	now := time.Now()
	for _, ent := range le.entities {
		if r.history != nil {
			r.history.WriteEntityState(ent.ID(), string(ent.Kind()), ent.State(), now)
		}
	}
	r.observe(le)
}

// observe records metrics for le and notifies listeners of entities whose
// state differs from the last one seen. An entry unloaded meanwhile is
// ignored.
func (r *Runtime) observe(le *loaded) {
	status := le.handle.Status()

	for _, ent := range le.entities {
		state := ent.State()

		r.statesMu.Lock()
		if !r.current(le) {
			r.statesMu.Unlock()
			return
		}
		if ent.Kind() == KindMediaPlayer {
			r.metrics.observeStatus(ent.ID(), status)
		}
		prev, seen := r.states[ent.ID()]
		changed := !seen || !reflect.DeepEqual(prev, state)
		if changed {
			r.states[ent.ID()] = state
		}
		r.statesMu.Unlock()

		if changed {
			r.notify(ent, state)
		}
	}
}

func (r *Runtime) notify(ent Entity, state map[string]any) {
	r.listenersMu.RLock()
	listeners := make([]StateListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.RUnlock()

	for _, l := range listeners {
		l(ent, state)
	}
}

func (r *Runtime) recordValidation(e entry.Entry, err error, start time.Time) {
	r.metrics.observeValidation(err)
	if r.history == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = Classify(err)
	}
	r.history.WriteValidation(e.UniqueID, result, time.Since(start), time.Now())
}
