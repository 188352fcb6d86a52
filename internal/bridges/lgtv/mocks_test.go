package lgtv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
)

type linkCall struct {
	Category string
	Action   string
}

func (c linkCall) String() string { return c.Category + " " + c.Action }

// MockLink implements Link for testing. Commands are acknowledged unless
// a reply or error is configured for "category action".
type MockLink struct {
	mu        sync.Mutex
	calls     []linkCall
	replies   map[string]bool
	errs      map[string]error
	status    rs232.Status
	updateErr error
	updates   int
	closed    bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func NewMockLink() *MockLink {
	return &MockLink{
		replies: make(map[string]bool),
		errs:    make(map[string]error),
		status:  rs232.Status{Sources: rs232.Sources()},
	}
}

// Reply makes "category action" answer ok.
func (m *MockLink) Reply(category, action string, ok bool) *MockLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[category+" "+action] = ok
	return m
}

// Fail makes "category action" return err.
func (m *MockLink) Fail(category, action string, err error) *MockLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[category+" "+action] = err
	return m
}

// Unreachable makes every power request go unanswered.
func (m *MockLink) Unreachable() *MockLink {
	return m.Reply("power", "check", false).Reply("power", "on", false).Reply("power", "off", false)
}

func (m *MockLink) Request(category, action string) (bool, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := category + " " + action
	m.calls = append(m.calls, linkCall{category, action})
	if err := m.errs[key]; err != nil {
		return false, err
	}
	ok, set := m.replies[key]
	if !set {
		ok = true
	}
	if ok {
		m.applyLocked(category, action)
	}
	return ok, nil
}

func (m *MockLink) applyLocked(category, action string) {
	switch category {
	case "power":
		switch action {
		case "on":
			m.status.On = true
		case "off":
			m.status.On = false
		}
	case "volume":
		if v, err := strconv.Atoi(action); err == nil {
			m.status.Volume = v
		}
	case "sound":
		m.status.Muted = action == "on"
	case "input":
		m.status.Input = action
	}
}

func (m *MockLink) UpdateStatus() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	return m.updateErr
}

func (m *MockLink) Status() rs232.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	s.Sources = append([]string(nil), m.status.Sources...)
	return s
}

func (m *MockLink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockLink) SetStatus(s rs232.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Sources == nil {
		s.Sources = m.status.Sources
	}
	m.status = s
}

func (m *MockLink) SetUpdateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

func (m *MockLink) Calls() []linkCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]linkCall(nil), m.calls...)
}

func (m *MockLink) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func (m *MockLink) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockLink) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// recordingSleeper records requested pauses instead of sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
}

func (s *recordingSleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

// mockOpener hands out MockLinks by port and records every open.
type mockOpener struct {
	mu     sync.Mutex
	links  map[string]*MockLink
	fresh  map[string]func(*MockLink)
	opens  []linkOpen
	opened []*MockLink
}

type linkOpen struct {
	Port string
	TVID int
}

func newMockOpener() *mockOpener {
	return &mockOpener{
		links: make(map[string]*MockLink),
		fresh: make(map[string]func(*MockLink)),
	}
}

// AddEach makes every open of port return a new link set up by configure.
func (o *mockOpener) AddEach(port string, configure func(*MockLink)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fresh[port] = configure
}

// Opened returns the links handed out by AddEach ports.
func (o *mockOpener) Opened() []*MockLink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*MockLink(nil), o.opened...)
}

// Add registers a link for port and returns it for configuration.
func (o *mockOpener) Add(port string) *MockLink {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := NewMockLink()
	o.links[port] = l
	return l
}

func (o *mockOpener) Open(port string, tvID int) (Link, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens = append(o.opens, linkOpen{port, tvID})
	if configure, ok := o.fresh[port]; ok {
		l := NewMockLink()
		configure(l)
		o.opened = append(o.opened, l)
		return l, nil
	}
	l, ok := o.links[port]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no such file or directory", rs232.ErrOpenFailed, port)
	}
	return l, nil
}

func (o *mockOpener) Opens() []linkOpen {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]linkOpen(nil), o.opens...)
}

// fakeRepository implements entry.Repository in memory.
type fakeRepository struct {
	mu      sync.Mutex
	entries map[string]entry.Entry
	listErr error
}

func newFakeRepository(entries ...entry.Entry) *fakeRepository {
	r := &fakeRepository{entries: make(map[string]entry.Entry)}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

func (r *fakeRepository) Get(_ context.Context, id string) (entry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return entry.Entry{}, entry.ErrEntryNotFound
	}
	return e, nil
}

func (r *fakeRepository) GetByUniqueID(_ context.Context, uniqueID string) (entry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.UniqueID == uniqueID {
			return e, nil
		}
	}
	return entry.Entry{}, entry.ErrEntryNotFound
}

func (r *fakeRepository) List(_ context.Context) ([]entry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]entry.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRepository) Create(_ context.Context, e *entry.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.ID == e.ID || existing.UniqueID == e.UniqueID {
			return entry.ErrEntryExists
		}
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	r.entries[e.ID] = *e
	return nil
}

func (r *fakeRepository) UpdateOptions(_ context.Context, id string, opts entry.Options) (entry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return entry.Entry{}, entry.ErrEntryNotFound
	}
	e.Options = opts
	r.entries[id] = e
	return e, nil
}

func (r *fakeRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return entry.ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *fakeRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// recordingHistory implements History for testing.
type recordingHistory struct {
	mu          sync.Mutex
	states      []string
	validations []string
}

func (h *recordingHistory) WriteEntityState(entityID, _ string, _ map[string]any, _ time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, entityID)
}

func (h *recordingHistory) WriteValidation(uniqueID, result string, _ time.Duration, _ time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.validations = append(h.validations, uniqueID+"="+result)
}

func (h *recordingHistory) Validations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.validations...)
}

func (h *recordingHistory) States() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.states...)
}

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []string
	connected     bool
	handlers      map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{topic, payload, qos, retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscriptions...)
}

// PublishedTo returns messages published on topic.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// WaitFor polls until a message is published on topic.
func (m *MockMQTTClient) WaitFor(topic string, timeout time.Duration) (mockPublish, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msgs := m.PublishedTo(topic); len(msgs) > 0 {
			return msgs[len(msgs)-1], nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return mockPublish{}, errors.New("timed out waiting for " + topic)
}

// SimulateMessage delivers payload on topic through the handler
// subscribed under pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + pattern)
	}
	return handler(topic, payload)
}
