package lgtv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/mqtt"
)

// topicParts is the number of parts in graylogic/{type}/lgtv/{address}.
const topicParts = 4

// Bridge connects the runtime to Gray Logic Core over MQTT. It handles:
//   - Commands from Core, run as entity actions and acknowledged
//   - read_state and read_all requests
//   - Retained state messages whenever an entity changes
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     BridgeConfig
	mqtt    MQTTClient
	runtime *Runtime
	health  *HealthReporter

	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64

	// Shutdown coordination; stopping guards wg.Add against Stop's Wait.
	stopMu   sync.Mutex
	stopping bool
	wg       sync.WaitGroup
	stopOnce sync.Once

	logSink
}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// BridgeConfig identifies the bridge in health messages.
type BridgeConfig struct {
	ID             string
	Version        string
	HealthInterval time.Duration
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	Config     BridgeConfig
	MQTTClient MQTTClient
	Runtime    *Runtime

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	if opts.Config.ID == "" {
		opts.Config.ID = Protocol
	}

	b := &Bridge{
		cfg:     opts.Config,
		mqtt:    opts.MQTTClient,
		runtime: opts.Runtime,
	}
	b.SetLogger(opts.Logger)

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.ID,
		Version:   opts.Config.Version,
		Interval:  opts.Config.HealthInterval,
		Publisher: opts.MQTTClient,
		Devices:   opts.Runtime,
		Stats:     b.statistics,
	})
	b.health.SetLogger(opts.Logger)

	return b, nil
}

// Start subscribes to command and request topics, publishes the current
// state of every entity and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := topics.BridgeCommands(Protocol)
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := topics.BridgeRequests(Protocol)
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.runtime.Subscribe(b.publishState)
	b.runtime.SubscribeRemovals(b.clearState)
	entities := b.runtime.Entities()
	for _, ent := range entities {
		b.publishState(ent, ent.State())
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started", "bridge_id", b.cfg.ID, "entities", len(entities))
	return nil
}

// Stop waits for in-flight commands and publishes a final health status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopMu.Lock()
		b.stopping = true
		b.stopMu.Unlock()

		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// handleMQTTMessage routes incoming messages by topic type.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != topicParts || parts[2] != Protocol {
		return fmt.Errorf("invalid topic format: %s", topic)
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[3], payload)
	case "request":
		b.handleRequest(payload)
	default:
		return fmt.Errorf("unknown message type: %s", parts[1])
	}
	return nil
}

// handleCommand runs a command off the delivery goroutine so a long
// remote replay does not hold up other messages.
func (b *Bridge) handleCommand(address string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = address
	}
	b.commandsReceived.Add(1)

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	if _, err := b.runtime.Entity(cmd.DeviceID); err != nil {
		b.publishAckError(cmd, ErrCodeNotConfigured, fmt.Sprintf("entity %s not configured", cmd.DeviceID))
		return
	}

	b.stopMu.Lock()
	if b.stopping {
		b.stopMu.Unlock()
		b.publishAckError(cmd, ErrCodeBridgeError, "bridge stopping")
		return
	}
	b.wg.Add(1)
	b.stopMu.Unlock()

	go func() {
		defer b.wg.Done()

		err := b.runtime.Apply(cmd.DeviceID, Action{Name: cmd.Command, Params: cmd.Parameters})
		if err != nil {
			b.publishAckError(cmd, ErrorCode(err), err.Error())
			return
		}
		b.publishAck(cmd)
	}()
}

func (b *Bridge) publishAck(cmd CommandMessage) {
	payload, err := json.Marshal(NewAckMessage(cmd, AckAccepted))
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(topics.BridgeAck(Protocol, cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	b.commandsFailed.Add(1)

	payload, err := json.Marshal(NewAckError(cmd, code, message))
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}
	if err := b.mqtt.Publish(topics.BridgeAck(Protocol, cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logWarn("command failed", "command_id", cmd.ID, "code", code, "message", message)
}

// handleRequest answers read_state and read_all.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request", "request_id", req.RequestID, "action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case "read_state":
		resp = b.handleReadState(req)
	case "read_all":
		resp = b.handleReadAll(req)
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}
	if err := b.mqtt.Publish(topics.BridgeResponse(Protocol, req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

// handleReadState reads one entity from the set and returns its state.
func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}

	state, err := b.runtime.Refresh(req.DeviceID)
	if err != nil {
		return errorResponse(req, ErrorCode(err), err.Error())
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      map[string]any{"device_id": req.DeviceID, "state": state},
	}
}

// handleReadAll polls every set and returns all entity states.
func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	b.runtime.Poll(context.Background())

	entities := b.runtime.Entities()
	states := make(map[string]any, len(entities))
	for _, ent := range entities {
		states[ent.ID()] = ent.State()
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      map[string]any{"count": len(entities), "entities": states},
	}
}

// publishState publishes a retained state message for ent.
func (b *Bridge) publishState(ent Entity, state map[string]any) {
	payload, err := json.Marshal(NewStateMessage(ent, state))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(topics.BridgeState(Protocol, ent.ID()), payload, 1, true); err != nil {
		b.logError("failed to publish state", err, "entity_id", ent.ID())
	}
}

// clearState deletes the retained state message of a removed entity.
func (b *Bridge) clearState(ent Entity) {
	if err := b.mqtt.Publish(topics.BridgeState(Protocol, ent.ID()), nil, 1, true); err != nil {
		b.logError("failed to clear state", err, "entity_id", ent.ID())
	}
}

func (b *Bridge) statistics() BridgeStatistics {
	rs := b.runtime.Stats()
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		Polls:            rs.Polls,
		PollErrors:       rs.PollErrors,
	}
}

func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}
