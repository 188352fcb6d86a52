package mqtt

import "fmt"

// TopicPrefix is the root of every Gray Logic topic.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{address}.
const TopicPrefix = "graylogic"

// Topics provides builders for the bridge topic scheme.
//
//	topics := mqtt.Topics{}
//	topics.BridgeState("lgtv", "lg_tv_1_remote")
//	// Returns: "graylogic/state/lgtv/lg_tv_1_remote"
type Topics struct{}

// BridgeCommand returns the topic Core publishes commands on.
//
// Example: graylogic/command/lgtv/lg_tv_1_media_player
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, address)
}

// BridgeAck returns the topic for command acknowledgements.
//
// Example: graylogic/ack/lgtv/lg_tv_1_media_player
func (Topics) BridgeAck(protocol, address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, address)
}

// BridgeState returns the topic for entity state updates.
//
// Example: graylogic/state/lgtv/lg_tv_1_media_player
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, address)
}

// BridgeRequest returns the topic for requests to a bridge.
//
// Example: graylogic/request/lgtv/req-abc123
func (Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeResponse returns the topic for request responses.
//
// Example: graylogic/response/lgtv/req-abc123
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/lgtv
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeCommands matches every command for one protocol.
//
// Pattern: graylogic/command/lgtv/+
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// BridgeRequests matches every request for one protocol.
//
// Pattern: graylogic/request/lgtv/+
func (Topics) BridgeRequests(protocol string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, protocol)
}
