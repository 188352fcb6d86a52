package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementState      = "lgtv_state"
	measurementValidation = "lgtv_validation"
)

// WriteEntityState records one entity state snapshot.
//
// Only scalar attributes (bool, numbers, strings) become fields; lists such
// as source_list are skipped. Nothing is written when the state has no
// scalar attributes or the client is nil or closed.
//
// Example:
//
//	client.WriteEntityState("lg_tv_1_media_player", "media_player",
//	    map[string]any{"state": "on", "volume_level": 0.42}, time.Now())
func (c *Client) WriteEntityState(entityID, kind string, state map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if p := statePoint(entityID, kind, state, at); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// WriteValidation records the outcome of a connection validation.
func (c *Client) WriteValidation(uniqueID, result string, took time.Duration, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(validationPoint(uniqueID, result, took, at))
}

func statePoint(entityID, kind string, state map[string]any, at time.Time) *write.Point {
	fields := make(map[string]any, len(state))
	for k, v := range state {
		switch val := v.(type) {
		case bool, string, float64, float32, int, int64:
			fields[k] = val
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(measurementState,
		map[string]string{
			"entity_id": entityID,
			"kind":      kind,
		},
		fields,
		at,
	)
}

func validationPoint(uniqueID, result string, took time.Duration, at time.Time) *write.Point {
	return write.NewPoint(measurementValidation,
		map[string]string{
			"unique_id": uniqueID,
			"result":    result,
		},
		map[string]any{
			"duration_seconds": took.Seconds(),
		},
		at,
	)
}
