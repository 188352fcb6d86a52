// Package influxdb records LG TV entity state history in InfluxDB v2.
//
// Every poll that changes an entity's state writes one "lgtv_state" point
// (tags: entity_id, kind; fields: the scalar state attributes), and every
// connection validation writes one "lgtv_validation" point. Writes are
// non-blocking and batched by the official influxdb-client-go v2 client.
//
// InfluxDB is optional: Connect returns ErrDisabled when influxdb.enabled is
// false and the bridge runs without history.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	defer client.Close()
//
//	client.WriteEntityState("lg_tv_1_media_player", "media_player", state, time.Now())
package influxdb
