// Package mqtt provides the MQTT client used by the LG TV bridge.
//
// The bridge talks to the rest of Gray Logic over the shared broker using
// the flat topic scheme graylogic/{category}/{protocol}/{address}:
//
//	Gray Logic Core ↔ MQTT Broker ↔ lgtv-bridge ↔ RS232 ↔ LG TV
//
// This package manages:
//   - Connection with auto-reconnect and subscription restoration
//   - Publishing and subscribing with QoS and payload validation
//   - A caller-supplied Last Will so the broker announces the bridge as
//     offline when the process dies
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
//	    Topic:   mqtt.Topics{}.BridgeHealth("lgtv"),
//	    Payload: lwt,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommands("lgtv"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) when the broker is not on localhost
//   - Credentials come from config or LGTV_BRIDGE_MQTT_* variables
package mqtt
