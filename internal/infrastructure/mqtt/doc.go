// Package mqtt provides the MQTT connection used as the Emerald control channel.
//
// This package manages:
//   - Connection to the Emerald broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Connection health monitoring
//
// # Architecture
//
// Reads go through the Emerald REST API; writes (switch, mode) are published
// to the gateway topic of the heat pump, and the gateway reports state
// changes back on its own topic.
//
//	emeraldhwsd -> ep/heat_pump/to_gw/<id>   -> gateway
//	emeraldhwsd <- ep/heat_pump/from_gw/<id> <- gateway
//
// # Security Considerations
//
//   - TLS is the default (cfg.Broker.TLS=true)
//   - Each session dials with the account email and its session token, so a
//     client never outlives the token it authenticated with
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.HeatPumpControl("hp-123")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
