package mqtt

import "fmt"

// TopicPrefixHeatPump is the base of every Emerald heat pump topic.
const TopicPrefixHeatPump = "ep/heat_pump"

// Topics provides builders for Emerald MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.HeatPumpControl("hp-123")
//	// Returns: "ep/heat_pump/to_gw/hp-123"
type Topics struct{}

// HeatPumpControl returns the topic commands for a heat pump are published to.
//
// Example: ep/heat_pump/to_gw/hp-123
func (Topics) HeatPumpControl(deviceID string) string {
	return fmt.Sprintf("%s/to_gw/%s", TopicPrefixHeatPump, deviceID)
}

// HeatPumpUpdates returns the topic a heat pump's gateway reports state on.
//
// Example: ep/heat_pump/from_gw/hp-123
func (Topics) HeatPumpUpdates(deviceID string) string {
	return fmt.Sprintf("%s/from_gw/%s", TopicPrefixHeatPump, deviceID)
}

// AllHeatPumpUpdates returns a pattern matching every gateway report.
//
// Pattern: ep/heat_pump/from_gw/+
func (Topics) AllHeatPumpUpdates() string {
	return fmt.Sprintf("%s/from_gw/+", TopicPrefixHeatPump)
}
