// Package emerald is the Device Client for Emerald heat pump hot water systems.
//
// A session is one sign-in against the Emerald REST API plus one MQTT
// connection authenticated with the resulting token:
//
//   - Reads (device list, info, status) use the REST property list, which
//     embeds every heat pump together with its last reported state.
//   - Writes (switch, mode) are published to the heat pump's gateway topic.
//     Gateway reports on the matching from_gw topic are merged into the
//     cached state so reads between refreshes stay current.
//
// Connector implements hws.Connector and Client implements hws.Client, so the
// session manager and dispatcher never see HTTP or MQTT.
package emerald
