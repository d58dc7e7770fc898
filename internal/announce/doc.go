// Package announce advertises the device on the local network: a
// fixed mDNS hostname for discovery by update tooling, and an
// optional MQTT status publisher for fleet monitoring.
//
// No authentication is applied to either channel.
package announce
