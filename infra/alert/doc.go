// Package alert pushes emergency notifications to nearby providers over
// MQTT when new requests are created.
package alert
