// Package influx delivers encoded build lines to an InfluxDB write
// endpoint, speaking either the 1.x query-credential API or the 2.x
// token API.
//
// The two failure modes are distinct types: a ConfigError means the
// settings are too incomplete to try (no request is made), a
// DeliveryError means an attempt reached for the network and failed.
// The dispatcher caches payloads only for the latter.
package influx
