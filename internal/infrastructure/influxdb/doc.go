// Package influxdb records light state samples in InfluxDB 2.x.
//
// Every state transition the engine merges can be written as a light_state
// point tagged with light_id and source, giving a queryable timeline next to
// the bounded SQLite history. The integration is optional; when disabled in
// config the engine runs without it.
package influxdb
