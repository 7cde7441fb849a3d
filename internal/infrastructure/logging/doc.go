// Package logging provides structured logging for Prysma Core.
//
// It wraps log/slog so every component logs with the same handler and the
// same default fields (service, version).
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords, JWT secrets or InfluxDB tokens.
package logging
