// Package config loads and validates Prysma Core configuration.
//
// Configuration is read from a YAML file on top of built-in defaults, then
// PRYSMA_* environment variables override individual values. Secrets (MQTT
// password, JWT secret, InfluxDB token) should come from the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Namespace)
package config
