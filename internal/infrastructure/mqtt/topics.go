package mqtt

import "strings"

// DefaultNamespace is the first topic level used by the light firmware.
const DefaultNamespace = "prysmalight"

// Topics builds topic strings under a namespace:
//
//	<namespace>/<lightID>/<suffix>
//	<namespace>/server/status
type Topics struct {
	Namespace string
}

func (t Topics) ns() string {
	if t.Namespace == "" {
		return DefaultNamespace
	}
	return t.Namespace
}

// Light returns the topic for one light and suffix.
//
// Example: prysmalight/kitchen/state
func (t Topics) Light(lightID, suffix string) string {
	return t.ns() + "/" + lightID + "/" + suffix
}

// AllLights returns a wildcard matching suffix for every light.
//
// Pattern: prysmalight/+/state
func (t Topics) AllLights(suffix string) string {
	return t.ns() + "/+/" + suffix
}

// ServerStatus returns the retained online/offline topic for this service.
//
// Example: prysmalight/server/status
func (t Topics) ServerStatus() string {
	return t.ns() + "/server/status"
}

// Split breaks a topic into its levels.
func Split(topic string) []string {
	return strings.Split(topic, "/")
}
