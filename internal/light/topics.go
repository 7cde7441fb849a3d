package light

import (
	"github.com/prysmalight/prysma-core/internal/infrastructure/mqtt"
)

// Topic suffixes under <namespace>/<lightID>/.
const (
	SuffixConnected = "connected"
	SuffixState     = "state"
	SuffixCommand   = "command"
	SuffixEffects   = "effects"
	SuffixConfig    = "config"
	SuffixDiscovery = "discovery"
	SuffixHello     = "hello"
)

// subscribedSuffixes are the per-light topics the messenger listens on.
var subscribedSuffixes = []string{SuffixConnected, SuffixState, SuffixEffects, SuffixConfig}

// routes maps an inbound topic suffix to a message kind.
var routes = map[string]Kind{
	SuffixConnected: KindConnected,
	SuffixState:     KindState,
	SuffixEffects:   KindEffectList,
	SuffixConfig:    KindConfig,
	SuffixHello:     KindDiscoveryResponse,
}

// route is the outcome of parsing an inbound topic.
type route struct {
	namespace string
	lightID   string
	suffix    string
}

// parseTopic splits "<namespace>/<lightID>/<suffix>".
// ok is false when the topic has fewer than two levels. The suffix is only
// set for exactly three levels, so deeper topics have no route.
func parseTopic(topic string) (route, bool) {
	parts := mqtt.Split(topic)
	if len(parts) < 2 {
		return route{}, false
	}
	r := route{namespace: parts[0], lightID: parts[1]}
	if len(parts) == 3 {
		r.suffix = parts[2]
	}
	return r, true
}

// lookupKind returns the kind for a suffix.
func lookupKind(suffix string) (Kind, bool) {
	k, ok := routes[suffix]
	return k, ok
}
