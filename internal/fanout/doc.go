// Package fanout broadcasts in-process events to any number of subscribers.
//
// A Broker is owned by the composition root and shared by the light service
// (publisher), the reconciler (publisher) and the WebSocket hub (consumer).
// Publish never blocks: each subscription has its own buffer and an event
// that does not fit is dropped for that subscriber only.
//
//	sub := broker.Subscribe("light.state_changed")
//	defer sub.Close()
//	for ev := range sub.C() {
//	    ...
//	}
package fanout
