// Package mqtt wraps the paho MQTT client for talking to Prysma lights.
//
// Each light owns a set of topics under a shared namespace:
//
//	prysmalight/<lightID>/connected   device online flag (retained by firmware)
//	prysmalight/<lightID>/state       state reports, echoing command mutation ids
//	prysmalight/<lightID>/command     commands from this service
//	prysmalight/<lightID>/effects     supported effect list
//	prysmalight/<lightID>/config      hardware descriptor
//
// The service announces itself on prysmalight/server/status with a retained
// online message and an offline Last Will.
//
// Sessions are clean and subscriptions are not restored by this package;
// the light reconciler re-subscribes from storage after every connect.
package mqtt
