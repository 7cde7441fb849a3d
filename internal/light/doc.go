// Package light synchronises MQTT LED controllers with the Prysma store.
//
// A light's state lives in three places: the SQLite store, the device on
// the other side of the broker, and the subscribers watching for changes.
// This package keeps them consistent.
//
//	caller ──▶ Service ──▶ Repository
//	              │
//	              └──▶ Messenger ──▶ broker ──▶ device
//	                                   │
//	device ──▶ broker ──▶ Messenger ──▶ Reconciler ──▶ Repository
//	                                        │
//	                                        └──▶ fan-out ──▶ WebSocket clients
//
// # Topics
//
// Devices publish on <namespace>/<lightID>/{connected,state,effects,config}
// and listen on <namespace>/<lightID>/command. Payloads are JSON and are
// validated by Decode before they reach the Reconciler; invalid device
// messages are logged and dropped.
//
// # Consistency
//
// Service and Reconciler share a KeyedLocker so every read-merge-write of a
// light is serialised. When the broker drops, every light is marked
// disconnected; when it comes back, every light is resubscribed.
//
// Commanded state is stored as soon as the command is published
// (ConfirmOptimistic). With ConfirmAck the service instead waits for the
// device to report a state carrying the command's mutation id.
package light
