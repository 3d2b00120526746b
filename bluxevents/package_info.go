// Package bluxevents defines the analytics event data model used by the Blux
// client SDK: the Event type, builders with field validation, and the typed
// convenience builders for common commerce events.
//
// Events built from this package are valid by construction. The delivery
// pipeline in the main blux package assumes this and performs no further
// validation of its own.
package bluxevents
