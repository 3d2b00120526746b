// Package blux is the main package for the Blux client-side SDK.
//
// The SDK records user behavior events (views, likes, purchases, ratings and
// application-defined events), batches them over a short window, and delivers
// them to the Blux collection API. Responses to those deliveries can carry an
// in-app message selected by the server, which the SDK queues and presents
// one at a time through a host-provided surface.
//
// The entry point is MakeClient (or MakeCustomClient for non-default
// configuration). Events are built with the bluxevents package and recorded
// with Client.SendRequest or Client.RecordEvent.
package blux
