// Package metric provides Prometheus-based metrics collection and an HTTP
// server exposing them.
//
// Registry manages registration of client-specific collectors under a
// "client.metric" key with duplicate detection; Server exposes the registry
// in Prometheus format plus a /health endpoint.
//
// Components create their own Metrics structs against a Registry (see the
// engineclient package) so that metric ownership follows component
// ownership; the registry only handles lifecycle and the HTTP surface.
package metric
