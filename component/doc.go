// Package component defines the lifecycle contract shared by the pieces a
// shop client is assembled from: the HTTP adapter, telemetry providers and
// the session. A Registry starts them in dependency order and stops them in
// reverse.
package component
