// Ganymede is an OpenAI-compatible chat gateway backed by a pool of
// delegated upstream credentials.
//
// It exposes the familiar /v1/chat/completions surface, draws one
// pooled credential per request, translates the upstream's framed
// binary stream into SSE chunks or a single aggregated response, and
// records every request in an embedded SQLite store.
//
// Usage:
//
//	# Start the gateway with default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /etc/ganymede/config.yaml
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
