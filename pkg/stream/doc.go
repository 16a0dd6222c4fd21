// Package stream translates the upstream framed byte stream into
// OpenAI-compatible output: server-sent event chunks in streaming mode,
// one aggregated completion otherwise. The translator is push-driven
// and indifferent to how the network fragments the byte stream.
package stream
