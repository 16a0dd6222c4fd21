// Package wire defines the JSON types of the gateway's public API:
// OpenAI-compatible chat completion requests, aggregated responses,
// streaming chunks, and the error envelope.
package wire
