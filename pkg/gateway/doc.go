// Package gateway is the request orchestrator: it authenticates the
// caller, draws a credential from the pool, admits and logs the
// request, dispatches it upstream, and drives the stream translator
// into the caller-facing response. The HTTP handlers for the public
// API also live here.
package gateway
