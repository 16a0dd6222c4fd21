// Package upstream talks to the third-party model provider: it encodes
// chat requests into the provider's framed binary body, opens the
// streaming response, and fetches account quota snapshots. The frame
// codec shared with the stream translator also lives here.
package upstream
