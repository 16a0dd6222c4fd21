package gateway

import (
	"context"
	"time"

	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/upstream"
)

// usageFetchTimeout bounds the background quota fetch; it must never
// outlive the request by much.
const usageFetchTimeout = 30 * time.Second

// refreshLogUsage fetches the credential's current quota snapshot and
// writes it onto the log row and the credential. Best effort: failures
// are logged, never surfaced, and never block the response.
func (g *Gateway) refreshLogUsage(logID int64, cred *store.Credential) {
	ctx, cancel := context.WithTimeout(context.Background(), usageFetchTimeout)
	defer cancel()

	usage, err := g.upstream.FetchUsage(ctx, upstream.Credential{
		Secret:   cred.Secret,
		Checksum: cred.Checksum,
	})
	if err != nil {
		g.logger.Warn("usage refresh failed", "log_id", logID, "credential_id", cred.ID, "error", err)
		return
	}

	if err := g.store.UpdateLogUsage(logID, usage); err != nil {
		g.logger.Error("writing log usage failed", "log_id", logID, "error", err)
	}
	if err := g.store.UpdateCredentialUsage(cred.ID, usage); err != nil {
		g.logger.Error("writing credential usage failed", "credential_id", cred.ID, "error", err)
	}
}
