package pool

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// ErrNoCredentials is returned when no credential is eligible for the
// caller at selection time.
var ErrNoCredentials = errors.New("no eligible credentials available")

// SelectionGrace is how long a just-selected credential stays out of
// subsequent draws.
const SelectionGrace = time.Minute

// Pool draws credentials from the store for incoming requests.
type Pool struct {
	store   *store.Store
	metrics *metrics.Collector
	logger  *slog.Logger

	// intn is swapped in tests for a deterministic draw.
	intn func(n int) int
}

// New creates a pool over the given store. The metrics collector may
// be nil.
func New(s *store.Store, collector *metrics.Collector) *Pool {
	return &Pool{
		store:   s,
		metrics: collector,
		logger:  slog.Default().With("component", "pool"),
		intn:    rand.IntN,
	}
}

// SelectFor draws one eligible credential for the caller, moves it to
// Pending and opens its grace window. The administrator draws across
// every owner; other callers only draw their own credentials.
func (p *Pool) SelectFor(ctx context.Context, callerID int64) (*store.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	var eligible []*store.Credential
	var err error
	if callerID == store.AdminUserID {
		eligible, err = p.store.AllEligibleCredentials(now)
	} else {
		eligible, err = p.store.EligibleCredentials(callerID, now)
	}
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoCredentials
	}

	winner := eligible[p.intn(len(eligible))]
	if err := p.store.MarkCredentialPending(winner.ID, SelectionGrace); err != nil {
		// The winner may have been reclaimed between the read and the
		// write; the caller retries on the next request.
		return nil, err
	}

	p.logger.Debug("credential selected",
		"credential_id", winner.ID,
		"eligible", len(eligible),
	)
	p.refreshGauges()
	return winner, nil
}

// Release reports the outcome of a request made with the credential.
// A success restores Active and reopens eligibility immediately; a
// credential failure (upstream rejected the secret) expires it so
// reclamation removes it. A draw that is never released heals on its
// own once the grace window elapses.
func (p *Pool) Release(id int64, credentialFailed bool) {
	var err error
	if credentialFailed {
		err = p.store.UpdateCredentialStatus(id, store.CredentialExpired)
		p.logger.Warn("credential expired after upstream rejection", "credential_id", id)
	} else {
		err = p.store.MarkCredentialActive(id)
	}
	if err != nil && !store.IsNotFound(err) && !store.IsValidation(err) {
		p.logger.Error("credential release failed", "credential_id", id, "error", err)
	}
	p.refreshGauges()
}

// FindByAlias resolves a credential by alias for the caller. The
// administrator may look across all owners; other callers only see
// their own. Terminal credentials are invisible.
func (p *Pool) FindByAlias(callerID int64, alias string) (*store.Credential, error) {
	var cred *store.Credential
	var err error
	if callerID == store.AdminUserID {
		cred, err = p.store.CredentialByAlias(alias)
	} else {
		cred, err = p.store.CredentialByAliasAndOwner(alias, callerID)
	}
	if err != nil {
		return nil, err
	}
	if cred.Status.Terminal() {
		return nil, &store.NotFoundError{Entity: "credential", Key: "alias=" + alias}
	}
	return cred, nil
}

// refreshGauges pushes current pool composition to the metrics
// collector. Failures are logged only; gauge staleness is harmless.
func (p *Pool) refreshGauges() {
	if p.metrics == nil {
		return
	}
	counts, err := p.store.CountCredentialsByStatus()
	if err != nil {
		p.logger.Error("credential gauge refresh failed", "error", err)
		return
	}
	for _, status := range []store.CredentialStatus{
		store.CredentialPending, store.CredentialActive,
		store.CredentialExpired, store.CredentialDeleted,
	} {
		p.metrics.SetCredentialCount(status.String(), counts[status])
	}
}
