package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/pool"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
	"mercator-hq/ganymede/pkg/upstream"
	"mercator-hq/ganymede/pkg/wire"
)

// UpstreamClient is the gateway's view of the provider. The production
// implementation is upstream.Client.
type UpstreamClient interface {
	StreamChat(ctx context.Context, cred upstream.Credential, body []byte) (io.ReadCloser, error)
	FetchUsage(ctx context.Context, cred upstream.Credential) (*store.UsageInfo, error)
}

// Options wires the gateway's collaborators.
type Options struct {
	Store    *store.Store
	Pool     *pool.Pool
	Upstream UpstreamClient
	Encoder  upstream.Encoder
	Runtime  *config.Runtime
	Metrics  *metrics.Collector

	// LogRetention is the per-user log cap enforced at admission.
	LogRetention int

	// Version is reported by the health endpoint.
	Version string
}

// Gateway orchestrates chat completion requests end to end.
type Gateway struct {
	store    *store.Store
	pool     *pool.Pool
	upstream UpstreamClient
	encoder  upstream.Encoder
	runtime  *config.Runtime
	metrics  *metrics.Collector
	logger   *slog.Logger

	logRetention int
	version      string
	started      time.Time

	totalRequests  atomic.Int64
	activeRequests atomic.Int64
}

// New creates a gateway. A nil encoder uses the default JSON encoder;
// a nil metrics collector disables instrumentation.
func New(opts Options) *Gateway {
	encoder := opts.Encoder
	if encoder == nil {
		encoder = upstream.JSONEncoder{}
	}
	retention := opts.LogRetention
	if retention <= 0 {
		retention = config.DefaultLogRetention
	}
	return &Gateway{
		store:        opts.Store,
		pool:         opts.Pool,
		upstream:     opts.Upstream,
		encoder:      encoder,
		runtime:      opts.Runtime,
		metrics:      opts.Metrics,
		logger:       slog.Default().With("component", "gateway"),
		logRetention: retention,
		version:      opts.Version,
		started:      time.Now(),
	}
}

// bearerToken extracts the caller's bearer token, or "".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return token
}

// authenticate resolves the request's bearer token to a user and
// enforces bans. The wire error is non-nil on rejection.
func (g *Gateway) authenticate(r *http.Request) (*store.User, *wire.ErrorResponse) {
	token := bearerToken(r)
	if token == "" {
		return nil, errMissingBearer()
	}

	user, err := g.store.UserByAuthToken(token)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errInvalidBearer()
		}
		return nil, g.internalError(err)
	}

	if user.Banned(time.Now()) {
		return nil, errUserBanned(*user.BanExpiresAt)
	}
	return user, nil
}

// isAdmin reports whether the user is the built-in administrator.
func isAdmin(u *store.User) bool {
	return u.ID == store.AdminUserID
}
