package gateway

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"mercator-hq/ganymede/pkg/credinfo"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/upstream"
	"mercator-hq/ganymede/pkg/wire"
)

// Routes builds the gateway's HTTP mux. The metrics handler is
// registered separately by the server so a disabled collector leaves
// no endpoint behind.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", g.ChatCompletions)
	mux.HandleFunc("GET /v1/models", g.Models)
	mux.HandleFunc("POST /v1/credentials", g.RegisterCredential)
	mux.HandleFunc("GET /v1/credentials", g.ListCredentials)
	mux.HandleFunc("GET /v1/logs", g.ListLogs)
	mux.HandleFunc("GET /health", g.Health)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})
	return mux
}

// Models handles GET /v1/models.
func (g *Gateway) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelList())
}

// healthResponse is the health endpoint document. Stats appear only
// for the administrator.
type healthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Uptime  int64        `json:"uptime"`
	Models  []string     `json:"models"`
	Stats   *healthStats `json:"stats,omitempty"`
}

type healthStats struct {
	Started        string `json:"started"`
	TotalRequests  int64  `json:"total_requests"`
	ActiveRequests int64  `json:"active_requests"`
	Goroutines     int    `json:"goroutines"`
}

// Health handles GET /health. It never fails; an administrator bearer
// adds process counters to the document.
func (g *Gateway) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "healthy",
		Version: g.version,
		Uptime:  int64(time.Since(g.started).Seconds()),
	}
	for _, m := range availableModels {
		resp.Models = append(resp.Models, m.ID)
	}

	if token := bearerToken(r); token != "" {
		if user, err := g.store.UserByAuthToken(token); err == nil && isAdmin(user) && !user.Banned(time.Now()) {
			resp.Stats = &healthStats{
				Started:        g.started.UTC().Format(time.RFC3339),
				TotalRequests:  g.totalRequests.Load(),
				ActiveRequests: g.activeRequests.Load(),
				Goroutines:     runtime.NumGoroutine(),
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// registerCredentialRequest is the POST /v1/credentials payload.
type registerCredentialRequest struct {
	Secret   string  `json:"secret"`
	Alias    *string `json:"alias,omitempty"`
	IsPublic bool    `json:"is_public,omitempty"`

	// Checksum is optional; a missing or malformed value is replaced
	// by a freshly generated one.
	Checksum string `json:"checksum,omitempty"`
}

// credentialView is the external form of a credential. The secret
// never leaves the store through this endpoint.
type credentialView struct {
	ID        int64            `json:"id"`
	Alias     *string          `json:"alias,omitempty"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	IsPublic  bool             `json:"is_public"`
	Usage     *store.UsageInfo `json:"usage,omitempty"`
}

func viewCredential(c *store.Credential) credentialView {
	v := credentialView{
		ID:        c.ID,
		Alias:     c.Alias,
		Status:    c.Status.String(),
		CreatedAt: c.CreatedAt,
		IsPublic:  c.IsPublic,
		Usage:     c.Usage,
	}
	if exp, ok := c.ExpiresAt(); ok {
		v.ExpiresAt = &exp
	}
	return v
}

// RegisterCredential handles POST /v1/credentials: inspect the secret,
// derive its lifetime from the payload, and add it to the pool in
// Pending status until validated by first use.
func (g *Gateway) RegisterCredential(w http.ResponseWriter, r *http.Request) {
	user, werr := g.authenticate(r)
	if werr != nil {
		writeError(w, werr)
		return
	}

	var req registerCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidJSON(err))
		return
	}

	payload, err := credinfo.Inspect(req.Secret)
	if err != nil {
		writeError(w, wire.NewErrorResponse(err.Error(), wire.ErrorTypeInvalidRequest, "secret", wire.CodeInvalidValue))
		return
	}

	checksum := req.Checksum
	if !upstream.ValidChecksum(checksum) {
		checksum = upstream.GenerateChecksum()
	}

	cred, err := g.store.InsertCredential(store.NewCredential{
		Secret:          req.Secret,
		Checksum:        checksum,
		Alias:           req.Alias,
		OwnerID:         user.ID,
		IsPublic:        req.IsPublic,
		DurationSeconds: int64(time.Until(payload.ExpiresAt()).Seconds()),
	})
	if err != nil {
		switch {
		case store.IsValidation(err):
			writeError(w, wire.NewErrorResponse(err.Error(), wire.ErrorTypeInvalidRequest, "", wire.CodeInvalidValue))
		case store.IsConstraint(err):
			writeError(w, wire.NewErrorResponse("credential already registered", wire.ErrorTypeInvalidRequest, "", wire.CodeInvalidValue))
		default:
			writeError(w, g.internalError(err))
		}
		return
	}

	// Inspection passed, so the credential enters the pool directly.
	if err := g.store.UpdateCredentialStatus(cred.ID, store.CredentialActive); err != nil {
		writeError(w, g.internalError(err))
		return
	}
	cred.Status = store.CredentialActive

	g.logger.Info("credential registered",
		"credential_id", cred.ID,
		"owner_id", user.ID,
		"subject", payload.Subject(),
	)
	writeJSON(w, http.StatusCreated, viewCredential(cred))
}

// ListCredentials handles GET /v1/credentials. An administrator may
// scope to another owner with ?owner=<id>.
func (g *Gateway) ListCredentials(w http.ResponseWriter, r *http.Request) {
	user, werr := g.authenticate(r)
	if werr != nil {
		writeError(w, werr)
		return
	}

	ownerID, werr := scopeOwner(user, r)
	if werr != nil {
		writeError(w, werr)
		return
	}

	creds, err := g.store.CredentialsByOwner(ownerID)
	if err != nil {
		writeError(w, g.internalError(err))
		return
	}

	views := make([]credentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, viewCredential(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"total":       len(views),
		"credentials": views,
	})
}

// logView is the external form of a log row.
type logView struct {
	ID           int64            `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	CredentialID int64            `json:"credential_id"`
	Model        string           `json:"model"`
	Stream       bool             `json:"stream"`
	Status       string           `json:"status"`
	Error        *string          `json:"error,omitempty"`
	Usage        *store.UsageInfo `json:"usage,omitempty"`
}

// ListLogs handles GET /v1/logs. An administrator may scope to another
// owner with ?owner=<id>.
func (g *Gateway) ListLogs(w http.ResponseWriter, r *http.Request) {
	user, werr := g.authenticate(r)
	if werr != nil {
		writeError(w, werr)
		return
	}

	ownerID, werr := scopeOwner(user, r)
	if werr != nil {
		writeError(w, werr)
		return
	}

	logs, err := g.store.LogsByOwner(ownerID, 0)
	if err != nil {
		writeError(w, g.internalError(err))
		return
	}

	views := make([]logView, 0, len(logs))
	for _, l := range logs {
		views = append(views, logView{
			ID:           l.ID,
			Timestamp:    l.Timestamp,
			CredentialID: l.CredentialID,
			Model:        l.Model,
			Stream:       l.Stream,
			Status:       l.Status.String(),
			Error:        l.Error,
			Usage:        l.Usage,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"total":  len(views),
		"logs":   views,
	})
}

// scopeOwner resolves the effective owner for list endpoints: the
// caller, or any owner via ?owner=<id> when the caller is the
// administrator.
func scopeOwner(user *store.User, r *http.Request) (int64, *wire.ErrorResponse) {
	raw := r.URL.Query().Get("owner")
	if raw == "" {
		return user.ID, nil
	}
	if !isAdmin(user) {
		return 0, wire.NewErrorResponse("owner scoping requires administrator access",
			wire.ErrorTypePermissionDenied, "owner", "")
	}
	ownerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, wire.NewErrorResponse("owner must be a numeric user id",
			wire.ErrorTypeInvalidRequest, "owner", wire.CodeInvalidValue)
	}
	return ownerID, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status line is already gone; nothing to recover.
		return
	}
}
