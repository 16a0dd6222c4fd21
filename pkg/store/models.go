package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// User is a gateway caller, created on first external-identity login.
// Users are never hard-deleted.
type User struct {
	// ID is the server-assigned row id. ID 0 is the reserved built-in
	// administrator seeded at store initialization.
	ID int64

	// ExternalID is the identity-provider user id. Unique.
	ExternalID int64

	// Username is the external identity's login name.
	Username string

	// DisplayName is the external identity's display name.
	DisplayName string

	// TrustLevel mirrors the identity provider's trust level.
	TrustLevel int

	CreatedAt time.Time

	// BanExpiresAt is set while the user is banned; nil otherwise.
	BanExpiresAt *time.Time

	// BanCount is the number of bans ever applied.
	BanCount int

	// AuthToken is the bearer token the user authenticates with.
	// Unique across all users when present.
	AuthToken *string
}

// Banned reports whether the user has a ban active at the given instant.
func (u *User) Banned(now time.Time) bool {
	return u.BanExpiresAt != nil && u.BanExpiresAt.After(now)
}

// Credential is one pooled upstream account secret.
type Credential struct {
	ID        int64
	CreatedAt time.Time

	// Secret is the delegated upstream credential. Globally unique.
	Secret string

	// Checksum accompanies the secret on every upstream call.
	Checksum string

	// Alias is an optional per-owner name. (Alias, OwnerID) is unique
	// when set.
	Alias *string

	Status CredentialStatus

	// PendingSince is the instant the credential becomes eligible for
	// selection again; selection writes now+grace here.
	PendingSince time.Time

	// OwnerID references the registering user.
	OwnerID int64

	// IsPublic marks a credential donated for shared use.
	IsPublic bool

	// DurationSeconds bounds the credential's life from CreatedAt;
	// zero means no computed expiry.
	DurationSeconds int64

	// Usage is the last known upstream plan usage, if fetched.
	Usage *UsageInfo
}

// ExpiresAt returns the computed expiry instant and whether one exists.
func (c *Credential) ExpiresAt() (time.Time, bool) {
	if c.DurationSeconds <= 0 {
		return time.Time{}, false
	}
	return c.CreatedAt.Add(time.Duration(c.DurationSeconds) * time.Second), true
}

// UsageInfo is the upstream account's remaining-quota snapshot. It is
// persisted as the packed text "fast,max,plan,trial".
type UsageInfo struct {
	FastRequests    int
	MaxFastRequests int
	PlanType        string
	TrialDays       int
}

// pack renders the stored text form.
func (u *UsageInfo) pack() string {
	return fmt.Sprintf("%d,%d,%s,%d", u.FastRequests, u.MaxFastRequests, u.PlanType, u.TrialDays)
}

// parseUsageInfo decodes the packed text form.
func parseUsageInfo(s string) (*UsageInfo, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("malformed usage string %q", s)
	}
	fast, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed usage string %q: %w", s, err)
	}
	max, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed usage string %q: %w", s, err)
	}
	trial, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("malformed usage string %q: %w", s, err)
	}
	return &UsageInfo{
		FastRequests:    fast,
		MaxFastRequests: max,
		PlanType:        parts[2],
		TrialDays:       trial,
	}, nil
}

// RequestLog is the durable record of one chat completion request.
type RequestLog struct {
	ID        int64
	Timestamp time.Time

	// CredentialID references the credential the request used.
	CredentialID int64

	// Prompt is the upstream-echoed debug payload, captured for audit
	// only, never returned to the caller of the original request.
	Prompt *string

	Model  string
	Stream bool
	Status LogStatus

	// Error carries the failure text for Failed rows.
	Error *string

	// Usage is written asynchronously by the best-effort usage fetch.
	Usage *UsageInfo
}
