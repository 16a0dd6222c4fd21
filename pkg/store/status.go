package store

import "fmt"

// CredentialStatus is the lifecycle state of a pooled credential.
//
// Transitions: Pending -> Active -> Expired|Deleted, and Active ->
// Pending on every selection. Expired and Deleted are terminal.
type CredentialStatus int

const (
	// CredentialPending marks a credential newly selected for an
	// in-flight request, or newly created without prior validation. It
	// is ineligible for selection until its grace window elapses.
	CredentialPending CredentialStatus = iota

	// CredentialActive marks a validated credential, eligible for
	// selection once now >= pending_since.
	CredentialActive

	// CredentialExpired marks a credential awaiting reclamation.
	CredentialExpired

	// CredentialDeleted marks a credential hidden from all external
	// responses.
	CredentialDeleted
)

// String returns the lowercase name used in API responses and logs.
func (s CredentialStatus) String() string {
	switch s {
	case CredentialPending:
		return "pending"
	case CredentialActive:
		return "active"
	case CredentialExpired:
		return "expired"
	case CredentialDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("credential_status(%d)", int(s))
	}
}

// Terminal reports whether the status admits no further transitions.
func (s CredentialStatus) Terminal() bool {
	return s == CredentialExpired || s == CredentialDeleted
}

// credentialStatusFromInt converts a stored integer back to a status,
// failing on values outside the closed set.
func credentialStatusFromInt(v int64) (CredentialStatus, error) {
	if v < int64(CredentialPending) || v > int64(CredentialDeleted) {
		return 0, fmt.Errorf("credential status out of range: %d", v)
	}
	return CredentialStatus(v), nil
}

// LogStatus is the outcome state of a request log row.
//
// A row starts Pending and transitions exactly once to Success, Failed,
// or (via bulk retention pruning) Deleted.
type LogStatus int

const (
	LogPending LogStatus = iota
	LogSuccess
	LogFailed
	LogDeleted
)

// String returns the lowercase name used in API responses and logs.
func (s LogStatus) String() string {
	switch s {
	case LogPending:
		return "pending"
	case LogSuccess:
		return "success"
	case LogFailed:
		return "failed"
	case LogDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("log_status(%d)", int(s))
	}
}

func logStatusFromInt(v int64) (LogStatus, error) {
	if v < int64(LogPending) || v > int64(LogDeleted) {
		return 0, fmt.Errorf("log status out of range: %d", v)
	}
	return LogStatus(v), nil
}
