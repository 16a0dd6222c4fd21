package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const credentialColumns = "id, created_at, secret, checksum, alias, status, pending_since, owner_id, is_public, duration_seconds, usage"

// NewCredential carries the caller-supplied fields for registration.
type NewCredential struct {
	Secret          string
	Checksum        string
	Alias           *string
	OwnerID         int64
	IsPublic        bool
	DurationSeconds int64
}

// InsertCredential registers a credential in Pending status with an
// immediately elapsed grace window, so the first validation pass can
// pick it up.
func (s *Store) InsertCredential(nc NewCredential) (*Credential, error) {
	if err := maxLen("secret", nc.Secret, MaxSecretLength); err != nil {
		return nil, err
	}
	if err := maxLen("checksum", nc.Checksum, MaxChecksumLength); err != nil {
		return nil, err
	}
	if err := maxLenPtr("alias", nc.Alias, MaxAliasLength); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := now()
	res, err := s.db.Exec(`
		INSERT INTO credentials (created_at, secret, checksum, alias, status, pending_since, owner_id, is_public, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt, nc.Secret, nc.Checksum, nc.Alias, int(CredentialPending),
		createdAt, nc.OwnerID, nc.IsPublic, nc.DurationSeconds)
	if err != nil {
		return nil, mapConstraint("credential", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Credential{
		ID:              id,
		CreatedAt:       createdAt,
		Secret:          nc.Secret,
		Checksum:        nc.Checksum,
		Alias:           nc.Alias,
		Status:          CredentialPending,
		PendingSince:    createdAt,
		OwnerID:         nc.OwnerID,
		IsPublic:        nc.IsPublic,
		DurationSeconds: nc.DurationSeconds,
	}, nil
}

// CredentialByID fetches a credential by row id.
func (s *Store) CredentialByID(id int64) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCredential("id = ?", fmt.Sprintf("id=%d", id), id)
}

// CredentialBySecret fetches a credential by its upstream secret.
func (s *Store) CredentialBySecret(secret string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCredential("secret = ?", "secret", secret)
}

// CredentialByAliasAndOwner fetches the owner's credential with the
// given alias.
func (s *Store) CredentialByAliasAndOwner(alias string, ownerID int64) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCredential("alias = ? AND owner_id = ?",
		fmt.Sprintf("alias=%s owner_id=%d", alias, ownerID), alias, ownerID)
}

// CredentialByAlias fetches any user's credential with the given alias.
// Administrator-only lookups use this cross-owner form; it returns the
// oldest match when aliases collide across owners.
func (s *Store) CredentialByAlias(alias string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCredential("alias = ? ORDER BY id LIMIT 1",
		fmt.Sprintf("alias=%s", alias), alias)
}

// CredentialsByOwner lists a user's credentials, newest first, hiding
// Deleted rows.
func (s *Store) CredentialsByOwner(ownerID int64) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT "+credentialColumns+" FROM credentials WHERE owner_id = ? AND status != ? ORDER BY id DESC LIMIT ?",
		ownerID, int(CredentialDeleted), MaxQueryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// EligibleCredentials lists every credential of the caller eligible
// for selection at the given instant: non-terminal status with an
// elapsed grace window. Cross-owner selection is an administrator
// capability served by AllEligibleCredentials, never by this query.
func (s *Store) EligibleCredentials(callerID int64, at time.Time) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT "+credentialColumns+` FROM credentials
		 WHERE status IN (?, ?) AND pending_since <= ? AND owner_id = ?
		 ORDER BY id LIMIT ?`,
		int(CredentialPending), int(CredentialActive), normalize(at), callerID, MaxQueryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// AllEligibleCredentials lists every selection-eligible credential
// regardless of owner. Administrator selection only.
func (s *Store) AllEligibleCredentials(at time.Time) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT "+credentialColumns+" FROM credentials WHERE status IN (?, ?) AND pending_since <= ? ORDER BY id LIMIT ?",
		int(CredentialPending), int(CredentialActive), normalize(at), MaxQueryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// MarkCredentialPending transitions a just-selected credential to
// Pending and opens its grace window: the row is ineligible for
// selection until the window elapses. Terminal rows are not touched.
func (s *Store) MarkCredentialPending(id int64, grace time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE credentials SET status = ?, pending_since = ? WHERE id = ? AND status IN (?, ?)",
		int(CredentialPending), now().Add(grace), id, int(CredentialPending), int(CredentialActive))
	if err != nil {
		return err
	}
	return requireRow(res, "credential", fmt.Sprintf("id=%d", id))
}

// MarkCredentialActive restores a Pending credential to Active and
// reopens its eligibility immediately.
func (s *Store) MarkCredentialActive(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE credentials SET status = ?, pending_since = ? WHERE id = ? AND status = ?",
		int(CredentialActive), now(), id, int(CredentialPending))
	if err != nil {
		return err
	}
	return requireRow(res, "credential", fmt.Sprintf("id=%d", id))
}

// UpdateCredentialStatus transitions a credential's lifecycle status.
// Transitions out of a terminal status are rejected.
func (s *Store) UpdateCredentialStatus(id int64, status CredentialStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRow("SELECT status FROM credentials WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: "credential", Key: fmt.Sprintf("id=%d", id)}
	}
	if err != nil {
		return err
	}
	cur, err := credentialStatusFromInt(current)
	if err != nil {
		return err
	}
	if cur.Terminal() && status != cur {
		return &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition from %s to %s", cur, status),
		}
	}

	if _, err := tx.Exec("UPDATE credentials SET status = ? WHERE id = ?", int(status), id); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateCredentialAlias renames (or clears, with nil) a credential's
// per-owner alias.
func (s *Store) UpdateCredentialAlias(id int64, alias *string) error {
	if err := maxLenPtr("alias", alias, MaxAliasLength); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE credentials SET alias = ? WHERE id = ?", alias, id)
	if err != nil {
		return mapConstraint("credential", err)
	}
	return requireRow(res, "credential", fmt.Sprintf("id=%d", id))
}

// UpdateCredentialVisibility toggles the credential's shared-pool flag.
func (s *Store) UpdateCredentialVisibility(id int64, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE credentials SET is_public = ? WHERE id = ?", public, id)
	if err != nil {
		return err
	}
	return requireRow(res, "credential", fmt.Sprintf("id=%d", id))
}

// UpdateCredentialUsage stores the latest upstream quota snapshot.
func (s *Store) UpdateCredentialUsage(id int64, usage *UsageInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var packed *string
	if usage != nil {
		v := usage.pack()
		packed = &v
	}
	res, err := s.db.Exec("UPDATE credentials SET usage = ? WHERE id = ?", packed, id)
	if err != nil {
		return err
	}
	return requireRow(res, "credential", fmt.Sprintf("id=%d", id))
}

// CountCredentialsByStatus returns credential counts keyed by status.
func (s *Store) CountCredentialsByStatus() (map[CredentialStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM credentials GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[CredentialStatus]int)
	for rows.Next() {
		var raw int64
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		status, err := credentialStatusFromInt(raw)
		if err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// queryCredential runs a single-row credential lookup. Callers hold s.mu.
func (s *Store) queryCredential(where, key string, args ...any) (*Credential, error) {
	row := s.db.QueryRow("SELECT "+credentialColumns+" FROM credentials WHERE "+where, args...)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "credential", Key: key}
	}
	return c, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var c Credential
	var status int64
	var usage *string
	err := row.Scan(&c.ID, &c.CreatedAt, &c.Secret, &c.Checksum, &c.Alias,
		&status, &c.PendingSince, &c.OwnerID, &c.IsPublic, &c.DurationSeconds, &usage)
	if err != nil {
		return nil, err
	}
	if c.Status, err = credentialStatusFromInt(status); err != nil {
		return nil, err
	}
	if usage != nil {
		if c.Usage, err = parseUsageInfo(*usage); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func collectCredentials(rows *sql.Rows) ([]*Credential, error) {
	var out []*Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
