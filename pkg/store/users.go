package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = "id, external_id, username, display_name, trust_level, created_at, ban_expires_at, ban_count, auth_token"

// InsertUser creates a new user row and returns it with the assigned id.
// The caller supplies external identity fields; CreatedAt and BanCount
// are set here.
func (s *Store) InsertUser(externalID int64, username, displayName string, trustLevel int) (*User, error) {
	if err := maxLen("username", username, MaxNameLength); err != nil {
		return nil, err
	}
	if err := maxLen("display_name", displayName, MaxNameLength); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := now()
	res, err := s.db.Exec(`
		INSERT INTO users (external_id, username, display_name, trust_level, created_at, ban_count)
		VALUES (?, ?, ?, ?, ?, 0)`,
		externalID, username, displayName, trustLevel, createdAt)
	if err != nil {
		return nil, mapConstraint("user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{
		ID:          id,
		ExternalID:  externalID,
		Username:    username,
		DisplayName: displayName,
		TrustLevel:  trustLevel,
		CreatedAt:   createdAt,
	}, nil
}

// UserByID fetches a user by row id.
func (s *Store) UserByID(id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryUser("id = ?", fmt.Sprintf("id=%d", id), id)
}

// UserByExternalID fetches a user by identity-provider id.
func (s *Store) UserByExternalID(externalID int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryUser("external_id = ?", fmt.Sprintf("external_id=%d", externalID), externalID)
}

// UserByAuthToken fetches the user holding the given bearer token.
func (s *Store) UserByAuthToken(token string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryUser("auth_token = ?", "auth_token", token)
}

// UpdateUserAuthToken replaces (or clears, with nil) a user's bearer
// token.
func (s *Store) UpdateUserAuthToken(id int64, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE users SET auth_token = ? WHERE id = ?", token, id)
	if err != nil {
		return mapConstraint("user", err)
	}
	return requireRow(res, "user", fmt.Sprintf("id=%d", id))
}

// UpdateUserBan records a ban ending at expiresAt and increments the
// user's ban count. A nil expiresAt lifts the ban without touching the
// count.
func (s *Store) UpdateUserBan(id int64, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	var err error
	if expiresAt == nil {
		res, err = s.db.Exec("UPDATE users SET ban_expires_at = NULL WHERE id = ?", id)
	} else {
		until := normalize(*expiresAt)
		res, err = s.db.Exec(
			"UPDATE users SET ban_expires_at = ?, ban_count = ban_count + 1 WHERE id = ?",
			until, id)
	}
	if err != nil {
		return err
	}
	return requireRow(res, "user", fmt.Sprintf("id=%d", id))
}

// queryUser runs a single-row user lookup. Callers hold s.mu.
func (s *Store) queryUser(where, key string, args ...any) (*User, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE "+where, args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "user", Key: key}
	}
	return u, err
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.DisplayName,
		&u.TrustLevel, &u.CreatedAt, &u.BanExpiresAt, &u.BanCount, &u.AuthToken)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// requireRow converts a zero-row update into a NotFoundError.
func requireRow(res sql.Result, entity, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Entity: entity, Key: key}
	}
	return nil
}
