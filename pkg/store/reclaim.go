package store

import (
	"fmt"
	"strings"
	"time"
)

// ReclaimResult reports what one reclamation pass removed.
type ReclaimResult struct {
	Credentials int64
	Logs        int64
}

// ReclaimExpired hard-deletes every credential that is Expired or has
// outlived its configured duration, together with all of its logs, in
// one transaction. It then truncates the write-ahead log so disk use
// stays bounded.
func (s *Store) ReclaimExpired(at time.Time) (ReclaimResult, error) {
	at = normalize(at)

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.expiredCredentialIDs(at)
	if err != nil {
		return ReclaimResult{}, err
	}
	if len(ids) == 0 {
		return ReclaimResult{}, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return ReclaimResult{}, err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var result ReclaimResult
	res, err := tx.Exec("DELETE FROM logs WHERE credential_id IN ("+placeholders+")", args...)
	if err != nil {
		return ReclaimResult{}, fmt.Errorf("store: reclaim logs: %w", err)
	}
	if result.Logs, err = res.RowsAffected(); err != nil {
		return ReclaimResult{}, err
	}

	res, err = tx.Exec("DELETE FROM credentials WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return ReclaimResult{}, fmt.Errorf("store: reclaim credentials: %w", err)
	}
	if result.Credentials, err = res.RowsAffected(); err != nil {
		return ReclaimResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return ReclaimResult{}, err
	}

	// Best effort; a full WAL only costs disk until the next pass.
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		s.logger.Warn("wal checkpoint failed", "error", err)
	}
	return result, nil
}

// expiredCredentialIDs returns the ids eligible for reclamation at the
// given instant: rows already marked Expired, and Active rows whose
// computed expiry has passed. Duration arithmetic happens here rather
// than in SQL so stored timestamps stay opaque to the query layer.
// Callers hold s.mu.
func (s *Store) expiredCredentialIDs(at time.Time) ([]int64, error) {
	rows, err := s.db.Query(
		"SELECT id, created_at, status, duration_seconds FROM credentials WHERE status = ? OR (status = ? AND duration_seconds > 0)",
		int(CredentialExpired), int(CredentialActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id, duration int64
		var createdAt time.Time
		var status int64
		if err := rows.Scan(&id, &createdAt, &status, &duration); err != nil {
			return nil, err
		}
		if CredentialStatus(status) == CredentialExpired {
			ids = append(ids, id)
			continue
		}
		expiry := createdAt.Add(time.Duration(duration) * time.Second)
		if !expiry.After(at) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
