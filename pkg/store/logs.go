package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const logColumns = "id, timestamp, credential_id, prompt, model, stream, status, error, usage"

// InsertLog records the start of a request in Pending status and
// returns the assigned row id.
func (s *Store) InsertLog(credentialID int64, model string, stream bool) (int64, error) {
	if err := maxLen("model", model, MaxModelLength); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO logs (timestamp, credential_id, model, stream, status)
		VALUES (?, ?, ?, ?, ?)`,
		now(), credentialID, model, stream, int(LogPending))
	if err != nil {
		return 0, mapConstraint("log", err)
	}
	return res.LastInsertId()
}

// LogByID fetches a log row by id.
func (s *Store) LogByID(id int64) (*RequestLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+logColumns+" FROM logs WHERE id = ?", id)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "log", Key: fmt.Sprintf("id=%d", id)}
	}
	return l, err
}

// LogsByOwner lists the non-deleted logs of every credential the user
// owns, newest first.
func (s *Store) LogsByOwner(ownerID int64, limit int) ([]*RequestLog, error) {
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT `+logColumns+` FROM logs
		WHERE credential_id IN (SELECT id FROM credentials WHERE owner_id = ?)
		  AND status != ?
		ORDER BY id DESC LIMIT ?`,
		ownerID, int(LogDeleted), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

// LogsByCredential lists a credential's non-deleted logs, newest first.
func (s *Store) LogsByCredential(credentialID int64, limit int) ([]*RequestLog, error) {
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT "+logColumns+" FROM logs WHERE credential_id = ? AND status != ? ORDER BY id DESC LIMIT ?",
		credentialID, int(LogDeleted), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

// FinishLog resolves a Pending log exactly once. Success rows carry no
// error text; failure rows carry errText.
func (s *Store) FinishLog(id int64, status LogStatus, errText *string) error {
	if status != LogSuccess && status != LogFailed {
		return &ValidationError{Field: "status", Reason: "finish requires success or failed"}
	}
	if status == LogSuccess {
		errText = nil
	}
	if err := maxLenPtr("error", errText, MaxErrorLength); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE logs SET status = ?, error = ? WHERE id = ? AND status = ?",
		int(status), errText, id, int(LogPending))
	if err != nil {
		return err
	}
	return requireRow(res, "log", fmt.Sprintf("id=%d", id))
}

// UpdateLogPrompt attaches the upstream-echoed prompt to a log row.
func (s *Store) UpdateLogPrompt(id int64, prompt string) error {
	if err := maxLen("prompt", prompt, MaxPromptLength); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE logs SET prompt = ? WHERE id = ?", prompt, id)
	if err != nil {
		return err
	}
	return requireRow(res, "log", fmt.Sprintf("id=%d", id))
}

// UpdateLogUsage attaches the asynchronously fetched quota snapshot to
// a log row.
func (s *Store) UpdateLogUsage(id int64, usage *UsageInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var packed *string
	if usage != nil {
		v := usage.pack()
		packed = &v
	}
	res, err := s.db.Exec("UPDATE logs SET usage = ? WHERE id = ?", packed, id)
	if err != nil {
		return err
	}
	return requireRow(res, "log", fmt.Sprintf("id=%d", id))
}

// CountUserLogs counts the non-deleted logs across a user's credentials.
func (s *Store) CountUserLogs(ownerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM logs
		WHERE credential_id IN (SELECT id FROM credentials WHERE owner_id = ?)
		  AND status != ?`,
		ownerID, int(LogDeleted)).Scan(&n)
	return n, err
}

// PruneUserLogs soft-deletes the user's oldest non-deleted logs so that
// at most keep remain. It returns the number of rows marked Deleted.
func (s *Store) PruneUserLogs(ownerID int64, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE logs SET status = ?
		WHERE status != ?
		  AND credential_id IN (SELECT id FROM credentials WHERE owner_id = ?)
		  AND id NOT IN (
			SELECT id FROM logs
			WHERE status != ?
			  AND credential_id IN (SELECT id FROM credentials WHERE owner_id = ?)
			ORDER BY id DESC LIMIT ?
		  )`,
		int(LogDeleted), int(LogDeleted), ownerID, int(LogDeleted), ownerID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanLog(row rowScanner) (*RequestLog, error) {
	var l RequestLog
	var status int64
	var usage *string
	err := row.Scan(&l.ID, &l.Timestamp, &l.CredentialID, &l.Prompt,
		&l.Model, &l.Stream, &status, &l.Error, &usage)
	if err != nil {
		return nil, err
	}
	if l.Status, err = logStatusFromInt(status); err != nil {
		return nil, err
	}
	if usage != nil {
		if l.Usage, err = parseUsageInfo(*usage); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

func collectLogs(rows *sql.Rows) ([]*RequestLog, error) {
	var out []*RequestLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
