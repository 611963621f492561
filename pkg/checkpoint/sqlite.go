package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists checkpoints in a single SQLite database. Suitable when
// many small stage results would otherwise litter a directory.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const createCheckpoints = `
CREATE TABLE IF NOT EXISTS checkpoints (
	project TEXT NOT NULL,
	stage TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (project, stage)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_project ON checkpoints(project);
`

// NewSQLiteStore opens (or creates) the checkpoint database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(createCheckpoints); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate checkpoint db: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(project, stage string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint data: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO checkpoints (project, stage, timestamp, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(project, stage) DO UPDATE SET
			timestamp = excluded.timestamp,
			data = excluded.data
	`, project, stage, time.Now().UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return fmt.Sprintf("%s#%s_%s", s.path, project, stage), nil
}

// Load implements Store.
func (s *SQLiteStore) Load(project, stage string) (json.RawMessage, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM checkpoints WHERE project = ? AND stage = ?`,
		project, stage,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// Exists implements Store.
func (s *SQLiteStore) Exists(project, stage string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM checkpoints WHERE project = ? AND stage = ?`,
		project, stage,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check checkpoint: %w", err)
	}
	return true, nil
}

// List implements Store.
func (s *SQLiteStore) List(project string) ([]Info, error) {
	query := `SELECT project, stage, timestamp FROM checkpoints`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY project, stage`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var ts string
		if err := rows.Scan(&info.Project, &info.Stage, &ts); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		// Rows with unparseable timestamps are still listed; the payload is
		// what matters for resume.
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		info.Location = fmt.Sprintf("%s#%s_%s", s.path, info.Project, info.Stage)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(project, stage string) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM checkpoints WHERE project = ? AND stage = ?`,
		project, stage,
	)
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(project string) error {
	query := `DELETE FROM checkpoints`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
