package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/split"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS job_records (
	job_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	source_bucket TEXT NOT NULL,
	source_key TEXT NOT NULL,
	split_config TEXT NOT NULL,
	results TEXT,
	error_message TEXT,
	queue_message_id TEXT,
	created_at TEXT NOT NULL,
	completed_at TEXT,
	failed_at TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_job_records_status ON job_records(status);
CREATE INDEX IF NOT EXISTS idx_job_records_created_at ON job_records(created_at);
`

// terminalGuard excludes terminal records from upgrade statements. Terminal
// states are final; writes against them must silently become no-ops.
const terminalGuard = `status NOT IN ('completed', 'failed')`

// SQLiteStore implements jobs.RecordStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex // Protects concurrent access
	path string
}

// NewSQLiteStore creates a new SQLite-backed record store.
// The database file is created if it doesn't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Create inserts a new record. Fails if the job id already exists.
func (s *SQLiteStore) Create(ctx context.Context, rec *jobs.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfgJSON, err := json.Marshal(rec.SplitConfig)
	if err != nil {
		return fmt.Errorf("marshal split config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_records (
			job_id, status, progress, source_bucket, source_key,
			split_config, results, error_message, queue_message_id,
			created_at, completed_at, failed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.JobID, string(rec.Status), rec.Progress,
		rec.Source.Bucket, rec.Source.Key,
		string(cfgJSON), marshalResults(rec.Results),
		nullString(rec.ErrorMessage), nullString(rec.QueueMessageID),
		formatTime(rec.CreatedAt), formatTimePtr(rec.CompletedAt), formatTimePtr(rec.FailedAt),
	)
	return err
}

// Get retrieves a record by job id, or jobs.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*jobs.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, progress, source_bucket, source_key,
			split_config, results, error_message, queue_message_id,
			created_at, completed_at, failed_at
		FROM job_records WHERE job_id = ?
	`, jobID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	return rec, err
}

// SetQueueMessageID attaches the queue correlation id after publish.
func (s *SQLiteStore) SetQueueMessageID(ctx context.Context, jobID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE job_records SET queue_message_id = ? WHERE job_id = ?`,
		messageID, jobID)
	return err
}

// AdvanceProgress raises progress to at least the given value on a
// non-terminal record and returns the value actually stored. MAX() in SQL
// keeps the write atomic under concurrent writers.
func (s *SQLiteStore) AdvanceProgress(ctx context.Context, jobID string, progress int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE job_records SET progress = MAX(progress, ?) WHERE job_id = ? AND `+terminalGuard,
		progress, jobID)
	if err != nil {
		return 0, err
	}

	var stored int
	err = s.db.QueryRowContext(ctx,
		`SELECT progress FROM job_records WHERE job_id = ?`, jobID).Scan(&stored)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	return stored, err
}

// MarkProcessing moves a queued record to processing. No-op for records
// already past queued.
func (s *SQLiteStore) MarkProcessing(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE job_records SET status = 'processing' WHERE job_id = ? AND status = 'queued'`,
		jobID)
	return err
}

// MarkCompleted finalizes a non-terminal record with results and progress
// 100. completed_at is set exactly once; repeated calls on a completed
// record change nothing.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, jobID string, results []jobs.OutputSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE job_records
		SET status = 'completed', progress = 100, results = ?, completed_at = ?
		WHERE job_id = ? AND `+terminalGuard,
		marshalResults(results), formatTime(time.Now()), jobID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.requireExistsLocked(ctx, jobID)
	}
	return nil
}

// MarkFailed finalizes a non-terminal record with an error message.
func (s *SQLiteStore) MarkFailed(ctx context.Context, jobID string, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE job_records
		SET status = 'failed', error_message = ?, failed_at = ?
		WHERE job_id = ? AND `+terminalGuard,
		errorMessage, formatTime(time.Now()), jobID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.requireExistsLocked(ctx, jobID)
	}
	return nil
}

// requireExistsLocked distinguishes "already terminal" (fine, idempotent)
// from "no such record". Called with the write lock held.
func (s *SQLiteStore) requireExistsLocked(ctx context.Context, jobID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM job_records WHERE job_id = ?`, jobID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	return err
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Helper functions for scanning rows

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*jobs.JobRecord, error) {
	var rec jobs.JobRecord
	var status, cfgJSON string
	var results, errMsg, messageID sql.NullString
	var createdAt, completedAt, failedAt sql.NullString

	err := row.Scan(
		&rec.JobID, &status, &rec.Progress,
		&rec.Source.Bucket, &rec.Source.Key,
		&cfgJSON, &results, &errMsg, &messageID,
		&createdAt, &completedAt, &failedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = jobs.Status(status)
	rec.ErrorMessage = errMsg.String
	rec.QueueMessageID = messageID.String
	rec.CreatedAt = parseTime(createdAt.String)
	rec.CompletedAt = parseTime(completedAt.String)
	rec.FailedAt = parseTime(failedAt.String)

	var cfg split.Config
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal split config: %w", err)
	}
	rec.SplitConfig = cfg

	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &rec.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}

	return &rec, nil
}

// Helper functions for SQL values

func marshalResults(results []jobs.OutputSegment) interface{} {
	if len(results) == 0 {
		return nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil
	}
	return string(data)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
