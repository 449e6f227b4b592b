package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tubeask/internal/config"
)

// Store manages run-ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database and prepares its schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.RunsDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// NewRun records a fresh pipeline run in the pending state.
func (s *Store) NewRun(ctx context.Context, runKey, videoURL, videoID, question string) (*Run, error) {
	if runKey == "" {
		return nil, errors.New("run key is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            run_key, video_url, video_id, question, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runKey,
		videoURL,
		videoID,
		nullableString(question),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a run by identifier. Missing runs return nil without error.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetByRunKey fetches a run by its correlation key.
func (s *Store) GetByRunKey(ctx context.Context, runKey string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_key = ?`, runKey)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run by key: %w", err)
	}
	return run, nil
}

// Update persists changes to an existing run.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs
         SET video_url = ?, video_id = ?, question = ?, status = ?, failure_kind = ?,
             job_id = ?, artifact_name = ?, artifact_uri = ?, title = ?, channel = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		run.VideoURL,
		run.VideoID,
		nullableString(run.Question),
		run.Status,
		nullableString(run.FailureKind),
		nullableString(run.JobID),
		nullableString(run.ArtifactName),
		nullableString(run.ArtifactURI),
		nullableString(run.Title),
		nullableString(run.Channel),
		nullableString(run.ErrorMessage),
		run.UpdatedAt.Format(time.RFC3339Nano),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var results []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	return results, rows.Err()
}

// Clear removes all recorded runs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates run state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusCompleted:
			health.Completed += count
		case status == StatusFailed:
			health.Failed += count
		case IsProcessingStatus(status):
			health.Processing += count
		}
	}
	return health, nil
}

const runColumns = "id, run_key, video_url, video_id, question, status, failure_kind, job_id, artifact_name, artifact_uri, title, channel, error_message, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           int64
		runKey       string
		videoURL     string
		videoID      string
		question     sql.NullString
		statusStr    string
		failureKind  sql.NullString
		jobID        sql.NullString
		artifactName sql.NullString
		artifactURI  sql.NullString
		title        sql.NullString
		channel      sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runKey,
		&videoURL,
		&videoID,
		&question,
		&statusStr,
		&failureKind,
		&jobID,
		&artifactName,
		&artifactURI,
		&title,
		&channel,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		RunKey:       runKey,
		VideoURL:     videoURL,
		VideoID:      videoID,
		Question:     question.String,
		Status:       Status(statusStr),
		FailureKind:  failureKind.String,
		JobID:        jobID.String,
		ArtifactName: artifactName.String,
		ArtifactURI:  artifactURI.String,
		Title:        title.String,
		Channel:      channel.String,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
