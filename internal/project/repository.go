package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heimdex/cutline/internal/export"
	"github.com/heimdex/cutline/internal/timeline"
)

// Get* methods return (nil, nil) when the row does not exist.
type Repository interface {
	CreateProject(ctx context.Context, rec *Record) error
	GetProject(ctx context.Context, id string) (*Record, error)
	ListProjects(ctx context.Context) ([]*Record, error)
	SaveDocument(ctx context.Context, id string, doc *timeline.Project) (int, error)
	DeleteProject(ctx context.Context, id string) error
	CountProjects(ctx context.Context) (int, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, rendered, total int) error
	CompleteJob(ctx context.Context, id, outputPath, uploadURL string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, rec *Record) error {
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode project document: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, document, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, string(doc), rec.Revision, rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Record, error) {
	var rec Record
	var doc, createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, document, revision, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Name, &doc, &rec.Revision, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p, err := timeline.DecodeProject([]byte(doc), timeline.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	rec.Document = p
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, revision, created_at, updated_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		var createdAt, updatedAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Revision, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// SaveDocument replaces the project document and returns the new revision.
func (r *SQLiteRepository) SaveDocument(ctx context.Context, id string, doc *timeline.Project) (int, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode project document: %w", err)
	}
	var revision int
	err = r.db.QueryRowContext(ctx, `
		UPDATE projects SET name = ?, document = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? RETURNING revision
	`, doc.Name, string(data), time.Now().UTC().Format(time.RFC3339), id).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProjectNotFound
	}
	return revision, err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountProjects(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}

const jobColumns = `id, project_id, type, status, settings, snapshot_path, output_path,
	rendered_frames, total_frames, upload_url, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	settings, err := json.Marshal(j.Settings)
	if err != nil {
		return fmt.Errorf("encode export settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, j.Type, j.Status, string(settings),
		nullString(j.SnapshotPath), nullString(j.OutputPath),
		j.RenderedFrames, j.TotalFrames, nullString(j.UploadURL), nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var settings string
	var snapshot, output, uploadURL, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.ProjectID, &j.Type, &j.Status, &settings, &snapshot, &output,
		&j.RenderedFrames, &j.TotalFrames, &uploadURL, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &j.Settings); err != nil {
		j.Settings = export.Settings{}
	}
	j.SnapshotPath = snapshot.String
	j.OutputPath = output.String
	j.UploadURL = uploadURL.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt = parseSQLiteTime(updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, rendered, total int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET rendered_frames = ?, total_frames = ?, updated_at = datetime('now') WHERE id = ?
	`, rendered, total, id)
	return err
}

func (r *SQLiteRepository) CompleteJob(ctx context.Context, id, outputPath, uploadURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', output_path = ?, upload_url = ?, error = NULL,
			rendered_frames = MAX(rendered_frames, total_frames), updated_at = datetime('now')
		WHERE id = ?
	`, outputPath, nullString(uploadURL), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// parseSQLiteTime reads both RFC 3339 and SQLite's datetime('now') format.
func parseSQLiteTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
