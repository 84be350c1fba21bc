package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateJob inserts a new job and returns it with store-generated fields.
func (r *PGRepo) CreateJob(ctx context.Context, job Job) (Job, error) {
	const query = `
INSERT INTO jobs (company, position, status, notes, applied_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

	var notes sql.NullString
	if job.Notes != "" {
		notes = sql.NullString{String: job.Notes, Valid: true}
	}
	var appliedDate sql.NullTime
	if job.AppliedDate != nil {
		appliedDate = sql.NullTime{Time: *job.AppliedDate, Valid: true}
	}

	err := r.DB.QueryRowContext(ctx, query,
		job.Company,
		job.Position,
		string(job.Status),
		notes,
		appliedDate,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by ID with its resume versions.
func (r *PGRepo) GetJob(ctx context.Context, id int64) (Job, error) {
	const query = `
SELECT id, company, position, status, notes, applied_date, created_at, updated_at
FROM jobs
WHERE id = $1`

	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}

	versions, err := r.ListVersions(ctx, id)
	if err != nil {
		return Job{}, err
	}
	job.Resumes = versions
	return job, nil
}

// ListJobs returns all jobs with their resume versions, newest job first.
func (r *PGRepo) ListJobs(ctx context.Context) ([]Job, error) {
	const query = `
SELECT id, company, position, status, notes, applied_date, created_at, updated_at
FROM jobs
ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	index := map[int64]int{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		job.Resumes = []ResumeVersion{}
		index[job.ID] = len(jobs)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const versionQuery = `
SELECT id, job_id, version, filename, storage_path, upload_date, notes
FROM resume_versions
ORDER BY job_id, version`

	vrows, err := r.DB.QueryContext(ctx, versionQuery)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()

	for vrows.Next() {
		v, err := scanVersion(vrows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[v.JobID]; ok {
			jobs[i].Resumes = append(jobs[i].Resumes, v)
		}
	}
	return jobs, vrows.Err()
}

// DeleteJob removes a job and all its resume versions in one transaction.
// Child rows are deleted explicitly before the parent; the FK cascade is
// only a backstop.
func (r *PGRepo) DeleteJob(ctx context.Context, id int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete job: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resume_versions WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("delete resume versions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// NextVersion reads the next version number for a job. Uniqueness is not
// guaranteed by this read alone; CreateVersion's unique constraint is the
// authority and callers retry on ErrVersionConflict.
func (r *PGRepo) NextVersion(ctx context.Context, jobID int64) (int, error) {
	const query = `
SELECT COALESCE(MAX(version), 0) + 1
FROM resume_versions
WHERE job_id = $1`

	var next int
	if err := r.DB.QueryRowContext(ctx, query, jobID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	return next, nil
}

// CreateVersion inserts a resume version and bumps the owning job's
// updated_at in the same transaction.
func (r *PGRepo) CreateVersion(ctx context.Context, v ResumeVersion) (ResumeVersion, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return ResumeVersion{}, fmt.Errorf("begin create version: %w", err)
	}
	defer tx.Rollback()

	const query = `
INSERT INTO resume_versions (job_id, version, filename, storage_path, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, upload_date`

	var notes sql.NullString
	if v.Notes != "" {
		notes = sql.NullString{String: v.Notes, Valid: true}
	}

	err = tx.QueryRowContext(ctx, query,
		v.JobID,
		v.Version,
		v.Filename,
		v.StoragePath,
		notes,
	).Scan(&v.ID, &v.UploadDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ResumeVersion{}, ErrVersionConflict
			case pgForeignKeyViolation:
				return ResumeVersion{}, ErrNotFound
			}
		}
		return ResumeVersion{}, fmt.Errorf("insert resume version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET updated_at = now() WHERE id = $1`, v.JobID); err != nil {
		return ResumeVersion{}, fmt.Errorf("touch job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ResumeVersion{}, fmt.Errorf("commit create version: %w", err)
	}
	return v, nil
}

// GetVersion fetches a resume version scoped to its job.
func (r *PGRepo) GetVersion(ctx context.Context, jobID, versionID int64) (ResumeVersion, error) {
	const query = `
SELECT id, job_id, version, filename, storage_path, upload_date, notes
FROM resume_versions
WHERE job_id = $1 AND id = $2`

	v, err := scanVersion(r.DB.QueryRowContext(ctx, query, jobID, versionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResumeVersion{}, ErrNotFound
		}
		return ResumeVersion{}, err
	}
	return v, nil
}

// ListVersions returns a job's resume versions in version order.
func (r *PGRepo) ListVersions(ctx context.Context, jobID int64) ([]ResumeVersion, error) {
	const query = `
SELECT id, job_id, version, filename, storage_path, upload_date, notes
FROM resume_versions
WHERE job_id = $1
ORDER BY version`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ResumeVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteVersion removes a single resume version row.
func (r *PGRepo) DeleteVersion(ctx context.Context, jobID, versionID int64) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM resume_versions WHERE job_id = $1 AND id = $2`, jobID, versionID)
	if err != nil {
		return fmt.Errorf("delete resume version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStoragePaths returns every storage_path referenced by a version row.
func (r *PGRepo) ListStoragePaths(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT storage_path FROM resume_versions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var notes sql.NullString
	var appliedDate sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.Company,
		&job.Position,
		&status,
		&notes,
		&appliedDate,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	job.Status = JobStatus(status)
	if notes.Valid {
		job.Notes = notes.String
	}
	if appliedDate.Valid {
		t := appliedDate.Time
		job.AppliedDate = &t
	}
	return job, nil
}

func scanVersion(row rowScanner) (ResumeVersion, error) {
	var v ResumeVersion
	var notes sql.NullString
	err := row.Scan(
		&v.ID,
		&v.JobID,
		&v.Version,
		&v.Filename,
		&v.StoragePath,
		&v.UploadDate,
		&notes,
	)
	if err != nil {
		return ResumeVersion{}, err
	}
	if notes.Valid {
		v.Notes = notes.String
	}
	return v, nil
}

var _ Repo = (*PGRepo)(nil)
