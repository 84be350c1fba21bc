package jobs

import "context"

// Repo defines persistence operations for jobs and resume versions.
//
// CreateVersion must enforce uniqueness of (job_id, version) and of
// storage_path, returning ErrVersionConflict when a concurrent allocation
// claimed the same version and ErrNotFound when the owning job is gone.
// DeleteJob removes the job and all its version rows in one transaction.
type Repo interface {
	CreateJob(ctx context.Context, job Job) (Job, error)
	GetJob(ctx context.Context, id int64) (Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	DeleteJob(ctx context.Context, id int64) error

	NextVersion(ctx context.Context, jobID int64) (int, error)
	CreateVersion(ctx context.Context, v ResumeVersion) (ResumeVersion, error)
	GetVersion(ctx context.Context, jobID, versionID int64) (ResumeVersion, error)
	ListVersions(ctx context.Context, jobID int64) ([]ResumeVersion, error)
	DeleteVersion(ctx context.Context, jobID, versionID int64) error

	ListStoragePaths(ctx context.Context) ([]string, error)
}
