package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. It enforces the same
// uniqueness rules as the Postgres schema so allocator races surface
// identically: duplicate (job_id, version) or storage_path inserts fail
// with ErrVersionConflict.
type MemoryRepo struct {
	mu         sync.RWMutex
	jobs       map[int64]Job
	versions   map[int64]ResumeVersion
	nextJobID  int64
	nextVerID  int64
	pathsInUse map[string]struct{}
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs:       make(map[int64]Job),
		versions:   make(map[int64]ResumeVersion),
		pathsInUse: make(map[string]struct{}),
	}
}

// CreateJob stores a new job.
func (r *MemoryRepo) CreateJob(ctx context.Context, job Job) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextJobID++
	now := time.Now().UTC()
	job.ID = r.nextJobID
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Resumes = nil
	r.jobs[job.ID] = job
	return job, nil
}

// GetJob returns a job with its resume versions.
func (r *MemoryRepo) GetJob(ctx context.Context, id int64) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	job.Resumes = r.versionsForLocked(id)
	return job, nil
}

// ListJobs returns all jobs with versions, newest job first.
func (r *MemoryRepo) ListJobs(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for id, job := range r.jobs {
		job.Resumes = r.versionsForLocked(id)
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteJob removes a job and all its version rows atomically.
func (r *MemoryRepo) DeleteJob(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	for verID, v := range r.versions {
		if v.JobID == id {
			delete(r.pathsInUse, v.StoragePath)
			delete(r.versions, verID)
		}
	}
	delete(r.jobs, id)
	return nil
}

// NextVersion reads the next version number for a job.
func (r *MemoryRepo) NextVersion(ctx context.Context, jobID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, v := range r.versions {
		if v.JobID == jobID && v.Version > max {
			max = v.Version
		}
	}
	return max + 1, nil
}

// CreateVersion inserts a resume version, enforcing uniqueness.
func (r *MemoryRepo) CreateVersion(ctx context.Context, v ResumeVersion) (ResumeVersion, error) {
	if err := ctx.Err(); err != nil {
		return ResumeVersion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[v.JobID]
	if !ok {
		return ResumeVersion{}, ErrNotFound
	}
	for _, existing := range r.versions {
		if existing.JobID == v.JobID && existing.Version == v.Version {
			return ResumeVersion{}, ErrVersionConflict
		}
	}
	if _, taken := r.pathsInUse[v.StoragePath]; taken {
		return ResumeVersion{}, ErrVersionConflict
	}

	r.nextVerID++
	v.ID = r.nextVerID
	v.UploadDate = time.Now().UTC()
	r.versions[v.ID] = v
	r.pathsInUse[v.StoragePath] = struct{}{}

	job.UpdatedAt = time.Now().UTC()
	r.jobs[v.JobID] = job
	return v, nil
}

// GetVersion fetches a resume version scoped to its job.
func (r *MemoryRepo) GetVersion(ctx context.Context, jobID, versionID int64) (ResumeVersion, error) {
	if err := ctx.Err(); err != nil {
		return ResumeVersion{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.versions[versionID]
	if !ok || v.JobID != jobID {
		return ResumeVersion{}, ErrNotFound
	}
	return v, nil
}

// ListVersions returns a job's resume versions in version order.
func (r *MemoryRepo) ListVersions(ctx context.Context, jobID int64) ([]ResumeVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versionsForLocked(jobID), nil
}

// DeleteVersion removes a single resume version row.
func (r *MemoryRepo) DeleteVersion(ctx context.Context, jobID, versionID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[versionID]
	if !ok || v.JobID != jobID {
		return ErrNotFound
	}
	delete(r.pathsInUse, v.StoragePath)
	delete(r.versions, versionID)
	return nil
}

// ListStoragePaths returns every referenced storage path.
func (r *MemoryRepo) ListStoragePaths(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.pathsInUse))
	for path := range r.pathsInUse {
		out = append(out, path)
	}
	return out, nil
}

func (r *MemoryRepo) versionsForLocked(jobID int64) []ResumeVersion {
	out := []ResumeVersion{}
	for _, v := range r.versions {
		if v.JobID == jobID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

var _ Repo = (*MemoryRepo)(nil)
