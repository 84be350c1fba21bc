package jobs

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"trackit-backend/internal/shared/metrics"
	"trackit-backend/internal/shared/storage/blob"
	"trackit-backend/internal/shared/telemetry"
	"trackit-backend/internal/shared/util"
)

// resumeKeyPrefix namespaces all resume blobs inside the blob store. The
// reconciliation sweep only ever looks under this prefix.
const resumeKeyPrefix = "resumes"

// Service is the lifecycle manager for jobs and their resume versions. It
// owns the ordering and compensation rules between the record store and
// the blob store: blobs are written before their row and deleted before
// their row, so a crash leaves at worst an orphan blob (reclaimable by the
// sweep) or a dangling row (detected as a storage inconsistency on read),
// never a row silently serving missing bytes.
type Service struct {
	Repo  Repo
	Store blob.Store

	locks *jobLocks
}

// NewService constructs a Service.
func NewService(repo Repo, store blob.Store) *Service {
	return &Service{
		Repo:  repo,
		Store: store,
		locks: newJobLocks(),
	}
}

// CreateJobInput carries validated, typed job fields.
type CreateJobInput struct {
	Company     string
	Position    string
	Status      JobStatus
	Notes       string
	AppliedDate *time.Time
}

// ResumeUpload carries an optional initial resume for CreateJob.
type ResumeUpload struct {
	Filename string
	Data     []byte
}

// CreateJob validates fields and inserts the job. If an initial resume is
// supplied and the upload sub-protocol fails after the job row committed,
// the job is removed again by a compensating delete so callers never
// observe a job that silently lost its attachment.
func (s *Service) CreateJob(ctx context.Context, in CreateJobInput, resume *ResumeUpload) (Job, error) {
	job := Job{
		Company:     strings.TrimSpace(in.Company),
		Position:    strings.TrimSpace(in.Position),
		Status:      in.Status,
		Notes:       in.Notes,
		AppliedDate: in.AppliedDate,
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if _, err := ParseStatus(string(job.Status)); err != nil {
		return Job{}, err
	}
	if job.Company == "" || len(job.Company) > maxFieldLen {
		return Job{}, fmt.Errorf("%w: company must be 1-%d characters", ErrInvalidInput, maxFieldLen)
	}
	if job.Position == "" || len(job.Position) > maxFieldLen {
		return Job{}, fmt.Errorf("%w: position must be 1-%d characters", ErrInvalidInput, maxFieldLen)
	}

	created, err := s.Repo.CreateJob(ctx, job)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	if resume == nil {
		created.Resumes = []ResumeVersion{}
		return created, nil
	}

	version, err := s.upload(ctx, created.ID, resume.Filename, resume.Data)
	if err != nil {
		// Compensating delete: the upload cleaned up its own blob, only
		// the bare job row remains. Best-effort; if it fails the
		// inconsistency is surfaced instead of hidden.
		if delErr := s.Repo.DeleteJob(ctx, created.ID); delErr != nil {
			telemetry.Error("job.compensating_delete_failed", map[string]any{
				"job_id": created.ID,
				"error":  delErr.Error(),
			})
			return Job{}, fmt.Errorf("initial resume upload failed (%v) and compensating job delete failed: %w", err, delErr)
		}
		telemetry.Info("job.compensating_delete", map[string]any{"job_id": created.ID})
		return Job{}, fmt.Errorf("initial resume upload: %w", err)
	}

	created.Resumes = []ResumeVersion{version}
	return created, nil
}

// GetJob returns a job with its resume versions.
func (s *Service) GetJob(ctx context.Context, jobID int64) (Job, error) {
	return s.Repo.GetJob(ctx, jobID)
}

// ListJobs returns all jobs with their resume versions.
func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	return s.Repo.ListJobs(ctx)
}

// UploadResumeVersion runs the upload sub-protocol for an existing job:
// allocate the next version, write the blob, then insert the row. A lost
// allocation race is retried once with a fresh version and key; on final
// failure the orphan blob is removed and the error surfaced.
func (s *Service) UploadResumeVersion(ctx context.Context, jobID int64, filename string, data []byte) (ResumeVersion, error) {
	if _, err := s.Repo.GetJob(ctx, jobID); err != nil {
		return ResumeVersion{}, err
	}
	return s.upload(ctx, jobID, filename, data)
}

func (s *Service) upload(ctx context.Context, jobID int64, filename string, data []byte) (ResumeVersion, error) {
	sanitized, err := util.SanitizeFileName(filename)
	if err != nil {
		return ResumeVersion{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.locks.lock(jobID)
	defer s.locks.unlock(jobID)

	metrics.IncUploadStarted()
	start := time.Now()

	v, err := s.uploadLocked(ctx, jobID, sanitized, data)
	if err != nil {
		metrics.IncUploadFailed()
		return ResumeVersion{}, err
	}

	metrics.IncUploadCompleted()
	metrics.ObserveUploadDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	telemetry.Info("resume.uploaded", map[string]any{
		"job_id":       jobID,
		"version":      v.Version,
		"version_id":   v.ID,
		"storage_path": v.StoragePath,
		"size_bytes":   len(data),
	})
	return v, nil
}

func (s *Service) uploadLocked(ctx context.Context, jobID int64, filename string, data []byte) (ResumeVersion, error) {
	const maxAttempts = 2

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		version, err := s.Repo.NextVersion(ctx, jobID)
		if err != nil {
			return ResumeVersion{}, fmt.Errorf("%w: allocate version: %v", ErrStorageWrite, err)
		}

		key := storageKey(jobID, version, filename)

		// Blob before row: a crash here leaves an orphan blob the sweep
		// reclaims, never a row pointing at missing bytes.
		if _, err := s.Store.Put(ctx, key, bytes.NewReader(data)); err != nil {
			return ResumeVersion{}, fmt.Errorf("%w: write blob: %v", ErrStorageWrite, err)
		}

		created, err := s.Repo.CreateVersion(ctx, ResumeVersion{
			JobID:       jobID,
			Version:     version,
			Filename:    filename,
			StoragePath: key,
		})
		if err == nil {
			return created, nil
		}

		// Insert failed: this attempt's blob is an orphan now.
		if delErr := s.Store.Delete(ctx, key); delErr != nil {
			telemetry.Warn("resume.orphan_blob", map[string]any{
				"job_id":       jobID,
				"storage_path": key,
				"error":        delErr.Error(),
			})
		}

		if errors.Is(err, ErrNotFound) {
			return ResumeVersion{}, ErrNotFound
		}
		if errors.Is(err, ErrVersionConflict) {
			lastErr = err
			metrics.IncVersionRetry()
			continue
		}
		return ResumeVersion{}, fmt.Errorf("%w: insert version row: %v", ErrStorageWrite, err)
	}
	return ResumeVersion{}, fmt.Errorf("allocation retry exhausted for job %d: %w", jobID, lastErr)
}

// GetResumeBytes returns the stored bytes for a resume version. A version
// row whose blob is missing is reported as ErrStorageInconsistency, never
// coerced into ErrNotFound.
func (s *Service) GetResumeBytes(ctx context.Context, jobID, versionID int64) ([]byte, ResumeVersion, error) {
	v, err := s.Repo.GetVersion(ctx, jobID, versionID)
	if err != nil {
		return nil, ResumeVersion{}, err
	}

	rc, err := s.Store.Get(ctx, v.StoragePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			metrics.IncInconsistencyDetected()
			telemetry.Error("storage.inconsistency", map[string]any{
				"job_id":       jobID,
				"version_id":   versionID,
				"storage_path": v.StoragePath,
			})
			return nil, ResumeVersion{}, fmt.Errorf("%w: version %d row exists but blob %s is missing", ErrStorageInconsistency, versionID, v.StoragePath)
		}
		return nil, ResumeVersion{}, fmt.Errorf("read blob %s: %w", v.StoragePath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, ResumeVersion{}, fmt.Errorf("read blob %s: %w", v.StoragePath, err)
	}
	return data, v, nil
}

// DeleteResumeVersion deletes the blob, then the row. Blob deletion is
// idempotent, so a crash between the two steps leaves a dangling row that
// the next read reports as a storage inconsistency rather than a leaked
// blob with no owner.
func (s *Service) DeleteResumeVersion(ctx context.Context, jobID, versionID int64) error {
	v, err := s.Repo.GetVersion(ctx, jobID, versionID)
	if err != nil {
		return err
	}

	if err := s.Store.Delete(ctx, v.StoragePath); err != nil {
		return fmt.Errorf("%w: delete blob %s: %v", ErrStorageWrite, v.StoragePath, err)
	}
	if err := s.Repo.DeleteVersion(ctx, jobID, versionID); err != nil {
		return err
	}

	telemetry.Info("resume.deleted", map[string]any{
		"job_id":       jobID,
		"version_id":   versionID,
		"storage_path": v.StoragePath,
	})
	return nil
}

// DeleteJob deletes every blob best-effort, then removes the job and all
// version rows in one transaction. Blob failures do not abort the
// metadata delete; they are aggregated into a PartialDeleteError warning.
// The job lock serializes this with concurrent uploads for the same job.
func (s *Service) DeleteJob(ctx context.Context, jobID int64) error {
	s.locks.lock(jobID)
	defer s.locks.unlock(jobID)

	job, err := s.Repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	var failed []string
	for _, v := range job.Resumes {
		if err := s.Store.Delete(ctx, v.StoragePath); err != nil {
			telemetry.Warn("job.blob_delete_failed", map[string]any{
				"job_id":       jobID,
				"storage_path": v.StoragePath,
				"error":        err.Error(),
			})
			failed = append(failed, v.StoragePath)
		}
	}

	if err := s.Repo.DeleteJob(ctx, jobID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: delete job rows: %v", ErrStorageWrite, err)
	}

	metrics.IncJobsDeleted()
	telemetry.Info("job.deleted", map[string]any{
		"job_id":   jobID,
		"versions": len(job.Resumes),
	})

	if len(failed) > 0 {
		return &PartialDeleteError{JobID: jobID, FailedKeys: failed}
	}
	return nil
}

// storageKey derives a collision-free blob key from the job, the allocated
// version, a high-resolution timestamp and random entropy, so retried
// allocations never overwrite an earlier blob.
func storageKey(jobID int64, version int, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d/v%d_%d_%s%s",
		resumeKeyPrefix, jobID, version, time.Now().UTC().UnixNano(), keyEntropy(), ext)
}

func keyEntropy() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)
	}
	return hex.EncodeToString(b[:])
}
