package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"trackit-backend/internal/shared/storage/blob"
	localstore "trackit-backend/internal/shared/storage/blob/local"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo, blob.Store) {
	t.Helper()
	repo := NewMemoryRepo()
	store := localstore.New(t.TempDir())
	return NewService(repo, store), repo, store
}

func mustCreateJob(t *testing.T, svc *Service) Job {
	t.Helper()
	job, err := svc.CreateJob(context.Background(), CreateJobInput{
		Company:  "Acme",
		Position: "Engineer",
	}, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func TestCreateJobDefaultsStatusToPending(t *testing.T) {
	svc, _, _ := newTestService(t)

	job := mustCreateJob(t, svc)
	if job.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", job.Status)
	}
	if job.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if len(job.Resumes) != 0 {
		t.Fatalf("expected no resumes, got %d", len(job.Resumes))
	}
}

func TestCreateJobRejectsInvalidFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []CreateJobInput{
		{Company: "", Position: "Engineer"},
		{Company: "   ", Position: "Engineer"},
		{Company: "Acme", Position: ""},
		{Company: string(make([]byte, 101)), Position: "Engineer"},
		{Company: "Acme", Position: "Engineer", Status: JobStatus("ghosted")},
	}
	for i, in := range cases {
		if _, err := svc.CreateJob(ctx, in, nil); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestUploadAssignsSequentialVersions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := mustCreateJob(t, svc)

	paths := map[string]struct{}{}
	for want := 1; want <= 3; want++ {
		v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte(fmt.Sprintf("draft %d", want)))
		if err != nil {
			t.Fatalf("upload %d: %v", want, err)
		}
		if v.Version != want {
			t.Fatalf("expected version %d, got %d", want, v.Version)
		}
		if _, dup := paths[v.StoragePath]; dup {
			t.Fatalf("storage path reused: %s", v.StoragePath)
		}
		paths[v.StoragePath] = struct{}{}
	}
}

func TestConcurrentUploadsYieldDistinctVersions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := mustCreateJob(t, svc)

	const uploads = 8
	var wg sync.WaitGroup
	errs := make([]error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}

	got, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if len(got.Resumes) != uploads {
		t.Fatalf("expected %d versions, got %d", uploads, len(got.Resumes))
	}
	seen := map[int]struct{}{}
	for _, v := range got.Resumes {
		if _, dup := seen[v.Version]; dup {
			t.Fatalf("duplicate version %d", v.Version)
		}
		seen[v.Version] = struct{}{}
		if v.Version < 1 || v.Version > uploads {
			t.Fatalf("version %d out of range", v.Version)
		}
	}
}

func TestGetResumeBytesRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := mustCreateJob(t, svc)

	content := []byte("%PDF-1.4 not really a pdf")
	v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", content)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	data, got, err := svc.GetResumeBytes(ctx, job.ID, v.ID)
	if err != nil {
		t.Fatalf("GetResumeBytes: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("bytes changed in round trip")
	}
	if got.Filename != "resume.pdf" {
		t.Fatalf("expected filename resume.pdf, got %s", got.Filename)
	}
}

func TestGetResumeBytesMissingBlobIsInconsistency(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	job := mustCreateJob(t, svc)

	v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte("bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// Remove the blob behind the row's back.
	if err := store.Delete(ctx, v.StoragePath); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	_, _, err = svc.GetResumeBytes(ctx, job.ID, v.ID)
	if !errors.Is(err, ErrStorageInconsistency) {
		t.Fatalf("expected ErrStorageInconsistency, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("inconsistency must not be reported as not found")
	}
}

func TestDeleteResumeVersionIsTerminal(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	job := mustCreateJob(t, svc)

	v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte("bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := svc.DeleteResumeVersion(ctx, job.ID, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	exists, err := store.Exists(ctx, v.StoragePath)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("blob should be gone after delete")
	}

	if err := svc.DeleteResumeVersion(ctx, job.ID, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteJobRemovesAllBlobs(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	job := mustCreateJob(t, svc)

	var keys []string
	for i := 0; i < 2; i++ {
		v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte{byte(i)})
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		keys = append(keys, v.StoragePath)
	}

	if err := svc.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	if _, err := svc.GetJob(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	for _, key := range keys {
		exists, err := store.Exists(ctx, key)
		if err != nil {
			t.Fatalf("exists %s: %v", key, err)
		}
		if exists {
			t.Fatalf("blob %s survived job delete", key)
		}
	}
}

func TestDeleteJobReportsUnreclaimedBlobs(t *testing.T) {
	repo := NewMemoryRepo()
	inner := localstore.New(t.TempDir())
	store := &flakyStore{Store: inner, failDelete: true}
	svc := NewService(repo, store)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobInput{Company: "Acme", Position: "Engineer"}, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte("bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	err = svc.DeleteJob(ctx, job.ID)
	var partial *PartialDeleteError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialDeleteError, got %v", err)
	}
	if len(partial.FailedKeys) != 1 || partial.FailedKeys[0] != v.StoragePath {
		t.Fatalf("expected failed key %s, got %v", v.StoragePath, partial.FailedKeys)
	}

	// Metadata must be gone even though the blob survived.
	if _, err := svc.GetJob(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after partial delete, got %v", err)
	}
}

func TestCreateJobCompensatesFailedInitialUpload(t *testing.T) {
	repo := NewMemoryRepo()
	store := &flakyStore{Store: localstore.New(t.TempDir()), failPut: true}
	svc := NewService(repo, store)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, CreateJobInput{Company: "Acme", Position: "Engineer"},
		&ResumeUpload{Filename: "resume.pdf", Data: []byte("bytes")})
	if err == nil {
		t.Fatalf("expected error when initial upload fails")
	}

	jobs, err := svc.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs after compensating delete, got %d", len(jobs))
	}
}

func TestUploadToMissingJobFails(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.UploadResumeVersion(ctx, 404, "resume.pdf", []byte("bytes"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// No orphan blob may remain from the attempt.
	infos, err := store.List(ctx, "resumes")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected no blobs, found %d", len(infos))
	}
}

func TestVersionConflictRetriesOnceThenSucceeds(t *testing.T) {
	repo := &conflictOnceRepo{MemoryRepo: NewMemoryRepo()}
	store := localstore.New(t.TempDir())
	svc := NewService(repo, store)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobInput{Company: "Acme", Position: "Engineer"}, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	v, err := svc.UploadResumeVersion(ctx, job.ID, "resume.pdf", []byte("bytes"))
	if err != nil {
		t.Fatalf("upload after one conflict should succeed: %v", err)
	}
	if v.Version != 1 {
		t.Fatalf("expected version 1, got %d", v.Version)
	}

	// The first attempt's blob must have been reclaimed.
	infos, err := store.List(ctx, "resumes")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected exactly one blob, found %d", len(infos))
	}
}

// flakyStore wraps a real store and fails selected operations.
type flakyStore struct {
	blob.Store
	failPut    bool
	failDelete bool
}

func (s *flakyStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if s.failPut {
		return 0, errors.New("simulated put failure")
	}
	return s.Store.Put(ctx, key, r)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return errors.New("simulated delete failure")
	}
	return s.Store.Delete(ctx, key)
}

// conflictOnceRepo rejects the first CreateVersion with a version conflict.
type conflictOnceRepo struct {
	*MemoryRepo
	mu       sync.Mutex
	rejected bool
}

func (r *conflictOnceRepo) CreateVersion(ctx context.Context, v ResumeVersion) (ResumeVersion, error) {
	r.mu.Lock()
	first := !r.rejected
	r.rejected = true
	r.mu.Unlock()
	if first {
		return ResumeVersion{}, ErrVersionConflict
	}
	return r.MemoryRepo.CreateVersion(ctx, v)
}
