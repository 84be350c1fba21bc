package jobs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the job or resume version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict indicates a concurrent allocation claimed the same
	// (job_id, version) pair; the unique constraint rejected the insert.
	ErrVersionConflict = errors.New("version conflict")

	// ErrStorageWrite indicates a blob or record write failed.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrStorageInconsistency indicates a resume version row exists but its
	// blob is missing. Distinct from ErrNotFound: the record store and blob
	// store disagree, which is corruption, not absence.
	ErrStorageInconsistency = errors.New("storage inconsistency")
)

const (
	ErrorCodeValidation           = "validation_error"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeVersionConflict      = "version_conflict"
	ErrorCodeStorage              = "storage_error"
	ErrorCodeStorageInconsistency = "storage_inconsistency"
	ErrorCodeInternal             = "internal_error"
)

// PartialDeleteError reports a job whose metadata was fully removed while
// one or more blobs could not be reclaimed. It accompanies success, not
// failure: no reachable metadata remains.
type PartialDeleteError struct {
	JobID      int64
	FailedKeys []string
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("job %d deleted but %d blob(s) not reclaimed: %s",
		e.JobID, len(e.FailedKeys), strings.Join(e.FailedKeys, ", "))
}
