package jobs

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the application pipeline state of a Job.
type JobStatus string

const (
	StatusPending      JobStatus = "pending"
	StatusApplied      JobStatus = "applied"
	StatusInterviewing JobStatus = "interviewing"
	StatusAccepted     JobStatus = "accepted"
	StatusRejected     JobStatus = "rejected"
)

// maxFieldLen bounds company and position lengths, matching the schema.
const maxFieldLen = 100

// ParseStatus converts a raw string into a JobStatus.
func ParseStatus(raw string) (JobStatus, error) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApplied:
		return StatusApplied, nil
	case StatusInterviewing:
		return StatusInterviewing, nil
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
}

// Job is a tracked job application. It owns its resume versions
// exclusively; a ResumeVersion never outlives or changes its Job.
type Job struct {
	ID          int64
	Company     string
	Position    string
	Status      JobStatus
	Notes       string
	AppliedDate *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Resumes     []ResumeVersion
}

// ResumeVersion is one immutable upload in a job's resume history.
// Version numbers are strictly increasing per job and never reused.
type ResumeVersion struct {
	ID          int64
	JobID       int64
	Version     int
	Filename    string
	StoragePath string
	UploadDate  time.Time
	Notes       string
}
