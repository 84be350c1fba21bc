package jobs

import "time"

// JobResponse is the outward-facing representation of a job.
type JobResponse struct {
	ID          int64                   `json:"id"`
	Company     string                  `json:"company"`
	Position    string                  `json:"position"`
	Status      string                  `json:"status"`
	Notes       string                  `json:"notes,omitempty"`
	AppliedDate *time.Time              `json:"applied_date,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Resumes     []ResumeVersionResponse `json:"resumes"`
}

// ResumeVersionResponse is the outward-facing representation of one
// resume version.
type ResumeVersionResponse struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"job_id"`
	Version     int       `json:"version"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	UploadDate  time.Time `json:"upload_date"`
	Notes       string    `json:"notes,omitempty"`
}

func toResponse(job Job) JobResponse {
	resumes := make([]ResumeVersionResponse, 0, len(job.Resumes))
	for _, v := range job.Resumes {
		resumes = append(resumes, toVersionResponse(v))
	}
	return JobResponse{
		ID:          job.ID,
		Company:     job.Company,
		Position:    job.Position,
		Status:      string(job.Status),
		Notes:       job.Notes,
		AppliedDate: job.AppliedDate,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		Resumes:     resumes,
	}
}

func toVersionResponse(v ResumeVersion) ResumeVersionResponse {
	return ResumeVersionResponse{
		ID:          v.ID,
		JobID:       v.JobID,
		Version:     v.Version,
		Filename:    v.Filename,
		StoragePath: v.StoragePath,
		UploadDate:  v.UploadDate,
		Notes:       v.Notes,
	}
}
