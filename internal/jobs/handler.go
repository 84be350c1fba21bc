package jobs

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trackit-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the jobs service. Raw-input validation
// (enum coercion, date parsing, multipart decoding) happens here; the
// service receives typed values only.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.POST("/jobs", h.create)
	rg.GET("/jobs/:id", h.get)
	rg.DELETE("/jobs/:id", h.deleteJob)
	rg.POST("/jobs/:id/resume", h.uploadResume)
	rg.GET("/jobs/:id/resume/:versionId", h.viewResume)
	rg.GET("/jobs/:id/resume/:versionId/download", h.downloadResume)
	rg.DELETE("/jobs/:id/resume/:versionId", h.deleteResume)
}

func (h *Handler) list(c *gin.Context) {
	jobs, err := h.Svc.ListJobs(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list jobs", nil)
		return
	}
	resp := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toResponse(job))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	in := CreateJobInput{
		Company:  c.PostForm("company"),
		Position: c.PostForm("position"),
		Notes:    c.PostForm("notes"),
	}

	if raw := strings.TrimSpace(c.PostForm("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeValidation,
				"invalid status value, must be one of: pending, applied, interviewing, accepted, rejected", nil)
			return
		}
		in.Status = status
	}

	if raw := strings.TrimSpace(c.PostForm("applied_date")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeValidation, "invalid applied_date format", nil)
			return
		}
		in.AppliedDate = &parsed
	}

	var resume *ResumeUpload
	if fileHeader, err := c.FormFile("resume"); err == nil {
		data, filename, err := readUpload(fileHeader)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
			return
		}
		resume = &ResumeUpload{Filename: filename, Data: data}
	}

	job, err := h.Svc.CreateJob(c.Request.Context(), in, resume)
	if err != nil {
		h.respondServiceError(c, err, "failed to create job")
		return
	}
	respond.JSON(c, http.StatusCreated, toResponse(job))
}

func (h *Handler) get(c *gin.Context) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}
	job, err := h.Svc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondServiceError(c, err, "failed to fetch job")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(job))
}

func (h *Handler) deleteJob(c *gin.Context) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	err := h.Svc.DeleteJob(c.Request.Context(), jobID)
	var partial *PartialDeleteError
	switch {
	case err == nil:
		respond.JSON(c, http.StatusOK, gin.H{"message": "job deleted"})
	case errors.As(err, &partial):
		// Metadata is fully gone; unreclaimed blobs are a warning, not a
		// failure.
		respond.JSON(c, http.StatusOK, gin.H{
			"message":  "job deleted",
			"warnings": partial.FailedKeys,
		})
	default:
		h.respondServiceError(c, err, "failed to delete job")
	}
}

func (h *Handler) uploadResume(c *gin.Context) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("resume")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "resume file is required", nil)
		return
	}
	data, filename, err := readUpload(fileHeader)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		return
	}

	version, err := h.Svc.UploadResumeVersion(c.Request.Context(), jobID, filename, data)
	if err != nil {
		h.respondServiceError(c, err, "failed to upload resume")
		return
	}
	respond.JSON(c, http.StatusCreated, toVersionResponse(version))
}

func (h *Handler) viewResume(c *gin.Context) {
	h.serveResume(c, true)
}

func (h *Handler) downloadResume(c *gin.Context) {
	h.serveResume(c, false)
}

// serveResume returns the stored bytes either inline (browser view) or as
// an attachment (download). Same bytes, different disposition hint.
func (h *Handler) serveResume(c *gin.Context, inline bool) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}
	versionID, ok := parseID(c, "versionId")
	if !ok {
		return
	}

	data, version, err := h.Svc.GetResumeBytes(c.Request.Context(), jobID, versionID)
	if err != nil {
		h.respondServiceError(c, err, "failed to fetch resume")
		return
	}

	disposition := "attachment"
	contentType := "application/octet-stream"
	if inline {
		disposition = "inline"
		contentType = http.DetectContentType(data)
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, version.Filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) deleteResume(c *gin.Context) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}
	versionID, ok := parseID(c, "versionId")
	if !ok {
		return
	}

	if err := h.Svc.DeleteResumeVersion(c.Request.Context(), jobID, versionID); err != nil {
		h.respondServiceError(c, err, "failed to delete resume")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"message": "resume deleted"})
}

func (h *Handler) respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeValidation, err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "not found", nil)
	case errors.Is(err, ErrVersionConflict):
		respond.Error(c, http.StatusConflict, ErrorCodeVersionConflict, "version allocation conflict, retry the upload", nil)
	case errors.Is(err, ErrStorageInconsistency):
		// Never report corruption as absence.
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorageInconsistency, "stored record has no backing file", nil)
	case errors.Is(err, ErrStorageWrite):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, fallback, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, fallback, nil)
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, fmt.Sprintf("invalid %s", param), nil)
		return 0, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func readUpload(fh *multipart.FileHeader) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", errors.New("unable to read resume file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", errors.New("unable to read resume file")
	}
	return data, fh.Filename, nil
}
