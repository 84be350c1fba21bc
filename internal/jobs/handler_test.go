package jobs_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"trackit-backend/internal/bootstrap"
	"trackit-backend/internal/shared/config"
)

type jobPayload struct {
	ID       int64            `json:"id"`
	Company  string           `json:"company"`
	Position string           `json:"position"`
	Status   string           `json:"status"`
	Resumes  []versionPayload `json:"resumes"`
}

type versionPayload struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"job_id"`
	Version     int    `json:"version"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		BlobStoreType:   "local",
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		MaxUploadBytes:  10 << 20,
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app.Router
}

func multipartJob(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileField != "" {
		fw, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	content := []byte("%PDF-1.4 resume bytes")

	// Create a job with an initial resume.
	body, contentType := multipartJob(t, map[string]string{
		"company":      "Acme",
		"position":     "Engineer",
		"status":       "applied",
		"applied_date": "2026-08-01",
	}, "resume", "resume.pdf", content)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("create job: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created jobPayload
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == 0 || created.Status != "applied" {
		t.Fatalf("unexpected created job: %+v", created)
	}
	if len(created.Resumes) != 1 || created.Resumes[0].Version != 1 {
		t.Fatalf("expected initial resume at version 1, got %+v", created.Resumes)
	}
	versionID := created.Resumes[0].ID

	// Download returns the exact bytes as an attachment.
	dlPath := fmt.Sprintf("/api/v1/jobs/%d/resume/%d/download", created.ID, versionID)
	respDl := doGet(router, dlPath)
	if respDl.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", respDl.Code)
	}
	if !bytes.Equal(respDl.Body.Bytes(), content) {
		t.Fatalf("download bytes differ from upload")
	}
	if cd := respDl.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}

	// View serves the same bytes inline.
	respView := doGet(router, fmt.Sprintf("/api/v1/jobs/%d/resume/%d", created.ID, versionID))
	if respView.Code != http.StatusOK {
		t.Fatalf("view: expected 200, got %d", respView.Code)
	}
	if cd := respView.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") {
		t.Fatalf("expected inline disposition, got %q", cd)
	}

	// Upload a second version.
	body2, contentType2 := multipartJob(t, nil, "resume", "resume-v2.pdf", []byte("second draft"))
	req2 := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/resume", created.ID), body2)
	req2.Header.Set("Content-Type", contentType2)
	resp2 := httptest.NewRecorder()
	router.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusCreated {
		t.Fatalf("upload v2: expected 201, got %d: %s", resp2.Code, resp2.Body.String())
	}
	var v2 versionPayload
	if err := json.NewDecoder(resp2.Body).Decode(&v2); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if v2.Version != 2 {
		t.Fatalf("expected version 2, got %d", v2.Version)
	}

	// Delete the first version; a later fetch is a 404.
	reqDel := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/jobs/%d/resume/%d", created.ID, versionID), nil)
	respDel := httptest.NewRecorder()
	router.ServeHTTP(respDel, reqDel)
	if respDel.Code != http.StatusOK {
		t.Fatalf("delete version: expected 200, got %d", respDel.Code)
	}
	if resp := doGet(router, dlPath); resp.Code != http.StatusNotFound {
		t.Fatalf("deleted version fetch: expected 404, got %d", resp.Code)
	}

	// Delete the job; it and its remaining version disappear.
	reqDelJob := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/jobs/%d", created.ID), nil)
	respDelJob := httptest.NewRecorder()
	router.ServeHTTP(respDelJob, reqDelJob)
	if respDelJob.Code != http.StatusOK {
		t.Fatalf("delete job: expected 200, got %d", respDelJob.Code)
	}
	if resp := doGet(router, fmt.Sprintf("/api/v1/jobs/%d", created.ID)); resp.Code != http.StatusNotFound {
		t.Fatalf("deleted job fetch: expected 404, got %d", resp.Code)
	}
}

func TestCreateJobRejectsInvalidStatusOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{}
	form.Set("company", "Acme")
	form.Set("position", "Engineer")
	form.Set("status", "ghosted")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", payload.Error.Code)
	}
}

func TestUploadToMissingJobOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartJob(t, nil, "resume", "resume.pdf", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/404/resume", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUploadWithoutFileOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	// A job to upload against.
	body, contentType := multipartJob(t, map[string]string{
		"company":  "Acme",
		"position": "Engineer",
	}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create job: expected 201, got %d", resp.Code)
	}
	var created jobPayload
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	emptyBody, emptyType := multipartJob(t, map[string]string{"notes": "no file"}, "", "", nil)
	reqUp := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/resume", created.ID), emptyBody)
	reqUp.Header.Set("Content-Type", emptyType)
	respUp := httptest.NewRecorder()
	router.ServeHTTP(respUp, reqUp)

	if respUp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a file, got %d", respUp.Code)
	}
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}
