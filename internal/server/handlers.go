package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/autoscore/internal/extraction"
	"github.com/jonathan/autoscore/internal/job"
	"github.com/jonathan/autoscore/internal/report"
	"github.com/jonathan/autoscore/internal/scoring"
)

const maxUploadBytes = 64 << 20

// TaskRequest is one submission in a JSON create request.
type TaskRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// CreateJobRequest represents the JSON request body for POST /jobs
type CreateJobRequest struct {
	Tasks []TaskRequest `json:"tasks"`

	AnswerKey    string `json:"answer_key,omitempty"`
	QuestionText string `json:"question_text,omitempty"`
	GraderNotes  string `json:"grader_notes,omitempty"`

	ScoreMin           *float64 `json:"score_min,omitempty"`
	ScoreMax           *float64 `json:"score_max,omitempty"`
	EnableEvaluation   bool     `json:"enable_evaluation,omitempty"`
	MaxEvaluationWords int      `json:"max_evaluation_words,omitempty"`
	Workers            int      `json:"workers,omitempty"`
	MaxAttempts        int      `json:"max_attempts,omitempty"`
}

// CreateJobResponse represents the response for POST /jobs
type CreateJobResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	TotalTasks int    `json:"total_tasks"`
}

// ProgressResponse represents the response for GET /jobs/{id}/progress
type ProgressResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Completed int    `json:"completed_count"`
	Total     int    `json:"total_count"`
	Message   string `json:"message"`
}

// handleCreateJob accepts a batch of submissions as either a JSON task list
// or a multipart upload, and starts scoring it in the background.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		inputs []job.TaskInput
		cfg    job.Config
		ref    scoring.Reference
		err    error
	)
	if contentType == "multipart/form-data" {
		inputs, cfg, ref, err = s.parseMultipartJob(r)
	} else {
		inputs, cfg, ref, err = s.parseJSONJob(r)
	}
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// The job outlives the request; its provider calls must not die with it.
	ctrl, err := s.registry.CreateJob(context.Background(), inputs, cfg, ref)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, CreateJobResponse{
		JobID:      ctrl.ID(),
		Status:     string(job.StatusRunning),
		TotalTasks: len(inputs),
	})
}

func (s *Server) parseJSONJob(r *http.Request) ([]job.TaskInput, job.Config, scoring.Reference, error) {
	var req CreateJobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		return nil, job.Config{}, scoring.Reference{}, fmt.Errorf("invalid request body: %w", err)
	}

	inputs := make([]job.TaskInput, 0, len(req.Tasks))
	for _, task := range req.Tasks {
		input := job.TaskInput{Filename: task.Filename}
		if strings.TrimSpace(task.Text) == "" {
			input.ExtractionError = fmt.Sprintf("failed to extract %s: file is empty", task.Filename)
		} else {
			input.ExtractedText = task.Text
		}
		inputs = append(inputs, input)
	}

	cfg := s.jobDefaults
	if req.ScoreMin != nil {
		cfg.ScoreMin = *req.ScoreMin
	}
	if req.ScoreMax != nil {
		cfg.ScoreMax = *req.ScoreMax
	}
	if req.MaxEvaluationWords != 0 {
		cfg.MaxEvaluationWords = req.MaxEvaluationWords
	}
	if req.Workers != 0 {
		cfg.Workers = req.Workers
	}
	if req.MaxAttempts != 0 {
		cfg.MaxAttempts = req.MaxAttempts
	}
	cfg.EnableEvaluation = req.EnableEvaluation

	ref := scoring.Reference{
		AnswerKey:    req.AnswerKey,
		QuestionText: req.QuestionText,
		GraderNotes:  req.GraderNotes,
	}
	return inputs, cfg, ref, nil
}

// parseMultipartJob reads uploaded files from the "files" field; unreadable
// uploads become error tasks rather than failing the whole batch.
func (s *Server) parseMultipartJob(r *http.Request) ([]job.TaskInput, job.Config, scoring.Reference, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, job.Config{}, scoring.Reference{}, fmt.Errorf("invalid multipart body: %w", err)
	}

	var inputs []job.TaskInput
	for _, header := range r.MultipartForm.File["files"] {
		input := job.TaskInput{Filename: header.Filename}

		file, err := header.Open()
		if err != nil {
			input.ExtractionError = fmt.Sprintf("failed to extract %s: %v", header.Filename, err)
			inputs = append(inputs, input)
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			input.ExtractionError = fmt.Sprintf("failed to extract %s: %v", header.Filename, err)
			inputs = append(inputs, input)
			continue
		}

		text, err := extraction.FromBytes(header.Filename, data)
		if err != nil {
			input.ExtractionError = err.Error()
		} else {
			input.ExtractedText = text
		}
		inputs = append(inputs, input)
	}

	cfg := s.jobDefaults
	if v := r.FormValue("score_min"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScoreMin = f
		}
	}
	if v := r.FormValue("score_max"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScoreMax = f
		}
	}
	if v := r.FormValue("enable_evaluation"); v != "" {
		cfg.EnableEvaluation, _ = strconv.ParseBool(v)
	}
	if v := r.FormValue("max_evaluation_words"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxEvaluationWords = n
		}
	}
	if v := r.FormValue("workers"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := r.FormValue("max_attempts"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttempts = n
		}
	}

	ref := scoring.Reference{
		AnswerKey:    r.FormValue("answer_key"),
		QuestionText: r.FormValue("question_text"),
		GraderNotes:  r.FormValue("grader_notes"),
	}
	return inputs, cfg, ref, nil
}

// getController resolves the {id} path value to a live job controller.
func (s *Server) getController(w http.ResponseWriter, r *http.Request) (*job.Controller, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return nil, false
	}

	ctrl, err := s.registry.Get(id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), "Job not found")
		return nil, false
	}
	return ctrl, true
}

// handleProgress returns the current progress tuple for polling clients.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}

	p := ctrl.Progress()
	s.jsonResponse(w, http.StatusOK, ProgressResponse{
		JobID:     ctrl.ID(),
		Status:    p.Status,
		Completed: p.Completed,
		Total:     p.Total,
		Message:   p.Message,
	})
}

// handleEvents streams progress updates via SSE until the job finishes or the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			if err := sse.WriteEvent("progress", u); err != nil {
				return
			}
			if u.Status == string(job.StatusCompleted) {
				sse.WriteComplete(ctrl.ID(), u.Status)
				return
			}
		case <-ctrl.Done():
			// The final update can be dropped for a slow subscriber; close the
			// stream from the job's own completion signal instead of hanging.
			final := ctrl.Progress()
			sse.WriteEvent("progress", final) //nolint:errcheck
			sse.WriteComplete(ctrl.ID(), final.Status)
			return
		}
	}
}

// handleResultCSV streams the result table as BOM-prefixed CSV.
func (s *Server) handleResultCSV(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}
	if ctrl.Job().Status() != job.StatusCompleted {
		s.errorResponse(w, HTTPStatus(job.ErrNotReady), "Job is still running")
		return
	}

	rows := report.Assemble(ctrl.Job().Snapshot())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scores_"+ctrl.ID()+".csv"))
	if err := report.WriteCSV(w, rows); err != nil {
		log.Printf("Error writing CSV response: %v", err)
	}
}

// handleResultXLSX streams the result table as an XLSX workbook.
func (s *Server) handleResultXLSX(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}
	if ctrl.Job().Status() != job.StatusCompleted {
		s.errorResponse(w, HTTPStatus(job.ErrNotReady), "Job is still running")
		return
	}

	data, err := report.WriteXLSX(report.Assemble(ctrl.Job().Snapshot()))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scores_"+ctrl.ID()+".xlsx"))
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing XLSX response: %v", err)
	}
}

// handleCancel requests cancellation: in-flight provider calls finish, the
// rest of the queue drains as cancelled.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}

	ctrl.Cancel()
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"job_id": ctrl.ID(),
		"status": string(ctrl.Job().Status()),
	})
}

// handleRetryTask re-queues one failed task on a completed job.
func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid task index")
		return
	}

	// Background context: the rescore outlives this request.
	if err := ctrl.RetryTask(context.Background(), index); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"job_id": ctrl.ID(),
		"task":   index,
		"status": string(job.StatusRunning),
	})
}

// handleDeleteJob evicts a finished job, typically after the result download.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getController(w, r)
	if !ok {
		return
	}
	if ctrl.Job().Status() != job.StatusCompleted {
		s.errorResponse(w, HTTPStatus(job.ErrStillRunning), "Job is still running")
		return
	}

	s.registry.Delete(ctrl.Job().ID)
	w.WriteHeader(http.StatusNoContent)
}
