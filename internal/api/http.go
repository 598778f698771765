package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/report"
)

// Server holds the handler dependencies
type Server struct {
	reports Reports
}

type reportRequest struct {
	ReportID string `json:"report_id"`
}

type reportResponse struct {
	ReportID string `json:"report_id"`
}

type failedResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/health", http.StatusFound)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) triggerReport(w http.ResponseWriter, r *http.Request) {
	id, err := s.reports.Trigger(r.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to trigger report")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{ReportID: id})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.ReportID) == "" {
		writeError(w, http.StatusBadRequest, "report_id is required")
		return
	}

	job, err := s.reports.Status(r.Context(), req.ReportID)
	if errors.Is(err, report.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		logrus.WithField("report_id", req.ReportID).WithError(err).Error("Failed to load report status")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	switch job.Status {
	case database.ReportStatusRunning:
		writeJSON(w, http.StatusOK, database.ReportStatusRunning)
	case database.ReportStatusFailed:
		writeJSON(w, http.StatusInternalServerError, failedResponse{Status: job.Status, Error: job.Error})
	default:
		serveReport(w, r, job)
	}
}

func serveReport(w http.ResponseWriter, r *http.Request, job *report.Job) {
	f, err := os.Open(job.ArtifactPath)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"report_id": job.ReportID,
			"path":      job.ArtifactPath,
		}).WithError(err).Error("Report artifact unavailable")
		writeJSON(w, http.StatusInternalServerError, failedResponse{
			Status: database.ReportStatusFailed,
			Error:  "report file is no longer available",
		})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(job.ArtifactPath)+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
