package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/facemark/facemark/internal/attendance"
	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/embedding"
	"github.com/facemark/facemark/internal/web/middleware"
)

// AttendanceHandler handles session evaluation and ledger views.
type AttendanceHandler struct {
	service    *attendance.Service
	classrooms database.ClassroomStore
	extractor  embedding.Extractor
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(service *attendance.Service, classrooms database.ClassroomStore, extractor embedding.Extractor) *AttendanceHandler {
	return &AttendanceHandler{service: service, classrooms: classrooms, extractor: extractor}
}

// requireOwner loads the classroom and verifies the caller owns it.
// Writes the error response itself and returns false when the check
// fails.
func (h *AttendanceHandler) requireOwner(w http.ResponseWriter, r *http.Request, classroomID string) bool {
	classroom, err := h.classrooms.Get(r.Context(), classroomID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load classroom")
		return false
	}
	if classroom == nil {
		respondError(w, http.StatusNotFound, "classroom not found")
		return false
	}
	identity := middleware.GetIdentityFromContext(r.Context())
	if classroom.OwnerID != identity.StudentID {
		respondError(w, http.StatusForbidden, "only the classroom owner can do this")
		return false
	}
	return true
}

// RunSession handles POST /classrooms/{id}/attendance/session. The
// photo arrives as a multipart upload under "photo"; alternatively a
// JSON body may carry pre-extracted embeddings, which lets batch
// tooling bypass the extractor.
func (h *AttendanceHandler) RunSession(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")
	if !h.requireOwner(w, r, classroomID) {
		return
	}

	var detected [][]float64
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		data, err := readUploadedPhoto(r, "photo")
		if err != nil {
			respondError(w, http.StatusBadRequest, "a photo upload is required")
			return
		}
		detected, err = h.extractor.ExtractEmbeddings(r.Context(), data)
		if err != nil {
			log.Printf("Face extraction failed for classroom %s: %v", sanitizeForLog(classroomID), err)
			respondError(w, http.StatusBadGateway, "face extraction failed")
			return
		}
	default:
		var req struct {
			Embeddings [][]float64 `json:"embeddings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		detected = req.Embeddings
	}

	result, err := h.service.RunSession(r.Context(), classroomID, detected)
	if err != nil {
		h.respondServiceError(w, classroomID, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Today handles GET /classrooms/{id}/attendance/today.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")
	entries, err := h.service.TodaySummary(r.Context(), classroomID)
	if err != nil {
		h.respondServiceError(w, classroomID, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Summary handles GET /classrooms/{id}/attendance/summary.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")
	summary, err := h.service.Summarize(r.Context(), classroomID)
	if err != nil {
		h.respondServiceError(w, classroomID, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// StudentSummary handles GET /classrooms/{id}/students/{studentID}/attendance.
func (h *AttendanceHandler) StudentSummary(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")
	summary, err := h.service.SummarizeStudent(r.Context(), classroomID, chi.URLParam(r, "studentID"))
	if err != nil {
		h.respondServiceError(w, classroomID, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ReportCSV handles GET /classrooms/{id}/attendance/report. The
// ?mode= parameter picks the projection; "full" is the default.
func (h *AttendanceHandler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")
	if !h.requireOwner(w, r, classroomID) {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = attendance.ReportModeFull
	}

	report, err := h.service.ReportRows(r.Context(), classroomID, mode)
	if err != nil {
		if errors.Is(err, attendance.ErrUnknownReportMode) {
			respondError(w, http.StatusBadRequest, "unknown report mode")
			return
		}
		h.respondServiceError(w, classroomID, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attendance-"+mode+".csv"))
	writer := csv.NewWriter(w)
	if err := writer.Write(report.Header); err != nil {
		log.Printf("Failed to write report for classroom %s: %v", sanitizeForLog(classroomID), err)
		return
	}
	// WriteAll flushes; headers are already sent, so a failure here
	// can only be logged.
	if err := writer.WriteAll(report.Rows); err != nil {
		log.Printf("Failed to write report for classroom %s: %v", sanitizeForLog(classroomID), err)
	}
}

func (h *AttendanceHandler) respondServiceError(w http.ResponseWriter, classroomID string, err error) {
	switch {
	case errors.Is(err, attendance.ErrClassroomNotFound):
		respondError(w, http.StatusNotFound, "classroom not found")
	case errors.Is(err, attendance.ErrStudentNotFound):
		respondError(w, http.StatusNotFound, "student not found")
	default:
		log.Printf("Attendance operation failed for classroom %s: %v", sanitizeForLog(classroomID), err)
		respondError(w, http.StatusInternalServerError, "attendance operation failed")
	}
}
