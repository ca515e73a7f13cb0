package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/roster"
	"github.com/facemark/facemark/internal/web/middleware"
)

// ClassroomsHandler handles classroom creation, joining and roster
// queries.
type ClassroomsHandler struct {
	classrooms           database.ClassroomStore
	defaultMinAttendance int
}

// NewClassroomsHandler creates a new classrooms handler.
func NewClassroomsHandler(classrooms database.ClassroomStore, defaultMinAttendance int) *ClassroomsHandler {
	return &ClassroomsHandler{classrooms: classrooms, defaultMinAttendance: defaultMinAttendance}
}

type classroomResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	Code          string `json:"code"`
	OwnerID       string `json:"owner_id"`
	MinAttendance int    `json:"min_attendance"`
}

func toClassroomResponse(c *roster.Classroom) classroomResponse {
	return classroomResponse{
		ID:            c.ID,
		Name:          c.Name,
		Subject:       c.Subject,
		Code:          c.Code,
		OwnerID:       c.OwnerID,
		MinAttendance: c.MinAttendance,
	}
}

// Create handles POST /classrooms. The caller becomes the owner.
func (h *ClassroomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())

	var req struct {
		Name          string `json:"name"`
		Subject       string `json:"subject"`
		Code          string `json:"code"`
		MinAttendance *int   `json:"min_attendance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(strings.ToUpper(req.Code))
	if req.Name == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "name and code are required")
		return
	}

	minAttendance := h.defaultMinAttendance
	if req.MinAttendance != nil {
		if *req.MinAttendance < 0 || *req.MinAttendance > 100 {
			respondError(w, http.StatusBadRequest, "min_attendance must be between 0 and 100")
			return
		}
		minAttendance = *req.MinAttendance
	}

	existing, err := h.classrooms.GetByCode(r.Context(), req.Code)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create classroom")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "classroom code already in use")
		return
	}

	classroom := &roster.Classroom{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Subject:       req.Subject,
		Code:          req.Code,
		OwnerID:       identity.StudentID,
		MinAttendance: minAttendance,
	}
	if err := h.classrooms.Create(r.Context(), classroom); err != nil {
		log.Printf("Failed to create classroom: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create classroom")
		return
	}
	respondJSON(w, http.StatusCreated, toClassroomResponse(classroom))
}

// Join handles POST /classrooms/join. Joining twice is a no-op.
func (h *ClassroomsHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	classroom, err := h.classrooms.GetByCode(r.Context(), strings.TrimSpace(strings.ToUpper(req.Code)))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to join classroom")
		return
	}
	if classroom == nil {
		respondError(w, http.StatusNotFound, "classroom not found")
		return
	}

	if err := h.classrooms.AddStudent(r.Context(), classroom.ID, identity.StudentID); err != nil {
		log.Printf("Failed to add student %s to classroom %s: %v",
			sanitizeForLog(identity.StudentID), classroom.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to join classroom")
		return
	}
	respondJSON(w, http.StatusOK, toClassroomResponse(classroom))
}

// Get handles GET /classrooms/{id}.
func (h *ClassroomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	classroom, err := h.classrooms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load classroom")
		return
	}
	if classroom == nil {
		respondError(w, http.StatusNotFound, "classroom not found")
		return
	}
	respondJSON(w, http.StatusOK, toClassroomResponse(classroom))
}

// ListMine handles GET /classrooms. Returns both classrooms the
// caller owns and classrooms they joined.
func (h *ClassroomsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())

	owned, err := h.classrooms.ListOwnedBy(r.Context(), identity.StudentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list classrooms")
		return
	}
	joined, err := h.classrooms.ListJoinedBy(r.Context(), identity.StudentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list classrooms")
		return
	}

	resp := struct {
		Owned  []classroomResponse `json:"owned"`
		Joined []classroomResponse `json:"joined"`
	}{
		Owned:  make([]classroomResponse, 0, len(owned)),
		Joined: make([]classroomResponse, 0, len(joined)),
	}
	for i := range owned {
		resp.Owned = append(resp.Owned, toClassroomResponse(&owned[i]))
	}
	for i := range joined {
		resp.Joined = append(resp.Joined, toClassroomResponse(&joined[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

type rosterEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	USN      string `json:"usn"`
	Email    string `json:"email"`
	Enrolled bool   `json:"enrolled"`
}

// Roster handles GET /classrooms/{id}/students. The optional ?q=
// parameter filters by name (diacritic-insensitive) or USN.
func (h *ClassroomsHandler) Roster(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")

	classroom, err := h.classrooms.Get(r.Context(), classroomID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load classroom")
		return
	}
	if classroom == nil {
		respondError(w, http.StatusNotFound, "classroom not found")
		return
	}

	students, err := h.classrooms.ListStudents(r.Context(), classroomID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load roster")
		return
	}

	query := r.URL.Query().Get("q")
	entries := make([]rosterEntry, 0, len(students))
	for i := range students {
		if query != "" && !students[i].MatchesQuery(query) {
			continue
		}
		entries = append(entries, rosterEntry{
			ID:       students[i].ID,
			Name:     students[i].Name,
			USN:      students[i].USN,
			Email:    students[i].Email,
			Enrolled: students[i].Enrolled(),
		})
	}
	respondJSON(w, http.StatusOK, entries)
}
