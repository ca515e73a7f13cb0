package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/embedding"
	"github.com/facemark/facemark/internal/roster"
	"github.com/facemark/facemark/internal/web/middleware"
)

// AuthHandler handles account signup, login and face enrollment.
type AuthHandler struct {
	students  database.StudentStore
	extractor embedding.Extractor
	issuer    *middleware.TokenIssuer
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(students database.StudentStore, extractor embedding.Extractor, issuer *middleware.TokenIssuer) *AuthHandler {
	return &AuthHandler{students: students, extractor: extractor, issuer: issuer}
}

type studentResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	USN      string `json:"usn"`
	Email    string `json:"email"`
	Enrolled bool   `json:"enrolled"`
}

func toStudentResponse(s *database.StoredStudent) studentResponse {
	return studentResponse{
		ID:       s.ID,
		Name:     s.Name,
		USN:      s.USN,
		Email:    s.Email,
		Enrolled: s.Enrolled(),
	}
}

type tokenResponse struct {
	Token   string          `json:"token"`
	Student studentResponse `json:"student"`
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		USN      string `json:"usn"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.USN == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, usn, email and password are required")
		return
	}

	existing, err := h.students.GetByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("Failed to look up email %s: %v", sanitizeForLog(req.Email), err)
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	student := &database.StoredStudent{
		Student: roster.Student{
			ID:    uuid.NewString(),
			Name:  req.Name,
			USN:   req.USN,
			Email: req.Email,
		},
		PasswordHash: string(hash),
	}
	if err := h.students.Create(r.Context(), student); err != nil {
		log.Printf("Failed to create student: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := h.issuer.Issue(student.ID, student.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusCreated, tokenResponse{Token: token, Student: toStudentResponse(student)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	student, err := h.students.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		log.Printf("Failed to look up email: %v", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if student == nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issuer.Issue(student.ID, student.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token, Student: toStudentResponse(student)})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	student, err := h.students.Get(r.Context(), identity.StudentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	respondJSON(w, http.StatusOK, toStudentResponse(student))
}

// EnrollFace handles POST /students/me/face. A multipart upload
// carries one or more photos under the "photos" field, each with
// exactly one detectable face; alternatively a JSON body may carry
// pre-extracted embeddings directly. Enrollment replaces any previous
// sequence wholesale.
func (h *AuthHandler) EnrollFace(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())

	var embeddings [][]float64
	switch {
	case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"):
		var ok bool
		embeddings, ok = h.enrollFromPhotos(w, r)
		if !ok {
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
		if len(req.Embeddings) == 0 {
			respondError(w, http.StatusBadRequest, "at least one embedding is required")
			return
		}
		for _, emb := range req.Embeddings {
			if len(emb) == 0 {
				respondError(w, http.StatusBadRequest, "embeddings must not be empty")
				return
			}
		}
		embeddings = req.Embeddings
	}

	if err := h.students.ReplaceEmbeddings(r.Context(), identity.StudentID, embeddings); err != nil {
		log.Printf("Failed to store embeddings for student %s: %v", sanitizeForLog(identity.StudentID), err)
		respondError(w, http.StatusInternalServerError, "failed to store enrollment")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enrolled": true,
		"poses":    len(embeddings),
	})
}

// enrollFromPhotos extracts one embedding per uploaded photo. It
// writes the error response itself and reports ok=false on failure.
func (h *AuthHandler) enrollFromPhotos(w http.ResponseWriter, r *http.Request) ([][]float64, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return nil, false
	}
	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "at least one photo is required")
		return nil, false
	}

	var embeddings [][]float64
	for _, fh := range files {
		file, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read photo")
			return nil, false
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read photo")
			return nil, false
		}

		detected, err := h.extractor.ExtractEmbeddings(r.Context(), data)
		if err != nil {
			log.Printf("Face extraction failed during enrollment: %v", err)
			respondError(w, http.StatusBadGateway, "face extraction failed")
			return nil, false
		}
		if len(detected) != 1 {
			respondError(w, http.StatusUnprocessableEntity, "each enrollment photo must contain exactly one face")
			return nil, false
		}
		embeddings = append(embeddings, detected[0])
	}
	return embeddings, true
}
