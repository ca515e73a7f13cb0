package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/facemark/facemark/internal/attendance"
	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/database/mock"
	"github.com/facemark/facemark/internal/roster"
	"github.com/facemark/facemark/internal/web/middleware"
)

const (
	ownerID     = "owner-1"
	bobID       = "s-bob"
	carolID     = "s-carol"
	testClassID = "class-1"
	testCode    = "ALG-42"
)

// bobEmbedding is the enrolled face used across handler tests.
var bobEmbedding = []float64{1, 0, 0, 0}

// stubExtractor returns canned embeddings instead of calling the
// embedding server.
type stubExtractor struct {
	embeddings [][]float64
	err        error
}

func (s *stubExtractor) ExtractEmbeddings(ctx context.Context, imageData []byte) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.embeddings, nil
}

// fixture bundles the mock stores and a wired service for handler tests.
type fixture struct {
	students   *mock.StudentStore
	classrooms *mock.ClassroomStore
	facts      *mock.FactStore
	issuer     *middleware.TokenIssuer
	service    *attendance.Service
}

// newFixture seeds one classroom owned by a teacher account with two
// roster members, one of them face-enrolled.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		students: mock.NewStudentStore(),
		facts:    mock.NewFactStore(),
		issuer:   middleware.NewTokenIssuer("test-secret", time.Hour),
	}
	f.classrooms = mock.NewClassroomStore(f.students)
	f.service = attendance.NewService(f.classrooms, f.facts, roster.NewMatcher(0.45, 256))

	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}

	seed := []*database.StoredStudent{
		{
			Student:      roster.Student{ID: ownerID, Name: "Dana Teacher", USN: "T001", Email: "teacher@example.com"},
			PasswordHash: string(hash),
		},
		{
			Student: roster.Student{
				ID: bobID, Name: "Bob Novak", USN: "USN001", Email: "bob@example.com",
				Face: roster.EnrolledFace{Embeddings: [][]float64{bobEmbedding}, EnrolledAt: time.Now().UTC()},
			},
		},
		{
			Student: roster.Student{ID: carolID, Name: "Žofie Černá", USN: "USN002", Email: "zofie@example.com"},
		},
	}
	for _, s := range seed {
		if err := f.students.Create(ctx, s); err != nil {
			t.Fatalf("seed student %s: %v", s.ID, err)
		}
	}

	err = f.classrooms.Create(ctx, &roster.Classroom{
		ID: testClassID, Name: "Algorithms", Subject: "CS", Code: testCode,
		OwnerID: ownerID, MinAttendance: 75,
	})
	if err != nil {
		t.Fatalf("seed classroom: %v", err)
	}
	for _, id := range []string{bobID, carolID} {
		if err := f.classrooms.AddStudent(ctx, testClassID, id); err != nil {
			t.Fatalf("seed roster member %s: %v", id, err)
		}
	}
	return f
}

// requestWithIdentity adds a caller identity to the request context.
func requestWithIdentity(r *http.Request, studentID, email string) *http.Request {
	ctx := middleware.SetIdentityInContext(r.Context(), &middleware.Identity{StudentID: studentID, Email: email})
	return r.WithContext(ctx)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartPhotoField builds a multipart body with a single file
// under the given field name.
func multipartPhotoField(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, "photo.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["error"] != expectedMessage {
		t.Errorf("expected error %q, got %q", expectedMessage, result["error"])
	}
}
