package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthHandler_Signup_Success(t *testing.T) {
	f := newFixture(t)
	handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

	body := bytes.NewBufferString(`{"name": "Alice", "usn": "USN042", "email": "Alice@Example.com", "password": "hunter22"}`)
	req := httptest.NewRequest("POST", "/api/v1/auth/signup", body)
	recorder := httptest.NewRecorder()

	handler.Signup(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var response tokenResponse
	parseJSONResponse(t, recorder, &response)
	if response.Token == "" {
		t.Error("expected a token")
	}
	if response.Student.Email != "alice@example.com" {
		t.Errorf("expected lowercased email, got %q", response.Student.Email)
	}
	if response.Student.Enrolled {
		t.Error("fresh account must not be face-enrolled")
	}

	identity, err := f.issuer.Verify(response.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if identity.StudentID != response.Student.ID {
		t.Errorf("token subject %q does not match student %q", identity.StudentID, response.Student.ID)
	}
}

func TestAuthHandler_Signup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

	body := bytes.NewBufferString(`{"name": "Imposter", "usn": "USN099", "email": "bob@example.com", "password": "hunter22"}`)
	req := httptest.NewRequest("POST", "/api/v1/auth/signup", body)
	recorder := httptest.NewRecorder()

	handler.Signup(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "email already registered")
}

func TestAuthHandler_Signup_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"usn": "U1", "email": "a@b.c", "password": "x"}`},
		{"missing usn", `{"name": "A", "email": "a@b.c", "password": "x"}`},
		{"missing email", `{"name": "A", "usn": "U1", "password": "x"}`},
		{"missing password", `{"name": "A", "usn": "U1", "email": "a@b.c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

			req := httptest.NewRequest("POST", "/api/v1/auth/signup", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()
			handler.Signup(recorder, req)
			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	f := newFixture(t)
	handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

	t.Run("Success", func(t *testing.T) {
		body := bytes.NewBufferString(`{"email": "teacher@example.com", "password": "opensesame"}`)
		recorder := httptest.NewRecorder()
		handler.Login(recorder, httptest.NewRequest("POST", "/api/v1/auth/login", body))

		assertStatusCode(t, recorder, http.StatusOK)
		var response tokenResponse
		parseJSONResponse(t, recorder, &response)
		if response.Student.ID != ownerID {
			t.Errorf("expected student %q, got %q", ownerID, response.Student.ID)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		body := bytes.NewBufferString(`{"email": "teacher@example.com", "password": "nope"}`)
		recorder := httptest.NewRecorder()
		handler.Login(recorder, httptest.NewRequest("POST", "/api/v1/auth/login", body))

		assertStatusCode(t, recorder, http.StatusUnauthorized)
		assertJSONError(t, recorder, "invalid credentials")
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		body := bytes.NewBufferString(`{"email": "ghost@example.com", "password": "opensesame"}`)
		recorder := httptest.NewRecorder()
		handler.Login(recorder, httptest.NewRequest("POST", "/api/v1/auth/login", body))

		assertStatusCode(t, recorder, http.StatusUnauthorized)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	f := newFixture(t)
	handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

	req := requestWithIdentity(httptest.NewRequest("GET", "/api/v1/auth/me", nil), bobID, "bob@example.com")
	recorder := httptest.NewRecorder()
	handler.Me(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var response studentResponse
	parseJSONResponse(t, recorder, &response)
	if response.ID != bobID || !response.Enrolled {
		t.Errorf("unexpected response: %+v", response)
	}
}

// multipartPhotos builds a multipart body with one file per photo
// under the "photos" field.
func multipartPhotos(t *testing.T, photos ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, p := range photos {
		part, err := writer.CreateFormFile("photos", "pose.jpg")
		if err != nil {
			t.Fatalf("create form file %d: %v", i, err)
		}
		if _, err := part.Write(p); err != nil {
			t.Fatalf("write form file %d: %v", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestAuthHandler_EnrollFace(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		extractor := &stubExtractor{embeddings: [][]float64{{0, 1, 0, 0}}}
		handler := NewAuthHandler(f.students, extractor, f.issuer)

		body, contentType := multipartPhotos(t, []byte("jpeg-bytes"))
		req := httptest.NewRequest("POST", "/api/v1/students/me/face", body)
		req.Header.Set("Content-Type", contentType)
		req = requestWithIdentity(req, carolID, "zofie@example.com")

		recorder := httptest.NewRecorder()
		handler.EnrollFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)

		stored, err := f.students.Get(req.Context(), carolID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !stored.Enrolled() || len(stored.Face.Embeddings) != 1 {
			t.Errorf("expected one enrolled pose, got %+v", stored.Face)
		}
	})

	t.Run("MultipleFacesRejected", func(t *testing.T) {
		f := newFixture(t)
		extractor := &stubExtractor{embeddings: [][]float64{{0, 1, 0, 0}, {0, 0, 1, 0}}}
		handler := NewAuthHandler(f.students, extractor, f.issuer)

		body, contentType := multipartPhotos(t, []byte("jpeg-bytes"))
		req := httptest.NewRequest("POST", "/api/v1/students/me/face", body)
		req.Header.Set("Content-Type", contentType)
		req = requestWithIdentity(req, carolID, "zofie@example.com")

		recorder := httptest.NewRecorder()
		handler.EnrollFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	})

	t.Run("JSONEmbeddings", func(t *testing.T) {
		f := newFixture(t)
		handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

		body := bytes.NewBufferString(`{"embeddings": [[0, 1, 0, 0], [0, 0, 1, 0]]}`)
		req := httptest.NewRequest("POST", "/api/v1/students/me/face", body)
		req.Header.Set("Content-Type", "application/json")
		req = requestWithIdentity(req, carolID, "zofie@example.com")

		recorder := httptest.NewRecorder()
		handler.EnrollFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)

		stored, err := f.students.Get(req.Context(), carolID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(stored.Face.Embeddings) != 2 {
			t.Fatalf("expected 2 enrolled poses, got %d", len(stored.Face.Embeddings))
		}
		if stored.Face.Embeddings[0][1] != 1 {
			t.Error("embedding order not preserved")
		}
	})

	t.Run("JSONEmptyEmbeddings", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"no embeddings", `{"embeddings": []}`},
			{"empty vector", `{"embeddings": [[]]}`},
			{"invalid json", `{"embeddings": `},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

				req := httptest.NewRequest("POST", "/api/v1/students/me/face", bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", "application/json")
				req = requestWithIdentity(req, carolID, "zofie@example.com")

				recorder := httptest.NewRecorder()
				handler.EnrollFace(recorder, req)

				assertStatusCode(t, recorder, http.StatusBadRequest)
			})
		}
	})

	t.Run("NoPhoto", func(t *testing.T) {
		f := newFixture(t)
		handler := NewAuthHandler(f.students, &stubExtractor{}, f.issuer)

		body, contentType := multipartPhotos(t)
		req := httptest.NewRequest("POST", "/api/v1/students/me/face", body)
		req.Header.Set("Content-Type", contentType)
		req = requestWithIdentity(req, carolID, "zofie@example.com")

		recorder := httptest.NewRecorder()
		handler.EnrollFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusBadRequest)
	})
}
