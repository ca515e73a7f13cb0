//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/facemark/facemark/internal/config"
	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/roster"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(&config.DatabaseConfig{URL: dbURL, MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func createTestStudent(t *testing.T, repo *StudentRepository, name, usn string, embeddings [][]float64) string {
	t.Helper()
	id := uuid.NewString()
	s := &database.StoredStudent{
		Student: roster.Student{
			ID:    id,
			Name:  name,
			USN:   usn,
			Email: usn + "@example.com",
			Face:  roster.EnrolledFace{Embeddings: embeddings},
		},
		PasswordHash: "$2a$10$test",
	}
	if len(embeddings) > 0 {
		s.Face.EnrolledAt = time.Now().UTC()
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Failed to create student %s: %v", name, err)
	}
	return id
}

func TestRepositories(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	students := NewStudentRepository(pool)
	classrooms := NewClassroomRepository(pool)
	ledger := NewAttendanceRepository(pool)

	emb := make([]float64, 128)
	for i := range emb {
		emb[i] = float64(i) / 128.0
	}

	teacherID := createTestStudent(t, students, "Teacher", "T001", nil)
	s1 := createTestStudent(t, students, "Alice", "USN001", [][]float64{emb})
	s2 := createTestStudent(t, students, "Bob", "USN002", nil)

	classID := uuid.NewString()

	t.Run("StudentRoundTrip", func(t *testing.T) {
		got, err := students.Get(ctx, s1)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected student, got nil")
		}
		if len(got.Face.Embeddings) != 1 || len(got.Face.Embeddings[0]) != 128 {
			t.Fatalf("unexpected embeddings: %d poses", len(got.Face.Embeddings))
		}
		if got.Face.Embeddings[0][64] != emb[64] {
			t.Errorf("embedding value drifted through pgvector round trip")
		}
	})

	t.Run("ReplaceEmbeddings", func(t *testing.T) {
		newEmb := make([]float64, 128)
		newEmb[0] = 1
		if err := students.ReplaceEmbeddings(ctx, s1, [][]float64{newEmb, emb}); err != nil {
			t.Fatalf("ReplaceEmbeddings failed: %v", err)
		}
		got, err := students.Get(ctx, s1)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(got.Face.Embeddings) != 2 {
			t.Fatalf("expected 2 embeddings after replacement, got %d", len(got.Face.Embeddings))
		}
		if got.Face.Embeddings[0][0] != 1 {
			t.Error("embedding order not preserved after replacement")
		}
	})

	t.Run("ClassroomAndRoster", func(t *testing.T) {
		err := classrooms.Create(ctx, &roster.Classroom{
			ID:            classID,
			Name:          "Algorithms",
			Subject:       "CS",
			Code:          "ALG-42",
			OwnerID:       teacherID,
			MinAttendance: 75,
		})
		if err != nil {
			t.Fatalf("Create classroom failed: %v", err)
		}

		for _, id := range []string{s1, s2} {
			if err := classrooms.AddStudent(ctx, classID, id); err != nil {
				t.Fatalf("AddStudent failed: %v", err)
			}
		}
		// Joining twice must be a no-op.
		if err := classrooms.AddStudent(ctx, classID, s1); err != nil {
			t.Fatalf("repeated AddStudent failed: %v", err)
		}

		got, err := classrooms.ListStudents(ctx, classID)
		if err != nil {
			t.Fatalf("ListStudents failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 roster members, got %d", len(got))
		}
		if got[0].USN != "USN001" || got[1].USN != "USN002" {
			t.Errorf("roster not in USN order: %s, %s", got[0].USN, got[1].USN)
		}
		if len(got[0].Face.Embeddings) == 0 {
			t.Error("roster members should carry enrolled embeddings")
		}
	})

	t.Run("LedgerUpsertIdempotent", func(t *testing.T) {
		day := "2026-03-02"
		at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

		for i := 0; i < 2; i++ {
			if err := ledger.UpsertPresence(ctx, classID, s1, day, true, at); err != nil {
				t.Fatalf("UpsertPresence failed: %v", err)
			}
		}

		fact, err := ledger.Get(ctx, classID, s1, day)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if fact == nil || !fact.Present {
			t.Fatal("expected a present fact")
		}

		facts, err := ledger.ListForDay(ctx, classID, day)
		if err != nil {
			t.Fatalf("ListForDay failed: %v", err)
		}
		if len(facts) != 1 {
			t.Errorf("repeated upsert must not duplicate facts, got %d", len(facts))
		}
	})

	t.Run("LedgerLastWriterWins", func(t *testing.T) {
		day := "2026-03-03"
		t1 := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
		t2 := t1.Add(time.Hour)

		if err := ledger.UpsertPresence(ctx, classID, s1, day, true, t1); err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}
		if err := ledger.UpsertPresence(ctx, classID, s1, day, false, t2); err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		fact, err := ledger.Get(ctx, classID, s1, day)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if fact.Present {
			t.Error("second write must win: expected present=false")
		}
		if !fact.UpdatedAt.Equal(t2) {
			t.Errorf("expected updated_at %v, got %v", t2, fact.UpdatedAt)
		}
	})

	t.Run("LedgerCounts", func(t *testing.T) {
		present, err := ledger.CountPresent(ctx, classID, s1)
		if err != nil {
			t.Fatalf("CountPresent failed: %v", err)
		}
		if present != 1 {
			t.Errorf("expected 1 present fact, got %d", present)
		}

		days, err := ledger.CountDays(ctx, classID)
		if err != nil {
			t.Fatalf("CountDays failed: %v", err)
		}
		if days != 2 {
			t.Errorf("expected 2 distinct session days, got %d", days)
		}
	})

	t.Run("GetMissingFact", func(t *testing.T) {
		fact, err := ledger.Get(ctx, classID, s2, "2026-03-04")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if fact != nil {
			t.Errorf("expected nil for never-evaluated key, got %+v", fact)
		}
	})
}
