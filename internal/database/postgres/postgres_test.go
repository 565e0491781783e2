//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
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
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
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

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
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

func TestIdentityRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewIdentityRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		identity := &database.Identity{
			ID:        "S1",
			FullName:  "Jiří Novák",
			GroupName: "morning",
			Email:     "jiri@example.com",
		}
		if err := repo.Create(ctx, identity); err != nil {
			t.Fatalf("Failed to create identity: %v", err)
		}
		if identity.CreatedAt.IsZero() {
			t.Error("CreatedAt not populated")
		}

		got, err := repo.Get(ctx, "S1")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got.FullName != "Jiří Novák" {
			t.Errorf("FullName = %q, want 'Jiří Novák'", got.FullName)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		err := repo.Create(ctx, &database.Identity{ID: "S1", FullName: "Someone Else"})
		if !errors.Is(err, database.ErrIdentityExists) {
			t.Errorf("expected ErrIdentityExists, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(ctx, "nope")
		if !errors.Is(err, database.ErrIdentityNotFound) {
			t.Errorf("expected ErrIdentityNotFound, got %v", err)
		}
	})

	t.Run("SearchByName", func(t *testing.T) {
		results, err := repo.SearchByName(ctx, "jiri novak")
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(results) != 1 || results[0].ID != "S1" {
			t.Errorf("normalized search did not find S1: %+v", results)
		}
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		if err := repo.Update(ctx, &database.Identity{ID: "S1", FullName: "Jiří Novák", GroupName: "evening"}); err != nil {
			t.Fatalf("Failed to update: %v", err)
		}
		got, _ := repo.Get(ctx, "S1")
		if got.GroupName != "evening" {
			t.Errorf("GroupName = %q, want 'evening'", got.GroupName)
		}

		if err := repo.Update(ctx, &database.Identity{ID: "nope"}); !errors.Is(err, database.ErrIdentityNotFound) {
			t.Errorf("updating missing identity: expected ErrIdentityNotFound, got %v", err)
		}

		if err := repo.Delete(ctx, "S1"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if err := repo.Delete(ctx, "S1"); !errors.Is(err, database.ErrIdentityNotFound) {
			t.Errorf("deleting twice: expected ErrIdentityNotFound, got %v", err)
		}
	})
}

func TestReferenceFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	identities := NewIdentityRepository(pool)
	repo := NewReferenceFaceRepository(pool)

	for _, id := range []string{"S1", "S2"} {
		if err := identities.Create(ctx, &database.Identity{ID: id, FullName: id}); err != nil {
			t.Fatalf("Failed to create identity %s: %v", id, err)
		}
	}

	makeEmbedding := func(seed int) []float32 {
		emb := make([]float32, 512)
		for i := range emb {
			emb[i] = float32(i+seed) / 512.0
		}
		return emb
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		face := &database.StoredReferenceFace{
			IdentityID: "S1",
			ImagePath:  "gallery/S1/S1_0.jpg",
			Embedding:  makeEmbedding(0),
			Model:      "Facenet512",
			Dim:        512,
		}
		if err := repo.Save(ctx, face); err != nil {
			t.Fatalf("Failed to save reference face: %v", err)
		}
		if face.ID == 0 {
			t.Error("ID not populated")
		}

		got, err := repo.GetByIdentity(ctx, "S1", "Facenet512")
		if err != nil {
			t.Fatalf("Failed to get reference faces: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Expected 1 face, got %d", len(got))
		}
		if len(got[0].Embedding) != 512 {
			t.Errorf("Expected 512 dimensions, got %d", len(got[0].Embedding))
		}
	})

	t.Run("SaveReplacesSamePath", func(t *testing.T) {
		face := &database.StoredReferenceFace{
			IdentityID: "S1",
			ImagePath:  "gallery/S1/S1_0.jpg",
			Embedding:  makeEmbedding(1),
			Model:      "Facenet512",
			Dim:        512,
		}
		if err := repo.Save(ctx, face); err != nil {
			t.Fatalf("Failed to re-save reference face: %v", err)
		}

		count, err := repo.Count(ctx, "Facenet512")
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 face after upsert, got %d", count)
		}
	})

	t.Run("FindSimilarWithDistance", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			face := &database.StoredReferenceFace{
				IdentityID: "S2",
				ImagePath:  fmt.Sprintf("gallery/S2/S2_%d.jpg", i),
				Embedding:  makeEmbedding(10 * (i + 1)),
				Model:      "Facenet512",
				Dim:        512,
			}
			if err := repo.Save(ctx, face); err != nil {
				t.Fatalf("Failed to save: %v", err)
			}
		}

		results, distances, err := repo.FindSimilarWithDistance(ctx, makeEmbedding(0), "Facenet512", 3, 1.0)
		if err != nil {
			t.Fatalf("Failed to find similar: %v", err)
		}
		if len(results) == 0 {
			t.Fatal("Expected results, got none")
		}
		if len(results) != len(distances) {
			t.Fatalf("Results and distances length mismatch: %d vs %d", len(results), len(distances))
		}
		for i := 1; i < len(distances); i++ {
			if distances[i] < distances[i-1] {
				t.Error("Distances not sorted ascending")
			}
		}
		if results[0].ImagePath != "gallery/S1/S1_0.jpg" {
			t.Errorf("Closest face = %q, want gallery/S1/S1_0.jpg", results[0].ImagePath)
		}
	})

	t.Run("HNSWFastPath", func(t *testing.T) {
		if err := repo.EnableHNSW(ctx, "Facenet512", ""); err != nil {
			t.Fatalf("Failed to enable HNSW: %v", err)
		}
		if !repo.IsHNSWEnabled() {
			t.Fatal("HNSW not enabled")
		}

		results, distances, err := repo.FindSimilarWithDistance(ctx, makeEmbedding(0), "Facenet512", 3, 1.0)
		if err != nil {
			t.Fatalf("HNSW search failed: %v", err)
		}
		if len(results) == 0 || len(results) != len(distances) {
			t.Fatalf("HNSW search returned %d results, %d distances", len(results), len(distances))
		}
		repo.DisableHNSW()
	})

	t.Run("DeleteByIdentity", func(t *testing.T) {
		ids, err := repo.DeleteByIdentity(ctx, "S2")
		if err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if len(ids) != 4 {
			t.Errorf("Expected 4 deleted IDs, got %d", len(ids))
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	identities := NewIdentityRepository(pool)
	repo := NewAttendanceRepository(pool)

	if err := identities.Create(ctx, &database.Identity{ID: "S1", FullName: "Jan Dvořák"}); err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("RecordCheckIn", func(t *testing.T) {
		record := &database.AttendanceRecord{
			IdentityID:  "S1",
			SessionDate: day,
			CheckInTime: day.Add(8 * time.Hour),
			Confidence:  0.72,
			Distance:    0.28,
			ModelUsed:   "Facenet512",
			Status:      database.StatusPresent,
		}
		if err := repo.RecordCheckIn(ctx, record); err != nil {
			t.Fatalf("Failed to record check-in: %v", err)
		}
		if record.UID == "" {
			t.Error("UID not populated")
		}
	})

	t.Run("DuplicateForDay", func(t *testing.T) {
		err := repo.RecordCheckIn(ctx, &database.AttendanceRecord{
			IdentityID:  "S1",
			SessionDate: day,
			CheckInTime: day.Add(9 * time.Hour),
			ModelUsed:   "Facenet512",
			Status:      database.StatusLate,
		})
		if !errors.Is(err, database.ErrDuplicateForDay) {
			t.Errorf("expected ErrDuplicateForDay, got %v", err)
		}

		count, err := repo.CountByDate(ctx, day)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 record after duplicate rejection, got %d", count)
		}
	})

	t.Run("NextDayAllowed", func(t *testing.T) {
		nextDay := day.AddDate(0, 0, 1)
		err := repo.RecordCheckIn(ctx, &database.AttendanceRecord{
			IdentityID:  "S1",
			SessionDate: nextDay,
			CheckInTime: nextDay.Add(8 * time.Hour),
			ModelUsed:   "Facenet512",
			Status:      database.StatusPresent,
		})
		if err != nil {
			t.Fatalf("Check-in on next day should succeed: %v", err)
		}
	})

	t.Run("ReportByDate", func(t *testing.T) {
		records, err := repo.ReportByDate(ctx, day)
		if err != nil {
			t.Fatalf("Failed to get report: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		if records[0].FullName != "Jan Dvořák" {
			t.Errorf("FullName = %q, want 'Jan Dvořák'", records[0].FullName)
		}
	})

	t.Run("HistoryByIdentity", func(t *testing.T) {
		records, err := repo.HistoryByIdentity(ctx, "S1", 10)
		if err != nil {
			t.Fatalf("Failed to get history: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if !records[0].CheckInTime.After(records[1].CheckInTime) {
			t.Error("History not sorted newest first")
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	applied, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_create_identities.sql",
		"002_create_reference_faces.sql",
		"003_create_attendance.sql",
		"004_create_indexes.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}
}
