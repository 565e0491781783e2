package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// backend bundles everything a command needs to work with the attendance
// system: the loaded config, the wired service and the repositories for
// direct store access.
type backend struct {
	cfg        *config.Config
	service    *attendance.Service
	identities *postgres.IdentityRepository
	faces      *postgres.ReferenceFaceRepository
	attendance *postgres.AttendanceRepository
	gallery    *gallery.Store
}

// newBackend connects to PostgreSQL and wires the attendance service. The
// HNSW fast path stays off for one-shot CLI commands; serve enables it.
func newBackend() (*backend, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	pool := postgres.GetGlobalPool()

	store, err := gallery.NewStore(cfg.Gallery.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery: %w", err)
	}

	identityRepo := postgres.NewIdentityRepository(pool)
	faceRepo := postgres.NewReferenceFaceRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)

	client := recognizer.NewClient(cfg.Recognizer.URL)
	searcher := recognizer.NewSearcher(client, faceRepo)

	return &backend{
		cfg:        cfg,
		service:    attendance.NewService(cfg, store, identityRepo, faceRepo, attendanceRepo, searcher, client),
		identities: identityRepo,
		faces:      faceRepo,
		attendance: attendanceRepo,
		gallery:    store,
	}, nil
}

// enableHNSW builds or loads the in-memory index for the active model.
func (b *backend) enableHNSW(ctx context.Context) {
	model := b.cfg.Recognizer.Model
	indexPath := b.cfg.Database.HNSWIndexPath

	if indexPath != "" {
		fmt.Printf("Loading HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for reference faces...\n")
	}
	if err := b.faces.EnableHNSW(ctx, model, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build HNSW index: %v\n", err)
		fmt.Printf("Similarity search will use PostgreSQL queries (slower)\n")
		return
	}
	count, err := b.faces.Count(ctx, model)
	if err != nil {
		count = 0
	}
	if indexPath != "" {
		fmt.Printf("HNSW index ready with %d reference faces (persisted to %s)\n", count, indexPath)
	} else {
		fmt.Printf("HNSW index built with %d reference faces (in-memory only)\n", count)
	}
}
