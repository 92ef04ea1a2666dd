package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/facegate/internal/attendance"
	"github.com/example/facegate/internal/config"
	"github.com/example/facegate/internal/encoder"
	"github.com/example/facegate/internal/faceindex"
	"github.com/example/facegate/internal/recognizer"
	"github.com/example/facegate/internal/store"
	"github.com/example/facegate/internal/store/postgres"
	"github.com/example/facegate/internal/syncer"
)

// app holds the assembled service components shared by the subcommands.
type app struct {
	cfg       *config.Config
	enc       *encoder.Client
	index     *faceindex.Index
	persister *faceindex.Persister
	matcher   faceindex.Matcher
	pool      *postgres.Pool
	directory store.DirectoryReader
	profiles  store.ProfileWriter
	enrollLog store.EnrollmentLogger
	attStore  store.AttendanceStore
}

// buildApp loads configuration, restores the snapshot and connects the
// database when one is configured. With requireDB the command fails fast
// without DATABASE_URL instead of running in index-only mode.
func buildApp(ctx context.Context, requireDB bool) (*app, error) {
	cfg := config.Load()

	a := &app{
		cfg:   cfg,
		enc:   encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.Model),
		index: faceindex.New(cfg.Encoder.Dim),
	}

	if cfg.Snapshot.Path != "" {
		a.persister = faceindex.NewPersister(cfg.Snapshot.Path)
		records, err := a.persister.Load()
		if err != nil {
			if errors.Is(err, faceindex.ErrCorruptSnapshot) {
				fmt.Printf("Warning: snapshot unreadable, starting empty: %v\n", err)
			} else {
				return nil, fmt.Errorf("loading snapshot: %w", err)
			}
		} else if len(records) > 0 {
			if err := a.index.Replace(records); err != nil {
				return nil, fmt.Errorf("restoring snapshot: %w", err)
			}
			a.index.ClearDirty()
			fmt.Printf("Restored %d enrolled faces from %s\n", len(records), cfg.Snapshot.Path)
		}
	}

	if cfg.Recognition.UseHNSW {
		matcher := faceindex.NewHNSWMatcher(a.index)
		matcher.QualityFloor = cfg.Recognition.QualityFloor
		a.matcher = matcher
	} else {
		linear := faceindex.NewLinearMatcher(a.index)
		linear.QualityFloor = cfg.Recognition.QualityFloor
		a.matcher = linear
	}

	if cfg.Database.URL == "" {
		if requireDB {
			return nil, errors.New("DATABASE_URL environment variable is required")
		}
		return a, nil
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	a.pool = pool
	a.directory = postgres.NewDirectoryRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)
	a.profiles = profileRepo
	a.enrollLog = profileRepo
	a.attStore = postgres.NewAttendanceRepository(pool)
	return a, nil
}

// close releases the database pool if one was opened.
func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// coordinator builds the attendance coordinator, or returns nil without a
// database.
func (a *app) coordinator() (*attendance.Coordinator, error) {
	if a.attStore == nil {
		return nil, nil
	}
	return attendance.NewCoordinator(a.attStore, a.directory, a.cfg.Attendance.Timezone)
}

// reconciler builds the directory reconciler, or returns nil without a
// database.
func (a *app) reconciler() *syncer.Reconciler {
	if a.directory == nil {
		return nil
	}
	cfg := syncer.Config{
		Directory:      a.directory,
		Profiles:       a.profiles,
		EnrollLog:      a.enrollLog,
		Encoder:        a.enc,
		Index:          a.index,
		Persister:      a.persister,
		Concurrency:    a.cfg.Sync.Concurrency,
		PerCallTimeout: time.Duration(a.cfg.Sync.PerCallTimeoutSeconds) * time.Second,
	}
	if r, ok := a.matcher.(syncer.Refresher); ok {
		cfg.Refresher = r
	}
	return syncer.New(cfg)
}

// service builds the recognizer facade.
func (a *app) service(coord *attendance.Coordinator) *recognizer.Service {
	return recognizer.New(recognizer.Config{
		Encoder:     a.enc,
		Index:       a.index,
		Matcher:     a.matcher,
		Coordinator: coord,
		Directory:   a.directory,
		Profiles:    a.profiles,
		Persister:   a.persister,
		Runtime:     recognizer.NewRuntimeConfig(a.cfg.Recognition.Threshold, a.cfg.Recognition.QualityFloor),
		Cooldown:    time.Duration(a.cfg.Recognition.CooldownSeconds) * time.Second,
		Model:       a.cfg.Encoder.Model,
	})
}

// saveSnapshot writes the index to disk if persistence is configured.
func (a *app) saveSnapshot() error {
	if a.persister == nil || !a.index.Dirty() {
		return nil
	}
	if err := a.persister.Save(a.index.Dim(), a.index.Snapshot()); err != nil {
		return err
	}
	a.index.ClearDirty()
	return nil
}
