package faceindex

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotVersion is bumped whenever the on-disk layout changes so stale
// files are detected instead of silently misread.
const snapshotVersion = 1

// ErrCorruptSnapshot is returned by Load when the snapshot file exists but
// cannot be decoded or carries an unknown version.
var ErrCorruptSnapshot = errors.New("corrupt face index snapshot")

// snapshotFile is the versioned on-disk container for the face index.
type snapshotFile struct {
	Version int
	SavedAt time.Time
	Dim     int
	Records []FaceRecord
}

// Persister snapshots the face index to a single file and restores it across
// restarts. Writes go to a temp file in the same directory followed by an
// atomic rename, so a reader can never observe a partially written snapshot.
type Persister struct {
	path string
}

// NewPersister creates a persister for the given snapshot path.
func NewPersister(path string) *Persister {
	return &Persister{path: path}
}

// Path returns the snapshot file location.
func (p *Persister) Path() string {
	return p.path
}

// Save serializes the records and atomically replaces the snapshot file.
func (p *Persister) Save(dim int, records []FaceRecord) error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(snapshotFile{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Dim:     dim,
		Records: records,
	}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load restores records from the snapshot file. A missing file is not an
// error and yields an empty slice. A file that cannot be decoded returns
// ErrCorruptSnapshot after being renamed aside to "<path>.corrupt" so it is
// preserved for diagnosis; the caller starts with an empty index and relies
// on the directory sync to repopulate it.
func (p *Persister) Load() ([]FaceRecord, error) {
	if p.path == "" {
		return nil, nil
	}
	f, err := os.Open(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshotFile
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		p.preserveCorrupt()
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		p.preserveCorrupt()
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, snap.Version)
	}
	return snap.Records, nil
}

// preserveCorrupt moves the unreadable snapshot out of the way so the next
// Save does not overwrite the evidence.
func (p *Persister) preserveCorrupt() {
	_ = os.Rename(p.path, p.path+".corrupt")
}
