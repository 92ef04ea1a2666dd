// Package syncer reconciles the in-memory face index against the identity
// directory. It enrolls identities that have a face image but no index
// record, evicts records whose identity left the directory, and persists a
// snapshot after each pass.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/example/facegate/internal/encoder"
	"github.com/example/facegate/internal/faceindex"
	"github.com/example/facegate/internal/store"
)

const (
	defaultConcurrency    = 8
	defaultPerCallTimeout = 15 * time.Second
	maxImageBytes         = 20 << 20
)

// FaceEncoder extracts the single enrollable face from an image.
type FaceEncoder interface {
	EncodeForEnrollment(ctx context.Context, imageData []byte) (*encoder.DetectedFace, error)
}

// Refresher is implemented by matchers that answer queries from a derived
// structure and must be rebuilt after the index changes.
type Refresher interface {
	Refresh()
}

// ProgressInfo is passed to the optional progress callback once per
// processed identity.
type ProgressInfo struct {
	Current    int
	Total      int
	IdentityID string
}

// Options tune a single reconciliation pass.
type Options struct {
	// Force re-enrolls every identity, even ones already in the index.
	Force bool
	// OnProgress, if set, is called after each identity finishes.
	OnProgress func(ProgressInfo)
}

// Failure records one identity that could not be enrolled.
type Failure struct {
	IdentityID string `json:"identity_id"`
	Reason     string `json:"reason"`
}

// Report summarizes a reconciliation pass.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Removed   int           `json:"removed"`
	Failed    []Failure     `json:"failed,omitempty"`
}

// Reconciler drives directory-to-index synchronization.
type Reconciler struct {
	directory store.DirectoryReader
	profiles  store.ProfileWriter
	enrollLog store.EnrollmentLogger
	enc       FaceEncoder
	index     *faceindex.Index
	persister *faceindex.Persister
	refresher Refresher
	client    *http.Client

	concurrency    int
	perCallTimeout time.Duration

	// runMu serializes passes so a manual trigger cannot overlap the
	// background loop.
	runMu      sync.Mutex
	lastMu     sync.Mutex
	lastReport *Report
}

// Config wires a Reconciler.
type Config struct {
	Directory      store.DirectoryReader
	Profiles       store.ProfileWriter
	EnrollLog      store.EnrollmentLogger
	Encoder        FaceEncoder
	Index          *faceindex.Index
	Persister      *faceindex.Persister
	Refresher      Refresher
	HTTPClient     *http.Client
	Concurrency    int
	PerCallTimeout time.Duration
}

// New creates a Reconciler. Profiles, EnrollLog and Persister may be nil
// when the deployment runs without a database or snapshot file.
func New(cfg Config) *Reconciler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := cfg.PerCallTimeout
	if timeout <= 0 {
		timeout = defaultPerCallTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Reconciler{
		directory:      cfg.Directory,
		profiles:       cfg.Profiles,
		enrollLog:      cfg.EnrollLog,
		enc:            cfg.Encoder,
		index:          cfg.Index,
		persister:      cfg.Persister,
		refresher:      cfg.Refresher,
		client:         client,
		concurrency:    concurrency,
		perCallTimeout: timeout,
	}
}

// LastReport returns the report of the most recent completed pass, or nil.
func (r *Reconciler) LastReport() *Report {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()
	return r.lastReport
}

type identityResult struct {
	identityID string
	skipped    bool
	err        error
}

// Sync runs one reconciliation pass. Identities already present in the
// index are left untouched unless opts.Force is set. A failure on one
// identity never affects the others.
func (r *Reconciler) Sync(ctx context.Context, opts Options) (*Report, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	report := &Report{StartedAt: time.Now()}

	identities, err := r.directory.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}

	resultsChan := make(chan identityResult, len(identities))
	semaphore := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	var processed int
	var progressMu sync.Mutex

	reportProgress := func(identityID string) {
		progressMu.Lock()
		processed++
		current := processed
		progressMu.Unlock()
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{
				Current:    current,
				Total:      len(identities),
				IdentityID: identityID,
			})
		}
	}

	for i := range identities {
		wg.Add(1)
		go func(identity store.Identity) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- identityResult{identityID: identity.ID, err: ctx.Err()}
				reportProgress(identity.ID)
				return
			}

			if identity.FaceImageURL == "" {
				resultsChan <- identityResult{identityID: identity.ID, skipped: true}
				reportProgress(identity.ID)
				return
			}
			if !opts.Force && r.index.Has(identity.ID) {
				resultsChan <- identityResult{identityID: identity.ID, skipped: true}
				reportProgress(identity.ID)
				return
			}

			err := r.enrollOne(ctx, identity)
			resultsChan <- identityResult{identityID: identity.ID, err: err}
			reportProgress(identity.ID)
		}(identities[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for res := range resultsChan {
		switch {
		case res.skipped:
			report.Skipped++
		case res.err != nil:
			report.Attempted++
			report.Failed = append(report.Failed, Failure{
				IdentityID: res.identityID,
				Reason:     res.err.Error(),
			})
		default:
			report.Attempted++
			report.Succeeded++
		}
	}

	report.Removed = r.evictDeparted(ctx, identities)
	report.Duration = time.Since(report.StartedAt)

	if r.refresher != nil && (report.Succeeded > 0 || report.Removed > 0) {
		r.refresher.Refresh()
	}

	if r.persister != nil && r.index.Dirty() {
		if err := r.persister.Save(r.index.Dim(), r.index.Snapshot()); err != nil {
			return report, fmt.Errorf("saving snapshot: %w", err)
		}
		r.index.ClearDirty()
	}

	r.lastMu.Lock()
	r.lastReport = report
	r.lastMu.Unlock()

	return report, nil
}

// enrollOne fetches the identity's face image, extracts the embedding and
// stores it in the index, the profile store and the enrollment log.
func (r *Reconciler) enrollOne(ctx context.Context, identity store.Identity) error {
	callCtx, cancel := context.WithTimeout(ctx, r.perCallTimeout)
	defer cancel()

	enrollErr := r.tryEnroll(callCtx, identity)

	if r.enrollLog != nil {
		entry := store.EnrollmentLogEntry{
			IdentityID: identity.ID,
			Success:    enrollErr == nil,
			Source:     string(faceindex.SourceSync),
			CreatedAt:  time.Now(),
		}
		if enrollErr != nil {
			entry.Reason = enrollErr.Error()
		}
		// Log failures are secondary to the enrollment outcome.
		_ = r.enrollLog.LogEnrollment(ctx, entry)
	}

	return enrollErr
}

func (r *Reconciler) tryEnroll(ctx context.Context, identity store.Identity) error {
	imageData, err := r.fetchImage(ctx, identity.FaceImageURL)
	if err != nil {
		return fmt.Errorf("fetching face image: %w", err)
	}

	face, err := r.enc.EncodeForEnrollment(ctx, imageData)
	if err != nil {
		return err
	}

	rec, err := r.index.Upsert(identity.ID, face.Embedding, faceindex.RecordMeta{
		Confidence: face.DetScore,
		Source:     faceindex.SourceSync,
		SourceURL:  identity.FaceImageURL,
	})
	if err != nil {
		return fmt.Errorf("indexing embedding: %w", err)
	}

	if r.profiles != nil {
		profile := store.FaceProfile{
			IdentityID: identity.ID,
			Embedding:  rec.Embedding,
			Landmarks:  face.Landmarks,
			DetScore:   face.DetScore,
			Dim:        r.index.Dim(),
			UpdatedAt:  time.Now(),
		}
		if err := r.profiles.SaveProfile(ctx, profile); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
	}

	return nil
}

// evictDeparted removes index records whose identity no longer appears in
// the directory roster.
func (r *Reconciler) evictDeparted(ctx context.Context, identities []store.Identity) int {
	roster := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		roster[id.ID] = struct{}{}
	}

	removed := 0
	for _, id := range r.index.IdentityIDs() {
		if _, ok := roster[id]; ok {
			continue
		}
		if r.index.Remove(id) {
			removed++
			if r.profiles != nil {
				_ = r.profiles.DeleteProfile(ctx, id)
			}
		}
	}
	return removed
}

func (r *Reconciler) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, errors.New("image exceeds size limit")
	}
	return data, nil
}

// Run executes Sync on a fixed interval until the context is cancelled.
// An immediate pass runs before the first tick. The callback receives each
// pass's report or error; failures do not stop the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, onPass func(*Report, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := r.Sync(ctx, Options{})
		if onPass != nil {
			onPass(report, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
