// Package recognizer is the service core. It ties the face encoder, the
// embedding index, the matcher and the attendance coordinator together
// behind the operations the HTTP API and the CLI expose.
package recognizer

import (
	"context"
	"fmt"
	"time"

	"github.com/example/facegate/internal/attendance"
	"github.com/example/facegate/internal/encoder"
	"github.com/example/facegate/internal/faceindex"
	"github.com/example/facegate/internal/store"
)

// Encoder is the subset of the face model client the service needs.
type Encoder interface {
	Encode(ctx context.Context, imageData []byte) ([]encoder.DetectedFace, error)
	EncodeForEnrollment(ctx context.Context, imageData []byte) (*encoder.DetectedFace, error)
	EncodeForRecognition(ctx context.Context, imageData []byte) (*encoder.DetectedFace, error)
}

// refresher is implemented by matchers that maintain a derived search
// structure and need rebuilding after index mutations.
type refresher interface {
	Refresh()
}

// RecognitionResult is the full answer to a recognition request: the match
// outcome plus, when a match was confident, the attendance consequence.
type RecognitionResult struct {
	Outcome    faceindex.RecognitionOutcome `json:"outcome"`
	Identity   *store.Identity              `json:"identity,omitempty"`
	Attendance *attendance.Result           `json:"attendance,omitempty"`
	// CooldownHit is true when the identity matched but was recognized
	// again too soon after the previous hit, so no attendance call was
	// made.
	CooldownHit bool `json:"cooldown_hit,omitempty"`
}

// Stats is a point-in-time view of the service state.
type Stats struct {
	EnrolledCount int       `json:"enrolled_count"`
	EmbeddingDim  int       `json:"embedding_dim"`
	Threshold     float64   `json:"threshold"`
	QualityFloor  float64   `json:"quality_floor"`
	Model         string    `json:"model"`
	LastSyncAt    time.Time `json:"last_sync_at,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// Service exposes the recognition, enrollment and maintenance operations.
type Service struct {
	enc       Encoder
	index     *faceindex.Index
	matcher   faceindex.Matcher
	coord     *attendance.Coordinator
	directory store.DirectoryReader
	profiles  store.ProfileWriter
	persister *faceindex.Persister
	runtime   *RuntimeConfig
	cooldown  *cooldownTracker
	model     string
	startedAt time.Time
}

// Config wires a Service. Coordinator, Directory, Profiles and Persister
// are optional; operations that need a missing piece degrade gracefully.
type Config struct {
	Encoder     Encoder
	Index       *faceindex.Index
	Matcher     faceindex.Matcher
	Coordinator *attendance.Coordinator
	Directory   store.DirectoryReader
	Profiles    store.ProfileWriter
	Persister   *faceindex.Persister
	Runtime     *RuntimeConfig
	Cooldown    time.Duration
	Model       string
}

// New creates the service.
func New(cfg Config) *Service {
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = faceindex.NewLinearMatcher(cfg.Index)
	}
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = NewRuntimeConfig(0.5, 0)
	}

	return &Service{
		enc:       cfg.Encoder,
		index:     cfg.Index,
		matcher:   matcher,
		coord:     cfg.Coordinator,
		directory: cfg.Directory,
		profiles:  cfg.Profiles,
		persister: cfg.Persister,
		runtime:   runtime,
		cooldown:  newCooldownTracker(cfg.Cooldown),
		model:     cfg.Model,
		startedAt: time.Now(),
	}
}

// Runtime exposes the mutable settings.
func (s *Service) Runtime() *RuntimeConfig {
	return s.runtime
}

// Index exposes the embedding index for read access.
func (s *Service) Index() *faceindex.Index {
	return s.index
}

// Recognize matches the best face in the image against the enrolled
// population and, on a confident match, marks attendance for the day.
func (s *Service) Recognize(ctx context.Context, imageData []byte) (*RecognitionResult, error) {
	face, err := s.enc.EncodeForRecognition(ctx, imageData)
	if err != nil {
		return nil, err
	}

	outcome := s.matcher.FindBestMatch(face.Embedding, s.runtime.Threshold())
	result := &RecognitionResult{Outcome: outcome}

	if outcome.Status != faceindex.StatusSuccess {
		return result, nil
	}

	if s.directory != nil {
		identity, err := s.directory.GetIdentity(ctx, outcome.MatchedIdentityID)
		if err == nil && identity != nil {
			result.Identity = identity
		}
	}

	now := time.Now()
	if s.cooldown.inCooldown(outcome.MatchedIdentityID, now) {
		result.CooldownHit = true
		return result, nil
	}

	if s.coord != nil {
		att, err := s.coord.Mark(ctx, outcome.MatchedIdentityID, outcome.Similarity, now)
		if err != nil {
			// No cooldown stamp: the next frame may retry the write.
			return result, fmt.Errorf("marking attendance: %w", err)
		}
		result.Attendance = att
	}
	s.cooldown.stamp(outcome.MatchedIdentityID, now)

	return result, nil
}

// Enroll extracts the single usable face from the image and stores its
// embedding for the identity, replacing any previous enrollment.
func (s *Service) Enroll(ctx context.Context, identityID string, imageData []byte) (*faceindex.FaceRecord, error) {
	face, err := s.enc.EncodeForEnrollment(ctx, imageData)
	if err != nil {
		return nil, err
	}

	rec, err := s.index.Upsert(identityID, face.Embedding, faceindex.RecordMeta{
		Confidence: face.DetScore,
		Source:     faceindex.SourceAPI,
	})
	if err != nil {
		return nil, err
	}

	if s.profiles != nil {
		profile := store.FaceProfile{
			IdentityID: identityID,
			Embedding:  rec.Embedding,
			Landmarks:  face.Landmarks,
			DetScore:   face.DetScore,
			Model:      s.model,
			Dim:        s.index.Dim(),
			UpdatedAt:  time.Now(),
		}
		if err := s.profiles.SaveProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("saving profile: %w", err)
		}
	}

	s.afterIndexChange()
	return rec, nil
}

// Delete removes the identity's enrollment. Deleting an unknown identity
// returns faceindex.ErrNotFound.
func (s *Service) Delete(ctx context.Context, identityID string) error {
	if !s.index.Remove(identityID) {
		return faceindex.ErrNotFound
	}
	if s.profiles != nil {
		if err := s.profiles.DeleteProfile(ctx, identityID); err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
	}
	s.afterIndexChange()
	return nil
}

// List returns every enrolled record in identity order.
func (s *Service) List() []faceindex.FaceRecord {
	return s.index.Snapshot()
}

// ExtractLandmarks runs detection only and returns every face found in the
// image with its landmarks, without touching the index.
func (s *Service) ExtractLandmarks(ctx context.Context, imageData []byte) ([]encoder.DetectedFace, error) {
	faces, err := s.enc.Encode(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, encoder.ErrNoFaceDetected
	}
	return faces, nil
}

// Stats reports the current service state.
func (s *Service) Stats() Stats {
	return Stats{
		EnrolledCount: s.index.Size(),
		EmbeddingDim:  s.index.Dim(),
		Threshold:     s.runtime.Threshold(),
		QualityFloor:  s.runtime.QualityFloor(),
		Model:         s.model,
		LastSyncAt:    s.runtime.LastSyncAt(),
		StartedAt:     s.startedAt,
	}
}

// afterIndexChange persists a snapshot and rebuilds derived matcher state
// after a mutation through the API.
func (s *Service) afterIndexChange() {
	if s.persister != nil && s.index.Dirty() {
		if err := s.persister.Save(s.index.Dim(), s.index.Snapshot()); err == nil {
			s.index.ClearDirty()
		}
	}
	if r, ok := s.matcher.(refresher); ok {
		r.Refresh()
	}
}
