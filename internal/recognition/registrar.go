package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// ErrInvalidStudent is returned when a registration has no student id or name.
var ErrInvalidStudent = errors.New("student id and name are required")

// Registration describes a completed student registration.
type Registration struct {
	StudentID     string `json:"student_id"`
	Name          string `json:"name"`
	Replaced      bool   `json:"replaced"`
	FacesDetected int    `json:"faces_detected"`
	// Lookalikes are other students whose faces are within the match tolerance
	// of the new one; frames may be attributed to whichever is registered first.
	Lookalikes []facematch.Lookalike `json:"lookalikes,omitempty"`
}

// Registrar adds students to the gallery and keeps the matcher and the
// look-alike index in sync with the gallery file.
type Registrar struct {
	embedder   FaceEmbedder
	store      *gallery.Store
	matcher    *facematch.Matcher
	lookalikes *facematch.LookalikeIndex
	mirror     database.StudentWriter
	maxSize    int

	mu sync.Mutex
}

// RegistrarOption configures a Registrar.
type RegistrarOption func(*Registrar)

// WithMirror copies every registered student into a database.
func WithMirror(w database.StudentWriter) RegistrarOption {
	return func(r *Registrar) {
		r.mirror = w
	}
}

// WithMaxImageSize shrinks registration photos to fit maxSize before embedding.
func WithMaxImageSize(maxSize int) RegistrarOption {
	return func(r *Registrar) {
		r.maxSize = maxSize
	}
}

// NewRegistrar creates a registrar. Call Reload to load the gallery.
func NewRegistrar(embedder FaceEmbedder, store *gallery.Store, matcher *facematch.Matcher, opts ...RegistrarOption) *Registrar {
	r := &Registrar{
		embedder:   embedder,
		store:      store,
		matcher:    matcher,
		lookalikes: facematch.NewLookalikeIndex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookalikes returns the look-alike index built from the current gallery.
func (r *Registrar) Lookalikes() *facematch.LookalikeIndex {
	return r.lookalikes
}

// Reload reads the gallery file and publishes it to the matcher.
// Returns the number of students loaded.
func (r *Registrar) Reload() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identities, err := r.store.Load()
	if err != nil {
		return 0, err
	}
	r.publish(identities)
	logger.Info().Int("students", len(identities)).Str("path", r.store.Path()).Msg("gallery loaded")
	return len(identities), nil
}

// Register computes the face embedding of a photo and stores the student.
// Registering an existing student id replaces that student.
func (r *Registrar) Register(ctx context.Context, studentID, name string, image []byte) (*Registration, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if studentID == "" || name == "" {
		return nil, ErrInvalidStudent
	}

	img, err := fingerprint.PrepareImage(image, r.maxSize)
	if err != nil {
		return nil, err
	}
	resp, err := r.embedder.ComputeFaceEmbeddings(ctx, img.Data)
	if err != nil {
		return nil, fmt.Errorf("computing face embeddings: %w", err)
	}
	face, err := resp.BestFace()
	if err != nil {
		return nil, err
	}

	identity := facematch.KnownIdentity{
		ID:          studentID,
		DisplayName: name,
		Embedding:   face.Embedding,
	}

	r.mu.Lock()
	lookalikes := r.findLookalikes(identity)
	identities, replaced, err := r.store.Upsert(identity)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.publish(identities)
	r.mu.Unlock()

	logger.Info().Str("student", studentID).Str("name", name).Bool("replaced", replaced).
		Int("lookalikes", len(lookalikes)).Msg("student registered")

	if r.mirror != nil {
		err := r.mirror.SaveStudent(ctx, database.StoredStudent{
			StudentID: studentID,
			Name:      name,
			Embedding: face.Embedding,
		})
		if err != nil {
			// The gallery file is authoritative; the mirror catches up on the next sync.
			logger.Err(err).Str("student", studentID).Msg("failed to mirror student")
		}
	}

	return &Registration{
		StudentID:     studentID,
		Name:          name,
		Replaced:      replaced,
		FacesDetected: len(resp.Faces),
		Lookalikes:    lookalikes,
	}, nil
}

// Remove deletes a student from the gallery. Returns false if the student
// was not registered.
func (r *Registrar) Remove(ctx context.Context, studentID string) (bool, error) {
	r.mu.Lock()
	identities, removed, err := r.store.Remove(studentID)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}
	if removed {
		r.publish(identities)
	}
	r.mu.Unlock()

	if removed && r.mirror != nil {
		if _, err := r.mirror.DeleteStudent(ctx, studentID); err != nil {
			logger.Err(err).Str("student", studentID).Msg("failed to remove mirrored student")
		}
	}
	return removed, nil
}

// SyncMirror writes every gallery student to the mirror database.
// progress, if not nil, is called after each student.
func (r *Registrar) SyncMirror(ctx context.Context, progress func()) (int, error) {
	if r.mirror == nil {
		return 0, database.ErrNotInitialized
	}

	identities := r.matcher.Identities()
	for i, id := range identities {
		err := r.mirror.SaveStudent(ctx, database.StoredStudent{
			StudentID: id.ID,
			Name:      id.DisplayName,
			Embedding: id.Embedding,
		})
		if err != nil {
			return i, fmt.Errorf("mirroring student %s: %w", id.ID, err)
		}
		if progress != nil {
			progress()
		}
	}
	return len(identities), nil
}

// Similar returns up to limit students closest to a registered student,
// nearest first. Returns false if the student is not registered.
func (r *Registrar) Similar(studentID string, limit int) ([]facematch.Lookalike, bool) {
	var embedding []float32
	for _, id := range r.matcher.Identities() {
		if id.ID == studentID {
			embedding = id.Embedding
			break
		}
	}
	if embedding == nil {
		return nil, false
	}

	out := make([]facematch.Lookalike, 0, limit)
	for _, l := range r.lookalikes.Nearest(embedding, limit+1) {
		if l.ID == studentID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, l)
	}
	return out, true
}

// findLookalikes returns other students that the matcher could confuse with identity.
func (r *Registrar) findLookalikes(identity facematch.KnownIdentity) []facematch.Lookalike {
	var out []facematch.Lookalike
	for _, l := range r.lookalikes.Nearest(identity.Embedding, constants.LookalikeWarningCount+1) {
		if l.ID == identity.ID || l.Distance >= r.matcher.Tolerance() {
			continue
		}
		out = append(out, l)
	}
	if len(out) > constants.LookalikeWarningCount {
		out = out[:constants.LookalikeWarningCount]
	}
	return out
}

func (r *Registrar) publish(identities []facematch.KnownIdentity) {
	r.matcher.Reload(identities)
	r.lookalikes.Build(identities)
}
