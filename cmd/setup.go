package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// connectDatabase initializes PostgreSQL when DATABASE_URL is set.
// Returns false when no database is configured.
func connectDatabase(cfg *config.Config) (bool, error) {
	if cfg.Database.URL == "" {
		return false, nil
	}
	fmt.Fprintln(os.Stderr, "Connecting to PostgreSQL database...")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return false, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return true, nil
}

// newRegistrar loads the gallery into a new matcher. The registrar mirrors
// students into the database when one is initialized.
func newRegistrar(ctx context.Context, cfg *config.Config) (*recognition.Registrar, *facematch.Matcher, *fingerprint.EmbeddingClient, error) {
	client := fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Timeout)
	matcher := facematch.NewMatcher(cfg.Attendance.Tolerance, nil)
	store := gallery.NewStore(cfg.Attendance.StudentsJSON)

	opts := []recognition.RegistrarOption{
		recognition.WithMaxImageSize(constants.RegistrationMaxSize),
	}
	if database.IsInitialized() {
		students, err := database.GetStudentStore(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("getting student store: %w", err)
		}
		opts = append(opts, recognition.WithMirror(students))
	}

	registrar := recognition.NewRegistrar(client, store, matcher, opts...)
	if _, err := registrar.Reload(); err != nil {
		return nil, nil, nil, fmt.Errorf("loading students from %s: %w", store.Path(), err)
	}
	return registrar, matcher, client, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
