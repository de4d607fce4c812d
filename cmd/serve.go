package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Face Attendance web server.
The server accepts camera frames from the kiosk page, logs recognized students
in, and logs them out after SESSION_IDLE_TIMEOUT without a recognition.

PostgreSQL is optional: with DATABASE_URL set, every login and logout is kept
in an attendance history, registered students are mirrored, and admin sessions
survive restarts.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to WEB_SESSION_SECRET or random)")
	serveCmd.Flags().Float64("tolerance", 0, "Maximum face distance for a match (overrides FACE_TOLERANCE)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "Origins allowed to call the API cross-origin (overrides WEB_ALLOWED_ORIGINS)")
}

// applyServeFlags lets command line flags override the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}
	if tolerance := mustGetFloat64(cmd, "tolerance"); tolerance != 0 {
		cfg.Attendance.Tolerance = tolerance
	}
	if origins := mustGetStringSlice(cmd, "allowed-origins"); len(origins) > 0 {
		cfg.Web.AllowedOrigins = origins
	}
}

// purgeExpiredEvents deletes attendance events older than retention until ctx is done.
func purgeExpiredEvents(ctx context.Context, events database.AttendanceLog, retention time.Duration) {
	purge := func() {
		deleted, err := events.DeleteEventsBefore(ctx, time.Now().Add(-retention))
		if err != nil {
			fmt.Printf("Warning: failed to purge attendance events: %v\n", err)
			return
		}
		if deleted > 0 {
			fmt.Printf("Purged %d attendance events older than %s\n", deleted, retention)
		}
	}

	purge()
	ticker := time.NewTicker(constants.RetentionCheckHours * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	broadcaster := handlers.NewEventBroadcaster()
	trackerOpts := []attendance.Option{
		attendance.WithMetrics(attendance.NewMetrics(registry)),
		attendance.WithRecorder(broadcaster),
	}

	hasDatabase, err := connectDatabase(cfg)
	if err != nil {
		return err
	}

	services := web.Services{
		Broadcaster: broadcaster,
		Gatherer:    registry,
	}
	if hasDatabase {
		defer postgres.Shutdown()

		pool := postgres.GetGlobalPool()
		attendanceRepo := postgres.NewAttendanceRepository(pool)
		trackerOpts = append(trackerOpts, attendance.WithRecorder(attendanceRepo))
		services.Events = attendanceRepo
		services.Sessions = postgres.NewSessionRepository(pool)
		fmt.Printf("Attendance history and session persistence enabled (PostgreSQL)\n")
	} else {
		fmt.Printf("No DATABASE_URL set, attendance history is disabled\n")
	}

	tracker := attendance.NewTracker(trackerOpts...)

	registrar, matcher, client, err := newRegistrar(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d students from %s\n", matcher.Len(), cfg.Attendance.StudentsJSON)

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := client.Health(healthCtx); err != nil {
		fmt.Printf("Warning: embedding service at %s is not reachable: %v\n", client.BaseURL(), err)
	}
	healthCancel()

	pipeline := recognition.NewPipeline(client, matcher, tracker, cfg.Embedding.FrameMaxSize).
		WithMetrics(recognition.NewMetrics(registry))

	services.Tracker = tracker
	services.Matcher = matcher
	services.Pipeline = pipeline
	services.Registrar = registrar

	sweeper := attendance.NewSweeper(tracker, cfg.Attendance.SweepInterval, cfg.Attendance.IdleTimeout)
	go sweeper.Run(ctx)

	if services.Events != nil && cfg.Database.EventRetention > 0 {
		go purgeExpiredEvents(ctx, services.Events, cfg.Database.EventRetention)
	}

	if !cfg.Admin.Enabled() {
		fmt.Printf("ADMIN_PASSWORD not set, admin routes are disabled\n")
	}

	server := web.NewServer(cfg, services)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeoutSeconds*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
