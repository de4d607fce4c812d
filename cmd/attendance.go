package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect the attendance history stored in PostgreSQL",
}

var attendanceHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded logins, logouts and timeouts",
	Long: `List recorded session transitions, newest first.

Examples:
  face-attendance attendance history --since 24h
  face-attendance attendance history --student 2024001 --json`,
	RunE: runAttendanceHistory,
}

var attendancePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete attendance events older than a duration",
	RunE:  runAttendancePurge,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceHistoryCmd, attendancePurgeCmd)

	attendanceHistoryCmd.Flags().String("student", "", "Only show events of this student")
	attendanceHistoryCmd.Flags().String("since", "", "Only show events newer than this duration (e.g. 8h)")
	attendanceHistoryCmd.Flags().Int("limit", 100, "Maximum number of events (0 for all)")
	attendanceHistoryCmd.Flags().Bool("json", false, "Output as JSON")

	attendancePurgeCmd.Flags().String("older-than", "", "Delete events older than this duration (e.g. 720h)")
	_ = attendancePurgeCmd.MarkFlagRequired("older-than")
}

// HistoryEntry is one row of "attendance history --json".
type HistoryEntry struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

func openAttendanceLog(ctx context.Context) (database.AttendanceLog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ok, err := connectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	return database.GetAttendanceLog(ctx)
}

func parseAge(flag, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--%s must be positive", flag)
	}
	return d, nil
}

func runAttendanceHistory(cmd *cobra.Command, args []string) error {
	filter := database.EventFilter{
		StudentID: mustGetString(cmd, "student"),
		Limit:     mustGetInt(cmd, "limit"),
	}
	jsonOutput := mustGetBool(cmd, "json")
	if filter.Limit < 0 {
		return errors.New("--limit must not be negative")
	}
	if since := mustGetString(cmd, "since"); since != "" {
		d, err := parseAge("since", since)
		if err != nil {
			return err
		}
		filter.Since = time.Now().Add(-d)
	}

	ctx := cmd.Context()
	events, err := openAttendanceLog(ctx)
	if err != nil {
		return err
	}
	defer postgres.Shutdown()

	list, err := events.ListEvents(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(list))
	for _, e := range list {
		entries = append(entries, HistoryEntry{
			ID:         e.ID.String(),
			StudentID:  e.StudentID,
			Name:       e.Name,
			Kind:       e.Kind,
			OccurredAt: e.OccurredAt,
		})
	}

	if jsonOutput {
		return outputJSON(entries)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-8s %-16s %s\n", e.OccurredAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.StudentID, e.Name)
	}
	fmt.Printf("\n%d events\n", len(entries))
	return nil
}

func runAttendancePurge(cmd *cobra.Command, args []string) error {
	age, err := parseAge("older-than", mustGetString(cmd, "older-than"))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	events, err := openAttendanceLog(ctx)
	if err != nil {
		return err
	}
	defer postgres.Shutdown()

	n, err := events.DeleteEventsBefore(ctx, time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("purging events: %w", err)
	}
	fmt.Printf("Deleted %d events\n", n)
	return nil
}
