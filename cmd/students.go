package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage registered students",
	Long: `Manage the gallery of registered students stored in STUDENTS_JSON.
Changes made here are picked up by a running server after
POST /api/v1/students/reload.`,
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	RunE:  runStudentsList,
}

var studentsRegisterCmd = &cobra.Command{
	Use:   "register <student-id> <name> <photo>",
	Short: "Register a student from a face photo",
	Args:  cobra.ExactArgs(3),
	RunE:  runStudentsRegister,
}

var studentsImportCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Register every photo in a directory",
	Long: `Register every photo in a directory. File names must look like
<student-id>_<name>.<ext>, underscores in the name become spaces.

Example:
  face-attendance students import ./photos
  # photos/2024001_Jana_Novakova.jpg -> id 2024001, name "Jana Novakova"`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentsImport,
}

var studentsSimilarCmd = &cobra.Command{
	Use:   "similar <student-id>",
	Short: "Show the students whose faces are closest to a student",
	Long: `Show the students whose faces are closest to a student. Students closer
than FACE_TOLERANCE can be mistaken for each other by the matcher.`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentsSimilar,
}

var studentsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy all students into PostgreSQL",
	RunE:  runStudentsSync,
}

var studentsRemoveCmd = &cobra.Command{
	Use:   "remove <student-id>",
	Short: "Remove a registered student",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsRemove,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd, studentsRegisterCmd, studentsImportCmd,
		studentsSimilarCmd, studentsSyncCmd, studentsRemoveCmd)

	studentsListCmd.Flags().String("search", "", "Only list students whose name contains this text (ignores case and diacritics)")
	studentsListCmd.Flags().Bool("json", false, "Output as JSON")

	studentsImportCmd.Flags().Int("concurrency", constants.ImportWorkers, "Number of parallel registrations")

	studentsSimilarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Number of students to show")
	studentsSimilarCmd.Flags().Bool("database", false, "Search the PostgreSQL mirror instead of the gallery file")
	studentsSimilarCmd.Flags().Bool("json", false, "Output as JSON")
}

// StudentListEntry is one row of "students list --json".
type StudentListEntry struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	search := facematch.NormalizeName(mustGetString(cmd, "search"))
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, matcher, _, err := newRegistrar(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	var entries []StudentListEntry
	for _, id := range matcher.Identities() {
		if search != "" && !strings.Contains(facematch.NormalizeName(id.DisplayName), search) {
			continue
		}
		entries = append(entries, StudentListEntry{StudentID: id.ID, Name: id.DisplayName})
	}

	if jsonOutput {
		return outputJSON(entries)
	}
	for _, e := range entries {
		fmt.Printf("%-16s %s\n", e.StudentID, e.Name)
	}
	fmt.Printf("\n%d students\n", len(entries))
	return nil
}

func printRegistration(reg *recognition.Registration) {
	action := "Registered"
	if reg.Replaced {
		action = "Replaced"
	}
	fmt.Printf("%s %s (%s)", action, reg.StudentID, reg.Name)
	if reg.FacesDetected > 1 {
		fmt.Printf(", %d faces in photo, used the most confident", reg.FacesDetected)
	}
	fmt.Println()
	for _, l := range reg.Lookalikes {
		fmt.Printf("  Warning: looks like %s (%s), distance %.3f\n", l.ID, l.DisplayName, l.Distance)
	}
}

func runStudentsRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := connectDatabase(cfg); err != nil {
		return err
	}
	defer postgres.Shutdown()

	ctx := cmd.Context()
	registrar, _, _, err := newRegistrar(ctx, cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	reg, err := registrar.Register(ctx, args[0], args[1], data)
	if err != nil {
		return fmt.Errorf("registering %s: %w", args[0], err)
	}
	printRegistration(reg)
	return nil
}

// importEntry is a photo file named after the student.
type importEntry struct {
	path      string
	studentID string
	name      string
}

var importExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true, ".gif": true,
}

// parseImportFileName splits "<id>_<name>.<ext>" into id and display name.
func parseImportFileName(fileName string) (studentID, name string, ok bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !importExtensions[ext] {
		return "", "", false
	}
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	studentID, rawName, found := strings.Cut(base, "_")
	if !found {
		return "", "", false
	}
	name = strings.Join(strings.Fields(strings.ReplaceAll(rawName, "_", " ")), " ")
	if studentID == "" || name == "" {
		return "", "", false
	}
	return studentID, name, true
}

func collectImportEntries(dir string) ([]importEntry, []string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading directory: %w", err)
	}

	var entries []importEntry
	var skipped []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		id, name, ok := parseImportFileName(f.Name())
		if !ok {
			skipped = append(skipped, f.Name())
			continue
		}
		entries = append(entries, importEntry{path: filepath.Join(dir, f.Name()), studentID: id, name: name})
	}
	return entries, skipped, nil
}

func runStudentsImport(cmd *cobra.Command, args []string) error {
	concurrency := max(1, mustGetInt(cmd, "concurrency"))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := connectDatabase(cfg); err != nil {
		return err
	}
	defer postgres.Shutdown()

	ctx := cmd.Context()
	registrar, _, _, err := newRegistrar(ctx, cfg)
	if err != nil {
		return err
	}

	entries, skipped, err := collectImportEntries(args[0])
	if err != nil {
		return err
	}
	for _, name := range skipped {
		fmt.Printf("Skipping %s: expected <student-id>_<name>.<ext>\n", name)
	}
	if len(entries) == 0 {
		fmt.Println("No photos to import.")
		return nil
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Registering students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu            sync.Mutex
		registrations []*recognition.Registration
		failures      []string
	)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, entry := range entries {
		wg.Add(1)
		go func(e importEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			data, err := os.ReadFile(e.path)
			if err == nil {
				var reg *recognition.Registration
				reg, err = registrar.Register(ctx, e.studentID, e.name, data)
				if err == nil {
					mu.Lock()
					registrations = append(registrations, reg)
					mu.Unlock()
					return
				}
			}
			mu.Lock()
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(e.path), err))
			mu.Unlock()
		}(entry)
	}

	wg.Wait()
	fmt.Println()

	sort.Slice(registrations, func(i, j int) bool { return registrations[i].StudentID < registrations[j].StudentID })
	for _, reg := range registrations {
		if len(reg.Lookalikes) > 0 {
			printRegistration(reg)
		}
	}
	sort.Strings(failures)
	for _, f := range failures {
		fmt.Printf("  Failed %s\n", f)
	}

	fmt.Printf("\nCompleted: %d registered, %d failed, %d skipped\n", len(registrations), len(failures), len(skipped))
	if len(failures) > 0 {
		return fmt.Errorf("%d photos could not be registered", len(failures))
	}
	return nil
}

func runStudentsSimilar(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	useDatabase := mustGetBool(cmd, "database")
	jsonOutput := mustGetBool(cmd, "json")
	if limit <= 0 {
		return errors.New("--limit must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var similar []facematch.Lookalike

	if useDatabase {
		if ok, err := connectDatabase(cfg); err != nil {
			return err
		} else if !ok {
			return errors.New("DATABASE_URL environment variable is required with --database")
		}
		defer postgres.Shutdown()
		students, err := database.GetStudentStore(ctx)
		if err != nil {
			return err
		}
		student, err := students.GetStudent(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting student: %w", err)
		}
		if student == nil {
			return fmt.Errorf("student %s is not in the database, run 'students sync' first", args[0])
		}
		results, err := students.FindSimilarStudents(ctx, student.Embedding, limit+1)
		if err != nil {
			return fmt.Errorf("finding similar students: %w", err)
		}
		for _, r := range results {
			if r.StudentID == student.StudentID || len(similar) == limit {
				continue
			}
			similar = append(similar, facematch.Lookalike{ID: r.StudentID, DisplayName: r.Name, Distance: r.Distance})
		}
	} else {
		registrar, _, _, err := newRegistrar(ctx, cfg)
		if err != nil {
			return err
		}
		var found bool
		similar, found = registrar.Similar(args[0], limit)
		if !found {
			return fmt.Errorf("student %s is not registered", args[0])
		}
	}

	if jsonOutput {
		return outputJSON(similar)
	}
	for _, l := range similar {
		marker := ""
		if l.Distance < cfg.Attendance.Tolerance {
			marker = "  (within tolerance)"
		}
		fmt.Printf("%-16s %-30s %.4f%s\n", l.ID, l.DisplayName, l.Distance, marker)
	}
	return nil
}

func runStudentsSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ok, err := connectDatabase(cfg); err != nil {
		return err
	} else if !ok {
		return errors.New("DATABASE_URL environment variable is required")
	}
	defer postgres.Shutdown()

	ctx := cmd.Context()
	registrar, matcher, _, err := newRegistrar(ctx, cfg)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(matcher.Len(),
		progressbar.OptionSetDescription("Syncing students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	n, err := registrar.SyncMirror(ctx, func() { bar.Add(1) })
	fmt.Println()
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d students to PostgreSQL\n", n)
	return nil
}

func runStudentsRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := connectDatabase(cfg); err != nil {
		return err
	}
	defer postgres.Shutdown()

	ctx := cmd.Context()
	registrar, _, _, err := newRegistrar(ctx, cfg)
	if err != nil {
		return err
	}

	removed, err := registrar.Remove(ctx, args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("student %s is not registered", args[0])
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}
