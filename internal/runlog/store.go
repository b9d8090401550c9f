package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"mergeguard.dev/mergeguard/internal/config"
)

const (
	timestampLayout = "20060102-150405"
	week            = 7 * 24 * time.Hour
)

var fileNamePattern = regexp.MustCompile(`^merge-.+-(\d{8}-\d{6})(-\d+)?\.json$`)

// Entry is a record file found in the store
type Entry struct {
	Name string
	Path string
	At   time.Time
	Size int64
}

// Store reads and writes run records in one directory
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// WithClock returns a copy of the store that reads time from now
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{dir: s.dir, now: now}
}

// Dir returns the record directory
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the record file name for rec, without collision suffix
func FileName(rec Record) string {
	ts := rec.Started.Format(timestampLayout)
	if len(rec.Targets) == 1 {
		return fmt.Sprintf("merge-%s-to-%s-%s.json", sanitize(rec.Source), sanitize(rec.Targets[0]), ts)
	}
	return fmt.Sprintf("merge-batch-%dbranches-%s.json", len(rec.Targets), ts)
}

// Write stores rec and returns the path written
func (s *Store) Write(rec Record) (string, error) {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run record: %w", err)
	}

	name := FileName(rec)
	path := filepath.Join(s.dir, name)
	for i := 2; fileExists(path); i++ {
		path = filepath.Join(s.dir, strings.TrimSuffix(name, ".json")+fmt.Sprintf("-%d.json", i))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return "", fmt.Errorf("failed to write run record: %w", err)
	}
	return path, nil
}

// Read loads the record at path
func Read(path string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rec, nil
}

// List returns the record files, newest first. Files whose names do not
// carry a timestamp are ignored.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	entries := []Entry{}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		at, err := time.ParseInLocation(timestampLayout, m[1], time.Local)
		if err != nil {
			continue
		}
		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}
		entries = append(entries, Entry{Name: de.Name(), Path: filepath.Join(s.dir, de.Name()), At: at, Size: size})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entries[i].Name > entries[j].Name
		}
		return entries[i].At.After(entries[j].At)
	})
	return entries, nil
}

// CleanReport lists what a retention pass kept and removed
type CleanReport struct {
	Kept    []Entry
	Removed []Entry
}

// Clean applies the retention policy: at most WeekMax records from the last
// 7 days, at most MonthMax older than that, and nothing older than MaxAge. With dryRun nothing is deleted.
func (s *Store) Clean(policy config.LogRetention, dryRun bool) (CleanReport, error) {
	var report CleanReport
	entries, err := s.List()
	if err != nil {
		return report, err
	}

	now := s.now()
	maxAge := policy.MaxAge.Std()
	weekKept, monthKept := 0, 0

	for _, e := range entries {
		age := now.Sub(e.At)
		keep := false
		switch {
		case maxAge > 0 && age > maxAge:
		case age <= week:
			if weekKept < policy.WeekMax {
				weekKept++
				keep = true
			}
		default:
			if monthKept < policy.MonthMax {
				monthKept++
				keep = true
			}
		}

		if keep {
			report.Kept = append(report.Kept, e)
			continue
		}
		if !dryRun {
			if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return report, fmt.Errorf("failed to remove %s: %w", e.Name, err)
			}
		}
		report.Removed = append(report.Removed, e)
	}
	return report, nil
}

func sanitize(branch string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(branch)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
