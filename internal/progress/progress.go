package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// Store persists the set of completed day numbers per curriculum. Storage
// failures never surface to callers: reads fall back to empty progress and
// writes silently no-op, so the app keeps working as if nothing was saved.
type Store interface {
	CompletedDays(curriculumID string) []int
	MarkDayComplete(curriculumID string, day int)
	Reset(curriculumID string)
}

// DayAccessible reports whether a day may be entered: day 1 always, any
// later day only once the previous day is completed. The rule is re-derived
// from the store on every call so completing day N unlocks N+1 immediately.
func DayAccessible(s Store, curriculumID string, day int) bool {
	if day == 1 {
		return true
	}
	if day < 1 {
		return false
	}
	for _, d := range s.CompletedDays(curriculumID) {
		if d == day-1 {
			return true
		}
	}
	return false
}

// FileStore keeps one JSON file per curriculum under dir, named
// growit-progress-<curriculumId>.json and holding an array of day ints.
type FileStore struct {
	Dir string
}

// NewFileStore creates the backing directory if possible. A directory that
// cannot be created is not an error; the store degrades to no-op writes.
func NewFileStore(dir string) *FileStore {
	_ = os.MkdirAll(dir, 0o755)
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(curriculumID string) string {
	return filepath.Join(s.Dir, "growit-progress-"+curriculumID+".json")
}

// CompletedDays returns the completed day numbers, sorted and deduped.
// Missing files, unreadable files, and corrupt or foreign values all read
// as empty progress.
func (s *FileStore) CompletedDays(curriculumID string) []int {
	data, err := os.ReadFile(s.path(curriculumID))
	if err != nil {
		return nil
	}
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return nil
	}
	seen := map[int]bool{}
	out := days[:0]
	for _, d := range days {
		if d > 0 && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// MarkDayComplete adds a day to the completed set and writes through
// immediately. Adding an already-present day is a no-op.
func (s *FileStore) MarkDayComplete(curriculumID string, day int) {
	if day < 1 {
		return
	}
	days := s.CompletedDays(curriculumID)
	for _, d := range days {
		if d == day {
			return
		}
	}
	days = append(days, day)
	sort.Ints(days)
	data, err := json.Marshal(days)
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path(curriculumID), data, 0o644)
}

// Reset clears progress for a curriculum.
func (s *FileStore) Reset(curriculumID string) {
	_ = os.Remove(s.path(curriculumID))
}
