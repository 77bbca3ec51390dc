package progress_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"growit/internal/progress"
)

func TestMarkAndRead(t *testing.T) {
	s := progress.NewFileStore(t.TempDir())
	if days := s.CompletedDays("figma-basics"); len(days) != 0 {
		t.Fatalf("fresh store should be empty, got %v", days)
	}
	s.MarkDayComplete("figma-basics", 1)
	s.MarkDayComplete("figma-basics", 3)
	s.MarkDayComplete("figma-basics", 2)
	want := []int{1, 2, 3}
	if got := s.CompletedDays("figma-basics"); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	// marking again changes nothing
	s.MarkDayComplete("figma-basics", 2)
	if got := s.CompletedDays("figma-basics"); !reflect.DeepEqual(got, want) {
		t.Fatalf("after re-mark: got %v want %v", got, want)
	}
}

func TestCurriculaAreIsolated(t *testing.T) {
	s := progress.NewFileStore(t.TempDir())
	s.MarkDayComplete("a", 1)
	if days := s.CompletedDays("b"); len(days) != 0 {
		t.Fatalf("curriculum b should be empty, got %v", days)
	}
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := progress.NewFileStore(dir)
	path := filepath.Join(dir, "growit-progress-figma-basics.json")
	if err := os.WriteFile(path, []byte("not-json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if days := s.CompletedDays("figma-basics"); len(days) != 0 {
		t.Fatalf("corrupt file should read empty, got %v", days)
	}
	// writing after corruption recovers
	s.MarkDayComplete("figma-basics", 1)
	if got := s.CompletedDays("figma-basics"); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("got %v", got)
	}
}

func TestForeignValuesDropped(t *testing.T) {
	dir := t.TempDir()
	s := progress.NewFileStore(dir)
	path := filepath.Join(dir, "growit-progress-figma-basics.json")
	if err := os.WriteFile(path, []byte("[3,1,0,-2,1]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.CompletedDays("figma-basics"); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("got %v want [1 3]", got)
	}
}

func TestDayAccessible(t *testing.T) {
	s := progress.NewFileStore(t.TempDir())
	if !progress.DayAccessible(s, "figma-basics", 1) {
		t.Fatal("day 1 must always be accessible")
	}
	if progress.DayAccessible(s, "figma-basics", 2) {
		t.Fatal("day 2 locked until day 1 is complete")
	}
	if progress.DayAccessible(s, "figma-basics", 0) {
		t.Fatal("day 0 is never accessible")
	}
	s.MarkDayComplete("figma-basics", 1)
	if !progress.DayAccessible(s, "figma-basics", 2) {
		t.Fatal("completing day 1 unlocks day 2")
	}
	if progress.DayAccessible(s, "figma-basics", 3) {
		t.Fatal("day 3 still locked")
	}
}

func TestSequentialUnlock(t *testing.T) {
	s := progress.NewFileStore(t.TempDir())
	for day := 1; day <= 10; day++ {
		if !progress.DayAccessible(s, "figma-basics", day) {
			t.Fatalf("day %d should be open after completing day %d", day, day-1)
		}
		if day < 10 && progress.DayAccessible(s, "figma-basics", day+1) {
			t.Fatalf("day %d should still be locked", day+1)
		}
		s.MarkDayComplete("figma-basics", day)
	}
	if got := len(s.CompletedDays("figma-basics")); got != 10 {
		t.Fatalf("completed %d days, want 10", got)
	}
}

func TestReset(t *testing.T) {
	s := progress.NewFileStore(t.TempDir())
	s.MarkDayComplete("figma-basics", 1)
	s.Reset("figma-basics")
	if days := s.CompletedDays("figma-basics"); len(days) != 0 {
		t.Fatalf("reset should clear progress, got %v", days)
	}
	// resetting an empty store is fine
	s.Reset("figma-basics")
}

func TestUnwritableDirDegradesSilently(t *testing.T) {
	s := &progress.FileStore{Dir: filepath.Join(t.TempDir(), "missing", "deep")}
	s.MarkDayComplete("figma-basics", 1)
	if days := s.CompletedDays("figma-basics"); len(days) != 0 {
		t.Fatalf("writes to a missing dir should no-op, got %v", days)
	}
}
