package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"growit/internal/domain"
)

// Spool mirrors collected events to date-partitioned JSONL files, one
// line per event, so downstream batch jobs can pick them up. Layout:
//
//	<dir>/YYYY/MM/DD/part-YYYYMMDD-HH.jsonl
type Spool struct {
	Dir string
	Now func() time.Time

	mu sync.Mutex
}

func (s *Spool) Write(e domain.Event) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	dir := filepath.Join(s.Dir, t.Format("2006"), t.Format("01"), t.Format("02"))
	path := filepath.Join(dir, fmt.Sprintf("part-%s.jsonl", t.Format("20060102-15")))

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
