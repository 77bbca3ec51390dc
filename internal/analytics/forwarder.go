package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"growit/internal/config"
	"growit/internal/domain"
	"growit/internal/repo"
)

const (
	defaultForwardInterval = 2 * time.Second
	defaultForwardTimeout  = 5 * time.Second
	defaultForwardBatch    = 100
)

// Forwarder tails the events table and POSTs new events to each
// configured downstream hook, keeping an in-memory cursor per hook.
// Delivery stops at the first failing event so nothing is skipped.
type Forwarder struct {
	Repo  repo.Repo
	Hooks []config.ForwarderHook

	client  *http.Client
	mu      sync.Mutex
	cursors map[int]int64
}

// Start launches the forwarding loop. It returns immediately; cancel the
// context to stop. No-op without hooks.
func (f *Forwarder) Start(ctx context.Context) {
	if len(f.Hooks) == 0 {
		return
	}
	f.client = &http.Client{Timeout: defaultForwardTimeout}
	f.cursors = make(map[int]int64)
	go f.run(ctx)
}

func (f *Forwarder) run(ctx context.Context) {
	ticker := time.NewTicker(defaultForwardInterval)
	defer ticker.Stop()
	for {
		f.ForwardAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ForwardAll runs one delivery pass over every hook.
func (f *Forwarder) ForwardAll(ctx context.Context) {
	for i, hook := range f.Hooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		f.forwardHook(ctx, i, hook)
	}
}

func (f *Forwarder) forwardHook(ctx context.Context, idx int, hook config.ForwarderHook) {
	batch := hook.BatchSize
	if batch <= 0 {
		batch = defaultForwardBatch
	}
	events, err := f.Repo.EventsAfter(ctx, batch, f.cursor(idx))
	if err != nil {
		log.Printf("forwarder: fetch events failed: %v", err)
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.EventType) {
			f.setCursor(idx, evt.ID)
			continue
		}
		if err := f.post(ctx, hook, evt); err != nil {
			log.Printf("forwarder: deliver to %s failed: %v", hook.URL, err)
			return
		}
		f.setCursor(idx, evt.ID)
	}
}

func (f *Forwarder) cursor(idx int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[idx]
}

func (f *Forwarder) setCursor(idx int, value int64) {
	f.mu.Lock()
	f.cursors[idx] = value
	f.mu.Unlock()
}

func (f *Forwarder) post(ctx context.Context, hook config.ForwarderHook, evt domain.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Growit-Event", evt.EventType)
	req.Header.Set("X-Growit-Delivery", fmt.Sprintf("%d", evt.ID))
	res, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
