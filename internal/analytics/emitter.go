package analytics

import (
	"context"
	"log"
	"sync"
	"time"

	growitsdk "growit/sdk/go"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 5 * time.Second
)

// Emitter sends client-side analytics events to a collector without ever
// blocking the caller. Events are queued on a buffered channel and posted
// from a single goroutine; when the queue is full or the collector is
// unreachable the event is dropped. Failures only surface in debug mode.
type Emitter struct {
	client      *growitsdk.Client
	anonymousID string
	debug       bool

	mu     sync.Mutex
	userID string
	closed bool

	queue chan queued
	once  sync.Once
	done  chan struct{}
}

type queued struct {
	eventType string
	metadata  map[string]any
}

// NewEmitter returns a started emitter. A nil client (no collector
// configured) yields an emitter that silently drops everything.
func NewEmitter(client *growitsdk.Client, anonymousID string, debug bool) *Emitter {
	e := &Emitter{
		client:      client,
		anonymousID: anonymousID,
		debug:       debug,
		queue:       make(chan queued, defaultQueueSize),
		done:        make(chan struct{}),
	}
	go e.run()
	return e
}

// SetUserID attaches a user identity to subsequent events.
func (e *Emitter) SetUserID(id string) {
	e.mu.Lock()
	e.userID = id
	e.mu.Unlock()
}

// Emit queues an event. It never blocks and never returns an error; events
// emitted after Close are dropped.
func (e *Emitter) Emit(eventType string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- queued{eventType: eventType, metadata: metadata}:
	default:
		if e.debug {
			log.Printf("analytics: queue full, dropped %s", eventType)
		}
	}
}

// Close stops the emitter after draining queued events, waiting at most
// the given timeout.
func (e *Emitter) Close(timeout time.Duration) {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()
		select {
		case <-e.done:
		case <-time.After(timeout):
		}
	})
}

func (e *Emitter) run() {
	defer close(e.done)
	for q := range e.queue {
		e.send(q)
	}
}

func (e *Emitter) send(q queued) {
	if e.client == nil {
		return
	}
	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
	defer cancel()
	id, err := e.client.SendEvent(ctx, q.eventType, userID, e.anonymousID, q.metadata)
	if !e.debug {
		return
	}
	if err != nil {
		log.Printf("analytics: send %s failed: %v", q.eventType, err)
		return
	}
	log.Printf("analytics: sent %s event_id=%s", q.eventType, id)
}
