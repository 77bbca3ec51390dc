package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"growit/internal/domain"
)

// Writer appends collected analytics events to the events table.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, e domain.Event) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if e.ReceivedAt == "" {
		e.ReceivedAt = now().UTC().Format(time.RFC3339)
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	data, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(event_id,received_at,event_type,user_id,anonymous_id,metadata_json) VALUES (?,?,?,?,?,?)`,
		e.EventID, e.ReceivedAt, e.EventType, nullable(e.UserID), nullable(e.AnonymousID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
