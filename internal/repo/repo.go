package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"growit/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

func (r Repo) InsertUser(ctx context.Context, email, hashedPassword, createdAt string) (domain.User, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users(email,hashed_password,is_active,created_at) VALUES (?,?,1,?)`,
		email, hashedPassword, createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Email: email, IsActive: true, CreatedAt: createdAt}, nil
}

func scanUser(row *sql.Row) (domain.User, string, error) {
	var u domain.User
	var hash string
	var active int
	err := row.Scan(&u.ID, &u.Email, &hash, &active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, "", ErrNotFound
	}
	u.IsActive = active != 0
	return u, hash, err
}

// GetUserByEmail returns the user and its password hash.
func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT id,email,hashed_password,is_active,created_at FROM users WHERE email=?`, email))
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, _, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT id,email,hashed_password,is_active,created_at FROM users WHERE id=?`, id))
	return u, err
}

func (r Repo) GetUserStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	var s domain.UserStats
	var lastDate sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id,last_study_date,current_streak,today_study_minutes,total_study_minutes FROM user_stats WHERE user_id=?`,
		userID).Scan(&s.UserID, &lastDate, &s.CurrentStreak, &s.TodayStudyMinutes, &s.TotalStudyMinutes)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if lastDate.Valid {
		s.LastStudyDate = lastDate.String
	}
	return s, err
}

func (r Repo) UpsertUserStats(ctx context.Context, s domain.UserStats) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO user_stats(user_id,last_study_date,current_streak,today_study_minutes,total_study_minutes)
VALUES (?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET
  last_study_date=excluded.last_study_date,
  current_streak=excluded.current_streak,
  today_study_minutes=excluded.today_study_minutes,
  total_study_minutes=excluded.total_study_minutes`,
		s.UserID, nullable(s.LastStudyDate), s.CurrentStreak, s.TodayStudyMinutes, s.TotalStudyMinutes)
	return err
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var userID, anonID sql.NullString
		var meta string
		if err := rows.Scan(&e.ID, &e.EventID, &e.ReceivedAt, &e.EventType, &userID, &anonID, &meta); err != nil {
			return nil, err
		}
		if userID.Valid {
			e.UserID = userID.String
		}
		if anonID.Valid {
			e.AnonymousID = anonID.String
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			e.Metadata = map[string]any{}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvents returns the most recent collected events, newest first,
// optionally filtered by event type.
func (r Repo) LatestEvents(ctx context.Context, limit int, eventType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id,event_id,received_at,event_type,user_id,anonymous_id,metadata_json FROM events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type=?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsAfter returns events with ids greater than the cursor, oldest
// first, used by the downstream forwarder.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,event_id,received_at,event_type,user_id,anonymous_id,metadata_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`,
		cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
