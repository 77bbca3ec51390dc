package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"growit/internal/config"
	"growit/internal/curriculum"
	"growit/internal/domain"
	"growit/internal/engine/auth"
	"growit/internal/events"
	"growit/internal/repo"
)

const dateLayout = "2006-01-02"

// EventSink receives a copy of every collected event, in addition to the
// database. The JSONL spool implements it.
type EventSink interface {
	Write(e domain.Event) error
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Registry *curriculum.Registry
	Config   *config.Config
	Sink     EventSink
	Now      func() time.Time
}

func New(db *sql.DB, reg *curriculum.Registry, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Registry: reg,
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ValidationError maps to a 400 response.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Signup creates a user account with a bcrypt-hashed password.
func (e Engine) Signup(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, ValidationError{Msg: "valid email is required"}
	}
	if len(password) < 8 {
		return domain.User{}, ValidationError{Msg: "password must be at least 8 characters"}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	return e.Repo.InsertUser(ctx, email, hash, e.now().UTC().Format(time.RFC3339))
}

// Login verifies credentials and returns a signed bearer token. Every
// failure path returns the same invalid-credentials error.
func (e Engine) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	u, hash, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", domain.User{}, auth.InvalidCredentialsError{}
		}
		return "", domain.User{}, err
	}
	if !auth.CheckPassword(password, hash) {
		return "", domain.User{}, auth.InvalidCredentialsError{}
	}
	if !u.IsActive {
		return "", domain.User{}, auth.InactiveUserError{UserID: u.ID}
	}
	ttl := time.Duration(e.Config.Server.TokenTTLHours) * time.Hour
	tok, err := auth.IssueToken(e.Config.Server.JWTSecret, u.ID, ttl, e.now())
	if err != nil {
		return "", domain.User{}, err
	}
	return tok, u, nil
}

func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

// StudyStats returns the current stats row, or zeroes if the user has
// never reported progress. Today's minutes read as zero once the last
// study date is in the past.
func (e Engine) StudyStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	s, err := e.Repo.GetUserStats(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserStats{}, err
	}
	if s.LastStudyDate != e.today() {
		s.TodayStudyMinutes = 0
	}
	return s, nil
}

// UpdateStudyProgress records study minutes for today and maintains the
// daily streak: consecutive-day reports extend it, a gap resets it to 1,
// and repeat reports on the same day leave it unchanged.
func (e Engine) UpdateStudyProgress(ctx context.Context, userID int64, minutes int) (domain.UserStats, error) {
	if minutes < 1 || minutes > 1440 {
		return domain.UserStats{}, ValidationError{Msg: "study_minutes must be between 1 and 1440"}
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.UserStats{}, err
	}
	s, err := e.Repo.GetUserStats(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		s = domain.UserStats{UserID: userID}
	} else if err != nil {
		return domain.UserStats{}, err
	}

	today := e.today()
	yesterday := e.now().UTC().AddDate(0, 0, -1).Format(dateLayout)
	switch s.LastStudyDate {
	case today:
		s.TodayStudyMinutes += minutes
	case yesterday:
		s.CurrentStreak++
		s.TodayStudyMinutes = minutes
	default:
		s.CurrentStreak = 1
		s.TodayStudyMinutes = minutes
	}
	s.LastStudyDate = today
	s.TotalStudyMinutes += minutes

	if err := e.Repo.UpsertUserStats(ctx, s); err != nil {
		return domain.UserStats{}, err
	}
	return s, nil
}

// CollectEventOptions are parameters for recording an analytics event.
type CollectEventOptions struct {
	EventType   string
	UserID      string
	AnonymousID string
	Metadata    map[string]any
}

// CollectEvent assigns an event id, stores the event and mirrors it to
// the spool sink when one is configured.
func (e Engine) CollectEvent(ctx context.Context, opts CollectEventOptions) (domain.Event, error) {
	if opts.EventType == "" {
		return domain.Event{}, ValidationError{Msg: "event_type is required"}
	}
	if opts.UserID == "" && opts.AnonymousID == "" {
		return domain.Event{}, ValidationError{Msg: "user_id or anonymous_id is required"}
	}
	ev := domain.Event{
		EventID:     uuid.New().String(),
		ReceivedAt:  e.now().UTC().Format(time.RFC3339),
		EventType:   opts.EventType,
		UserID:      opts.UserID,
		AnonymousID: opts.AnonymousID,
		Metadata:    opts.Metadata,
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	if err := e.Events.Append(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("store event: %w", err)
	}
	if e.Sink != nil {
		if err := e.Sink.Write(ev); err != nil {
			return domain.Event{}, fmt.Errorf("spool event: %w", err)
		}
	}
	return ev, nil
}

func (e Engine) today() string {
	return e.now().UTC().Format(dateLayout)
}
