package domain

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type UserStats struct {
	UserID            int64  `json:"user_id"`
	LastStudyDate     string `json:"last_study_date,omitempty" format:"date"`
	CurrentStreak     int    `json:"current_streak"`
	TodayStudyMinutes int    `json:"today_study_minutes"`
	TotalStudyMinutes int    `json:"total_study_minutes"`
}

type Event struct {
	ID          int64          `json:"id"`
	EventID     string         `json:"event_id"`
	ReceivedAt  string         `json:"received_at" format:"date-time"`
	EventType   string         `json:"event_type"`
	UserID      string         `json:"user_id,omitempty"`
	AnonymousID string         `json:"anonymous_id,omitempty"`
	Metadata    map[string]any `json:"metadata"`
}
