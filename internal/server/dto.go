package server

import (
	"growit/internal/curriculum"
	"growit/internal/domain"
)

// Request payloads

type SignupRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password" minLength:"8"`
}

type CollectEventRequest struct {
	EventType   string         `json:"event_type"`
	UserID      *string        `json:"user_id,omitempty"`
	AnonymousID *string        `json:"anonymous_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type StudyProgressRequest struct {
	StudyMinutes int `json:"study_minutes" minimum:"1" maximum:"1440"`
}

// Response payloads

type UserResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
}

type StudyStatsResponse struct {
	UserID            int64  `json:"user_id"`
	LastStudyDate     string `json:"last_study_date,omitempty" format:"date"`
	CurrentStreak     int    `json:"current_streak"`
	TodayStudyMinutes int    `json:"today_study_minutes"`
	TotalStudyMinutes int    `json:"total_study_minutes"`
}

type EventAcceptedResponse struct {
	Status  string `json:"status" example:"accepted"`
	EventID string `json:"event_id"`
}

type CurriculumSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TotalDays   int    `json:"total_days"`
}

type DayResponse struct {
	Day       int    `json:"day"`
	Title     string `json:"title"`
	Objective string `json:"objective"`
	VideoID   string `json:"video_id,omitempty"`
	Mission   string `json:"mission"`
	Hint      string `json:"hint,omitempty"`
}

type StepResponse struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind" enum:"action,quiz"`
	Instruction    string   `json:"instruction,omitempty"`
	Question       string   `json:"question,omitempty"`
	Button         string   `json:"button,omitempty"`
	Placeholder    string   `json:"placeholder,omitempty"`
	Options        []string `json:"options,omitempty"`
	Correct        *int     `json:"correct,omitempty"`
	SuccessMessage string   `json:"success_message,omitempty"`
	Troubleshoot   string   `json:"troubleshoot,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	Shortcut       string   `json:"shortcut,omitempty"`
}

type MissionResponse struct {
	Day      int            `json:"day"`
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle"`
	Steps    []StepResponse `json:"steps"`
}

type CurriculumResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Days        []DayResponse `json:"days"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

func statsResponse(s domain.UserStats) StudyStatsResponse {
	return StudyStatsResponse{
		UserID:            s.UserID,
		LastStudyDate:     s.LastStudyDate,
		CurrentStreak:     s.CurrentStreak,
		TodayStudyMinutes: s.TodayStudyMinutes,
		TotalStudyMinutes: s.TotalStudyMinutes,
	}
}

func curriculumSummary(c curriculum.Curriculum, lang string) CurriculumSummary {
	return CurriculumSummary{
		ID:          c.ID,
		Title:       c.Title.Get(lang),
		Description: c.Description.Get(lang),
		TotalDays:   len(c.Days),
	}
}

func dayResponse(d curriculum.Day, lang string) DayResponse {
	return DayResponse{
		Day:       d.Day,
		Title:     d.Title.Get(lang),
		Objective: d.Objective.Get(lang),
		VideoID:   d.VideoID,
		Mission:   d.Mission.Get(lang),
		Hint:      d.Hint.Get(lang),
	}
}

func stepResponse(s curriculum.Step, lang string) StepResponse {
	out := StepResponse{
		ID:             s.ID,
		Kind:           string(s.Kind),
		Instruction:    s.Instruction.Get(lang),
		Question:       s.Question.Get(lang),
		Button:         s.Button.Get(lang),
		Placeholder:    s.Placeholder.Get(lang),
		SuccessMessage: s.SuccessMessage.Get(lang),
		Troubleshoot:   s.Troubleshoot.Get(lang),
		Zone:           s.Zone,
		Shortcut:       s.Shortcut,
	}
	if s.Kind == curriculum.StepQuiz {
		for _, opt := range s.Options {
			out.Options = append(out.Options, opt.Get(lang))
		}
		correct := s.Correct
		out.Correct = &correct
	}
	return out
}

func missionResponse(m curriculum.Mission, lang string) MissionResponse {
	out := MissionResponse{
		Day:      m.Day,
		Title:    m.Title.Get(lang),
		Subtitle: m.Subtitle.Get(lang),
	}
	for _, s := range m.Steps {
		out.Steps = append(out.Steps, stepResponse(s, lang))
	}
	return out
}

func curriculumResponse(c curriculum.Curriculum, lang string) CurriculumResponse {
	out := CurriculumResponse{
		ID:          c.ID,
		Title:       c.Title.Get(lang),
		Description: c.Description.Get(lang),
	}
	for _, d := range c.Days {
		out.Days = append(out.Days, dayResponse(d, lang))
	}
	return out
}
