package models

import "time"

// Статусы сессии. Переходы: active -> expired (лениво, при чтении после
// истечения таймера) и active -> ended (явное завершение). Терминальные
// статусы не меняются, кроме прикрепления summary.
const (
	SessionStatusActive  = "active"
	SessionStatusExpired = "expired"
	SessionStatusEnded   = "ended"
)

// Режимы диалога внутри сессии.
const (
	ModeIntake     = "intake"
	ModeAdvice     = "advice"
	ModeReflection = "reflection"
	ModeSummary    = "summary"
	ModeEnded      = "ended"
)

// Типы сессии по способу оплаты кредита.
const (
	SessionTypeFreemium = "freemium"
	SessionTypePaid     = "paid"
	SessionTypeTest     = "test"
)

// Session представляет одну тарифицированную сессию диалога с таймером.
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	ExpertID        *string    `json:"expert_id,omitempty"`
	Mode            string     `json:"mode"`
	SessionType     string     `json:"session_type"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	IntakeScore     *int       `json:"intake_score,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	MessageCount    int        `json:"message_count"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`

	// RemainingSeconds вычисляется при чтении: max(0, expires_at - now).
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// ComputeRemainingSeconds проставляет RemainingSeconds относительно now:
// max(0, expires_at - now) для активной сессии, ноль для терминальных статусов.
func (s *Session) ComputeRemainingSeconds(now time.Time) {
	if s.Status != SessionStatusActive {
		s.RemainingSeconds = 0
		return
	}
	remaining := int64(s.ExpiresAt.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	s.RemainingSeconds = remaining
}

// SessionHistoryItem — строка списка истории сессий пользователя.
type SessionHistoryItem struct {
	ID                 string     `json:"id"`
	ExpertID           *string    `json:"expert_id,omitempty"`
	ExpertName         *string    `json:"expert_name,omitempty"`
	SessionType        string     `json:"session_type"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	MessageCount       int        `json:"message_count"`
	LastMessagePreview string     `json:"last_message_preview"`
}

// SessionHistory — страница истории сессий с признаком продолжения.
type SessionHistory struct {
	Sessions        []SessionHistoryItem `json:"sessions"`
	Total           int                  `json:"total"`
	HasMore         bool                 `json:"has_more"`
	HistoryDisabled bool                 `json:"history_disabled,omitempty"`
}
