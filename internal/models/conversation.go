package models

import "time"

// Роли реплик внутри сессии.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn — одно сообщение внутри сессии. Сообщения принадлежат
// сессии и удаляются каскадно вместе с ней.
type ConversationTurn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}
