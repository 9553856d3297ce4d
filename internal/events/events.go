// Package events публикует события жизненного цикла сессий в RabbitMQ.
//
// Публикация выполняется по принципу fire-and-forget: сбой брокера
// логируется вызывающей стороной и никогда не влияет на состояние
// кредитов или сессий.
package events

import (
	"time"

	"github.com/streadway/amqp"

	"github.com/gdohealth/chat-backend/internal/lib/rabbitmq"
)

// Exchange — durable direct exchange для событий сессий.
const Exchange = "sessions"

// Типы событий.
const (
	TypeSessionCreated = "session.created"
	TypeSessionEnded   = "session.ended"
)

// SessionEvent — сообщение о переходе сессии по жизненному циклу.
type SessionEvent struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	SessionType string    `json:"session_type"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher описывает издателя событий сессий.
type Publisher interface {
	PublishSessionEvent(event SessionEvent) error
}

// RabbitPublisher публикует события в RabbitMQ.
type RabbitPublisher struct {
	ch *amqp.Channel
}

// NewRabbitPublisher создает издателя поверх открытого канала.
func NewRabbitPublisher(ch *amqp.Channel) *RabbitPublisher {
	return &RabbitPublisher{ch: ch}
}

// PublishSessionEvent публикует событие с routing key, равным типу события.
func (p *RabbitPublisher) PublishSessionEvent(event SessionEvent) error {
	return rabbitmq.PublishMessage(p.ch, Exchange, event.Type, event)
}

// NoopPublisher используется, когда брокер не сконфигурирован.
type NoopPublisher struct{}

// PublishSessionEvent ничего не делает.
func (NoopPublisher) PublishSessionEvent(_ SessionEvent) error { return nil }
