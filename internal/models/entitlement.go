package models

import "time"

// Entitlement — пакет оплаченных сессий, выданный пользователю.
// OrderReference служит ключом идемпотентности: один и тот же внешний
// заказ никогда не начисляет кредиты дважды.
type Entitlement struct {
	ID             string
	UserID         string
	Source         string // woocommerce, admin, promo и т.п.
	SessionsTotal  int
	SessionsUsed   int
	OrderReference *string
	ValidUntil     *time.Time
	CreatedAt      time.Time
}

// CreditBalance — текущий баланс кредитов пользователя.
type CreditBalance struct {
	FreeRemaining  int `json:"free_remaining"`
	PaidRemaining  int `json:"paid_remaining"`
	TotalAvailable int `json:"total_available"`
}

// ConsumeResult — результат атомарного списания кредита.
type ConsumeResult struct {
	Success         bool   `json:"success"`
	SessionType     string `json:"session_type,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Message         string `json:"message"`
}

// GrantResult — результат начисления оплаченных кредитов.
// При повторной обработке того же order_reference возвращается исходный
// entitlement с AlreadyProcessed = true и SessionsAdded = 0.
type GrantResult struct {
	EntitlementID    string `json:"entitlement_id"`
	SessionsAdded    int    `json:"sessions_added"`
	NewBalance       int    `json:"new_balance"`
	AlreadyProcessed bool   `json:"already_processed"`
}
