// Package models содержит доменные структуры системы: пользователей,
// сессии, права на сессии (entitlements) и сообщения диалога.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
// PasswordHash может быть пустым для учётных записей, синхронизированных
// из WordPress, — такие пользователи задают пароль через forgot-password.
type User struct {
	ID                         string     // Уникальный идентификатор пользователя (UUID)
	Email                      string     // Электронная почта (уникальная, хранится в нижнем регистре)
	PasswordHash               string     // Bcrypt‑хэш пароля, пустой для внешних аккаунтов
	DisplayName                string     // Отображаемое имя
	AccountType                string     // Тип аккаунта: freemium или paid
	EmailVerified              bool       // Подтверждена ли почта
	WPUserID                   *int64     // ID пользователя в WordPress, если аккаунт связан
	FreemiumLimit              int        // Сколько бесплатных сессий доступно всего
	FreemiumUsed               int        // Сколько бесплатных сессий израсходовано
	StoreHistory               bool       // Хранить ли историю диалогов
	HistoryPrefChangedAt       *time.Time // Когда пользователь последний раз менял настройку истории
	HistoryDeletionScheduledAt *time.Time // Когда запланировано удаление истории
	CreatedAt                  time.Time
	LastLogin                  *time.Time
}

// HistoryPreference описывает настройку хранения истории диалогов.
type HistoryPreference struct {
	StoreHistory        bool       `json:"store_history"`
	ChangedAt           *time.Time `json:"changed_at,omitempty"`
	DeletionScheduledAt *time.Time `json:"deletion_scheduled_at,omitempty"`
}
