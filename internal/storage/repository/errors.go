package repository

import "errors"

// Ошибки уровня хранилища. Сервисы и обработчики сопоставляют их
// с HTTP-статусами через errors.Is.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAlreadyEnded = errors.New("session already ended")
	ErrSessionExpired      = errors.New("session expired")
)
