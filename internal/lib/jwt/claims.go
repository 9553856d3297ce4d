// Package jwt реализует выпуск и проверку JWT токенов для шлюза аутентификации.
//
// Токен подписывается HS256 общим секретом, subject содержит идентификатор
// пользователя. Claims sub, iat и exp обязательны; токен без любого из них
// отклоняется. Maker также отвечает за скользящее продление: если до
// истечения осталось меньше порога, выпускается новый токен с тем же
// subject и дополнительными claims.
package jwt

import (
	"errors"
	"time"
)

// Ошибки проверки токена. ErrNotConfigured означает ошибку конфигурации
// процесса (отсутствует секрет подписи), а не ошибку аутентификации.
var (
	ErrNotConfigured  = errors.New("jwt signing key is not configured")
	ErrTokenExpired   = errors.New("token has expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingClaims  = errors.New("token is missing required claims")
	ErrInvalidSubject = errors.New("token subject is not a valid user id")
)

// Claims — проверенное содержимое токена.
type Claims struct {
	Subject   string         // Идентификатор пользователя
	IssuedAt  time.Time      // Момент выпуска
	ExpiresAt time.Time      // Момент истечения
	Extra     map[string]any // Дополнительные claims, переносятся при продлении
}

// Maker описывает интерфейс для выпуска и проверки токенов.
type Maker interface {
	// CreateToken выпускает токен для пользователя с дополнительными claims.
	CreateToken(subject string, extra map[string]any) (string, error)
	// ParseToken проверяет подпись и обязательные claims, возвращает Claims.
	ParseToken(tokenStr string) (*Claims, error)
	// RefreshIfNeeded возвращает новый токен, если исходному осталось жить
	// меньше порога продления; иначе ("", false, nil).
	RefreshIfNeeded(claims *Claims) (string, bool, error)
	// TokenTTL возвращает время жизни выпускаемых токенов.
	TokenTTL() time.Duration
}

// MakerImpl реализует Maker с использованием секретного ключа, времени жизни
// токена и порога скользящего продления.
type MakerImpl struct {
	secretKey        string
	tokenTTL         time.Duration
	refreshThreshold time.Duration
	strictSubject    bool
}

// NewMaker создаёт новый MakerImpl. При strictSubject subject обязан быть
// корректным UUID; в противном случае допускаются унаследованные
// идентификаторы (режим совместимости с мигрированными аккаунтами).
func NewMaker(secretKey string, tokenTTL, refreshThreshold time.Duration, strictSubject bool) *MakerImpl {
	return &MakerImpl{
		secretKey:        secretKey,
		tokenTTL:         tokenTTL,
		refreshThreshold: refreshThreshold,
		strictSubject:    strictSubject,
	}
}

// TokenTTL возвращает время жизни выпускаемых токенов.
func (m *MakerImpl) TokenTTL() time.Duration {
	return m.tokenTTL
}
