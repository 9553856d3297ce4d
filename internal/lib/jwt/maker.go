package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// registeredClaimKeys — claims, которые не переносятся в Extra.
var registeredClaimKeys = map[string]struct{}{
	"sub": {},
	"iat": {},
	"exp": {},
}

// CreateToken выпускает подписанный токен с subject, iat, exp и
// дополнительными claims. Отсутствие секрета — ошибка конфигурации.
func (m *MakerImpl) CreateToken(subject string, extra map[string]any) (string, error) {
	const op = "jwt.CreateToken"
	if m.secretKey == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(m.tokenTTL).Unix(),
	}
	for k, v := range extra {
		if _, reserved := registeredClaimKeys[k]; !reserved {
			claims[k] = v
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и валидность токена и возвращает Claims.
// Токены без sub, iat или exp отклоняются.
func (m *MakerImpl) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	if m.secretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, mapClaims, func(_ *jwt.Token) (any, error) {
		return []byte(m.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	subject, err := mapClaims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingClaims)
	}
	issuedAt, err := mapClaims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingClaims)
	}
	expiresAt, err := mapClaims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingClaims)
	}

	if m.strictSubject {
		if _, err := uuid.Parse(subject); err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSubject)
		}
	}

	extra := make(map[string]any)
	for k, v := range mapClaims {
		if _, reserved := registeredClaimKeys[k]; !reserved {
			extra[k] = v
		}
	}

	return &Claims{
		Subject:   subject,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
		Extra:     extra,
	}, nil
}

// RefreshIfNeeded реализует скользящее продление: если токену осталось
// меньше порога, выпускается свежий токен с тем же subject и Extra.
func (m *MakerImpl) RefreshIfNeeded(claims *Claims) (string, bool, error) {
	if time.Until(claims.ExpiresAt) >= m.refreshThreshold {
		return "", false, nil
	}
	token, err := m.CreateToken(claims.Subject, claims.Extra)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}
