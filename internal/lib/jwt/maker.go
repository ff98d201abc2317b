// Package jwt проверяет JWT-токены пользователей биллинга.
//
// Токены выдаёт внешний сервис авторизации; биллинг разбирает их тем же
// секретом и берёт из claims ID и имя пользователя.
package jwt

import (
	"time"
)

// Maker описывает генерацию и разбор JWT-токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя.
	GenerateToken(userID int64, username string) (string, error)
	// ParseToken проверяет подпись и срок действия токена и возвращает его claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на HS256 с общим секретом.
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт Maker на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
