package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity - личность вызывающего, извлеченная из токена платформы.
// Аутентификацией занимается соседний сервис, здесь токен только
// проверяется и разбирается.
type Identity struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
}

type claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

var tokenSecret []byte

// Init устанавливает секрет проверки токенов
func Init(cfg *Config) {
	tokenSecret = []byte(cfg.TokenSecret)
}

// VerifyToken извлекает личность вызывающего из заголовка Authorization
func VerifyToken(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("no authorization header")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tokenSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in token: %w", err)
	}
	accountID, err := uuid.Parse(c.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id in token: %w", err)
	}

	return &Identity{UserID: userID, AccountID: accountID}, nil
}
