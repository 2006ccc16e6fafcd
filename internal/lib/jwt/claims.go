// Package jwt выпускает и проверяет access-токены.
//
// Токен несет только личность пользователя (id, username) и его роль.
// Права доступа в токен не кладутся: сервер вычисляет их заново на каждый запрос.
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims данные, хранящиеся в токене. Идентификатор пользователя лежит в Subject.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID возвращает идентификатор пользователя из Subject.
func (c *Claims) UserID() string { return c.Subject }
