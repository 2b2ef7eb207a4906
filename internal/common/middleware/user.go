package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// User Identity Middleware
// ============================================================

// UserHeader выставляется внешним auth-слоем после проверки токена.
const UserHeader = "X-User-ID"

// AuthTokenHeader несет общий секрет auth-слоя перед gateway.
const AuthTokenHeader = "X-Auth-Token"

const userKey = "userID"

// RequireUser отклоняет запросы без идентификатора пользователя.
func RequireUser() fiber.Handler {
	return func(c fiber.Ctx) error {
		userID := c.Get(UserHeader)
		if userID == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		c.Locals(userKey, userID)
		return c.Next()
	}
}

// UserID возвращает пользователя, установленного RequireUser.
func UserID(c fiber.Ctx) string {
	if id, ok := c.Locals(userKey).(string); ok {
		return id
	}
	return ""
}

// TrustedUser принимает X-User-ID только от вызывающего с верным токеном
// auth-слоя. Пустой token не доверяет никому. Запрос не отклоняется: без
// доверенного пользователя UserID возвращает "".
func TrustedUser(token string) fiber.Handler {
	return func(c fiber.Ctx) error {
		userID := c.Get(UserHeader)
		presented := c.Get(AuthTokenHeader)
		if token != "" && userID != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
			c.Locals(userKey, userID)
		}
		return c.Next()
	}
}
