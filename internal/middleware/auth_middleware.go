package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
	"github.com/quizbattle/quizbattle-api/pkg/auth"
)

// SessionCookieName — имя куки с сессионным токеном.
const SessionCookieName = "qb_session"

// ContextUserIDKey — ключ, под которым ID пользователя лежит в контексте Gin.
const ContextUserIDKey = "userID"

// AuthMiddleware проверяет сессионный токен на защищенных маршрутах.
// Токен берется из куки; заголовок Authorization: Bearer поддерживается
// для клиентов без куки.
type AuthMiddleware struct {
	jwt *auth.JWTService
}

// NewAuthMiddleware создает новый middleware аутентификации.
func NewAuthMiddleware(jwt *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth пропускает только аутентифицированных пользователей
// и кладет их ID в контекст запроса.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "token_missing"})
			return
		}

		claims, err := m.jwt.ParseSessionToken(token)
		if err != nil {
			errType := "token_invalid"
			if errors.Is(err, apperrors.ErrExpiredToken) {
				errType = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": errType})
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuth кладет ID пользователя в контекст, если валидный токен
// есть, но не отклоняет анонимные запросы: гости могут создавать комнаты
// и входить в них.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := m.extractToken(c); token != "" {
			if claims, err := m.jwt.ParseSessionToken(token); err == nil {
				c.Set(ContextUserIDKey, claims.UserID)
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// UserIDFromContext достает ID пользователя, положенный RequireAuth/OptionalAuth.
func UserIDFromContext(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
