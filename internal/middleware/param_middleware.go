package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextPINKey — ключ, под которым нормализованный PIN лежит в контексте Gin.
const ContextPINKey = "pin"

// PIN — ровно 6 символов [A-Z0-9]; сравнивается в верхнем регистре.
var pinPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ExtractUintParam создает middleware для извлечения и валидации числового параметра URL.
// paramName - имя параметра в URL (например, "id").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		// Сохраняем как uint для единообразия
		c.Set(contextKey, uint(id))
		c.Next()
	}
}

// ExtractPINParam нормализует параметр :pin к верхнему регистру и проверяет
// формат. Невалидный PIN — 404: такой комнаты заведомо не существует.
func ExtractPINParam(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		pin := strings.ToUpper(strings.TrimSpace(c.Param(paramName)))
		if !pinPattern.MatchString(pin) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			c.Abort()
			return
		}
		c.Set(ContextPINKey, pin)
		c.Next()
	}
}

// PINFromContext достает PIN, положенный ExtractPINParam.
func PINFromContext(c *gin.Context) string {
	return c.GetString(ContextPINKey)
}
