package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbattle/quizbattle-api/internal/handler/dto"
	"github.com/quizbattle/quizbattle-api/internal/middleware"
	"github.com/quizbattle/quizbattle-api/internal/service"
)

// AuthHandler обслуживает регистрацию, вход и выход. Сессионный токен
// выставляется HttpOnly-кукой.
type AuthHandler struct {
	authService   *service.AuthService
	cookieMaxAge  int
	secureCookies bool
}

// NewAuthHandler создает новый обработчик аутентификации.
// cookieMaxAge — время жизни куки в секундах (обычно равно TTL токена).
func NewAuthHandler(authService *service.AuthService, cookieMaxAge int, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		cookieMaxAge:  cookieMaxAge,
		secureCookies: secureCookies,
	}
}

// Register обрабатывает POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.authService.Register(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusCreated, dto.UserResponse{UserID: user.ID, Username: user.Username})
}

// Login обрабатывает POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, dto.UserResponse{UserID: user.ID, Username: user.Username})
}

// Logout обрабатывает POST /auth/logout — просто гасит куку.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me обрабатывает GET /auth/me — текущий пользователь по сессионной куке.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.authService.GetUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserResponse{UserID: user.ID, Username: user.Username})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(middleware.SessionCookieName, token, h.cookieMaxAge, "/", "", h.secureCookies, true)
}
