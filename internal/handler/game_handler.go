package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbattle/quizbattle-api/internal/handler/dto"
	"github.com/quizbattle/quizbattle-api/internal/middleware"
	"github.com/quizbattle/quizbattle-api/internal/service"
)

// GameHandler обслуживает HTTP-поверхность игровых комнат: создание,
// вход по PIN, запуск и чтение снапшота. Живые команды идут по сокету.
type GameHandler struct {
	gameService *service.GameService
}

// NewGameHandler создает новый игровой обработчик.
func NewGameHandler(gameService *service.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

// CreateGame обрабатывает POST /games
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req dto.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// user_id из тела принимается только как подсказка для гостей;
	// аутентифицированная сессия всегда важнее.
	userID := req.UserID
	if id, ok := middleware.UserIDFromContext(c); ok {
		userID = &id
	}

	created, err := h.gameService.CreateGame(c.Request.Context(), service.CreateGameInput{
		HostName:         req.HostName,
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
		QuestionsPerTeam: req.QuestionsPerTeam,
		UserID:           userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// JoinGame обрабатывает POST /games/:pin/join
func (h *GameHandler) JoinGame(c *gin.Context) {
	var req dto.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := req.UserID
	if id, ok := middleware.UserIDFromContext(c); ok {
		userID = &id
	}

	joined, err := h.gameService.JoinGame(c.Request.Context(), middleware.PINFromContext(c), req.Name, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, joined)
}

// StartGame обрабатывает POST /games/:pin/start
func (h *GameHandler) StartGame(c *gin.Context) {
	var req dto.StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.gameService.StartGame(middleware.PINFromContext(c), req.HostPlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetGame обрабатывает GET /games/:pin
func (h *GameHandler) GetGame(c *gin.Context) {
	snapshot, err := h.gameService.GetState(middleware.PINFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
