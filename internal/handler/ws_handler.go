package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/quizbattle/quizbattle-api/internal/middleware"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
	"github.com/quizbattle/quizbattle-api/internal/service"
	"github.com/quizbattle/quizbattle-api/internal/websocket"
)

// WSHandler апгрейдит /ws/:pin/:player_id в сокетное подключение комнаты.
// Игровой токен проверяется до апгрейда; после него клиент получает
// текущий снапшот и живет на пампах до разрыва.
type WSHandler struct {
	gameService *service.GameService
	hub         *websocket.Hub
	upgrader    gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик сокетов. allowedOrigins пустой —
// принимаются любые Origin (локальная разработка).
func NewWSHandler(gameService *service.GameService, hub *websocket.Hub, allowedOrigins []string) *WSHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &WSHandler{
		gameService: gameService,
		hub:         hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}
}

// Connect обрабатывает GET /ws/:pin/:player_id?token=...
func (h *WSHandler) Connect(c *gin.Context) {
	pin := middleware.PINFromContext(c)

	playerID64, err := strconv.ParseUint(c.Param("player_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player_id"})
		return
	}
	playerID := uint(playerID64)

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player token is required"})
		return
	}
	if err := h.gameService.VerifyPlayerToken(token, pin, playerID); err != nil {
		respondError(c, err)
		return
	}

	// Комната должна существовать до апгрейда: незнакомый PIN — это 404,
	// а не повисший сокет.
	snapshot, err := h.gameService.GetState(pin)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade сам написал ответ клиенту
		log.Printf("[WSHandler] Upgrade failed (pin=%s player=%d): %v", pin, playerID, err)
		return
	}

	client := websocket.NewClient(h.hub, conn, pin, playerID, h.gameService)
	h.hub.Register(client)

	go client.WritePump()
	// Новое подключение сразу получает актуальное состояние комнаты.
	client.SendEvent(websocket.Event{Type: websocket.EventState, Data: snapshot})
	go client.ReadPump()
}
