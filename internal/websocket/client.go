package websocket

import (
	"encoding/json"
	"log"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 1024

	// Размер буфера канала исходящих сообщений
	sendBufferSize = 64

	// Лимит входящих сообщений: 10 в секунду с всплеском до 20.
	// Превышение закрывает соединение с кодом 1008.
	inboundRate  = 10
	inboundBurst = 20
)

// Client — одно сокетное подключение игрока к комнате. Каждый клиент
// привязан к паре (PIN, PlayerID), проверенной игровым токеном до апгрейда.
type Client struct {
	PIN      string
	PlayerID uint

	hub     *Hub
	conn    *websocket.Conn
	handler CommandHandler
	limiter *rate.Limiter

	// Буферизованный канал исходящих сообщений; закрывается хабом
	// ровно один раз при дерегистрации.
	send chan []byte
}

// NewClient создает клиента поверх принятого соединения.
func NewClient(hub *Hub, conn *websocket.Conn, pin string, playerID uint, handler CommandHandler) *Client {
	return &Client{
		PIN:      pin,
		PlayerID: playerID,
		hub:      hub,
		conn:     conn,
		handler:  handler,
		limiter:  rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		send:     make(chan []byte, sendBufferSize),
	}
}

// SendEvent ставит событие в очередь отправки этому клиенту.
// Переполненный буфер приводит к дерегистрации: медленный потребитель
// не должен тормозить комнату.
func (c *Client) SendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal %s event for player %d: %v", event.Type, c.PlayerID, err)
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	defer func() {
		// Канал send мог быть закрыт хабом между выбором клиента и записью.
		if r := recover(); r != nil {
			log.Printf("[WebSocket] Dropped message to closed client (pin=%s player=%d)", c.PIN, c.PlayerID)
		}
	}()
	select {
	case c.send <- data:
	default:
		log.Printf("[WebSocket] Send buffer full, dropping client (pin=%s player=%d)", c.PIN, c.PlayerID)
		c.hub.Unregister(c)
	}
}

// ReadPump читает сообщения клиента и передает их обработчику команд.
// Блокируется до закрытия соединения; вызывается в отдельной горутине
// на соединение. Любое нарушение протокола или отклоненная команда
// закрывают сокет с кодом 1008.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		if c.handler != nil {
			c.handler.HandleDisconnect(c.PIN, c.PlayerID)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error (pin=%s player=%d): %v", c.PIN, c.PlayerID, err)
			}
			return
		}

		if !c.limiter.Allow() {
			log.Printf("[WebSocket] Message rate exceeded (pin=%s player=%d)", c.PIN, c.PlayerID)
			c.closePolicy("message rate exceeded")
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.closePolicy("malformed message")
			return
		}

		if err := c.dispatch(msg); err != nil {
			log.Printf("[WebSocket] Command %q rejected (pin=%s player=%d): %v", msg.Action, c.PIN, c.PlayerID, err)
			c.closePolicy(err.Error())
			return
		}
	}
}

// dispatch выполняет одно клиентское сообщение. Паника обработчика не
// роняет процесс, а закрывает только это соединение.
func (c *Client) dispatch(msg ClientMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocket] PANIC in command handler (pin=%s player=%d): %v\n%s",
				c.PIN, c.PlayerID, r, debug.Stack())
			err = websocket.ErrCloseSent
		}
	}()

	switch msg.Action {
	case ActionPing:
		c.SendEvent(Event{Type: EventPong, Data: struct{}{}})
		return nil
	case ActionAnswer:
		return c.handler.HandleAnswer(c.PIN, c.PlayerID, msg.OptionIndex)
	case ActionVote:
		return c.handler.HandleVote(c.PIN, c.PlayerID, msg.Choice)
	case ActionSkip:
		return c.handler.HandleSkip(c.PIN, c.PlayerID)
	case ActionTransferCaptain:
		return c.handler.HandleTransferCaptain(c.PIN, c.PlayerID, msg.ToPlayerID)
	case ActionHostControl:
		return c.handler.HandleHostControl(c.PIN, c.PlayerID, msg)
	default:
		c.closePolicy("unknown action")
		return websocket.ErrCloseSent
	}
}

// WritePump отправляет клиенту сообщения из канала send и периодические
// ping-фреймы. Завершается при закрытии канала или ошибке записи.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал: прощаемся штатно.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Write error (pin=%s player=%d): %v", c.PIN, c.PlayerID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closePolicy закрывает соединение с кодом 1008 (policy violation).
func (c *Client) closePolicy(reason string) {
	deadline := time.Now().Add(writeWait)
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
		log.Printf("[WebSocket] Failed to send close frame (pin=%s player=%d): %v", c.PIN, c.PlayerID, err)
	}
	c.conn.Close()
}
