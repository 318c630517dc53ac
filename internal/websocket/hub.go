package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub хранит подключения по PIN комнаты и рассылает им события.
// Чтения (рассылка) частые, структурные изменения (подключение,
// отключение) редкие, поэтому множества клиентов защищены RWMutex.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

// NewHub создает пустой хаб.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

// Register добавляет клиента в множество его комнаты.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.rooms[client.PIN]
	if !ok {
		peers = make(map[*Client]bool)
		h.rooms[client.PIN] = peers
	}
	peers[client] = true
	log.Printf("[Hub] Client registered (pin=%s player=%d, peers=%d)", client.PIN, client.PlayerID, len(peers))
}

// Unregister убирает клиента и закрывает его канал отправки.
// Повторный вызов для того же клиента безопасен.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.rooms[client.PIN]
	if !ok {
		return
	}
	if _, ok := peers[client]; !ok {
		return
	}
	delete(peers, client)
	close(client.send)
	if len(peers) == 0 {
		delete(h.rooms, client.PIN)
	}
	log.Printf("[Hub] Client unregistered (pin=%s player=%d, peers=%d)", client.PIN, client.PlayerID, len(peers))
}

// Broadcast рассылает событие всем клиентам комнаты. Отправка best-effort:
// клиент с переполненным буфером немедленно дерегистрируется, без повторов.
func (h *Hub) Broadcast(pin string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] Failed to marshal %s event for room %s: %v", event.Type, pin, err)
		return
	}

	h.mu.RLock()
	peers := make([]*Client, 0, len(h.rooms[pin]))
	for client := range h.rooms[pin] {
		peers = append(peers, client)
	}
	h.mu.RUnlock()

	for _, client := range peers {
		client.enqueue(data)
	}
}

// RoomSize возвращает число подключений комнаты.
func (h *Hub) RoomSize(pin string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pin])
}

// Close дерегистрирует всех клиентов; вызывается при остановке сервера.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for pin, peers := range h.rooms {
		for client := range peers {
			close(client.send)
			total++
		}
		delete(h.rooms, pin)
	}
	if total > 0 {
		log.Printf("[Hub] Closed %d client connections", total)
	}
}
