package ws

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/logger"
	"github.com/workbridge/marketplace-backend/internal/models"
)

// Hub управляет всеми WebSocket клиентами. Живая доставка — поверх
// журнала уведомлений: запись в журнал первична, отключённый клиент
// прочитает пропущенное из него.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	admins     map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	userID   uuid.UUID
	forAdmin bool
	payload  []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		admins:     make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			if msg.forAdmin {
				h.sendToAdmins(msg.payload)
			} else {
				h.send(msg.userID, msg.payload)
			}
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToUser отправляет событие во все подключения пользователя.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	raw, err := marshalEvent(event, data)
	if err != nil {
		return err
	}

	h.broadcast <- message{userID: userID, payload: raw}
	return nil
}

// BroadcastToAdmins отправляет событие всем подключённым администраторам.
func (h *Hub) BroadcastToAdmins(event string, data interface{}) error {
	raw, err := marshalEvent(event, data)
	if err != nil {
		return err
	}

	h.broadcast <- message{forAdmin: true, payload: raw}
	return nil
}

// marshalEvent сериализует событие по контракту WebSocket API:
// поле "type" содержит имя события, "data" — полезную нагрузку.
func marshalEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}

	if client.role == models.RoleAdmin {
		h.admins[client] = struct{}{}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
	delete(h.admins, client)
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		h.deliver(client, payload)
	}
}

func (h *Hub) sendToAdmins(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.admins {
		h.deliver(client, payload)
	}
}

// deliver пишет в канал клиента; переполненный канал означает мёртвое
// или безнадёжно медленное соединение — клиент закрывается.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		go func(c *Client) {
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Errorf("ws: panic при закрытии клиента: %v\n%s", r, debug.Stack())
				}
			}()
			c.Close()
		}(client)
	}
}
