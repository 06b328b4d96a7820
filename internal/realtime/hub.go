// internal/realtime/hub.go
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub maintains the set of live notification sockets, indexed by username so
// the engine can push to a specific recipient's sessions.
type Hub struct {
	// Registered clients. Only the Run goroutine touches this map.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Live clients per username; a user may hold several sessions.
	userClients map[string][]*Client

	mutex sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		userClients: make(map[string][]*Client),
	}
}

// Run blocks until ctx is cancelled. A client's Send channel is never
// closed; shutdown is signalled through its done channel so a Publish in
// flight can never hit a closed channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.done)
				delete(h.clients, client)
				h.removeUserClient(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.addUserClient(client)
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
				h.removeUserClient(client)
			}
		}
	}
}

// Publish pushes a payload to every live session of username. Delivery is
// best-effort: a full send buffer drops the message rather than blocking the
// caller.
func (h *Hub) Publish(username string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode realtime payload")
		return
	}

	h.mutex.Lock()
	clients := append([]*Client(nil), h.userClients[username]...)
	h.mutex.Unlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			logrus.WithField("username", username).Debug("Realtime buffer full, message dropped")
		}
	}
}

func (h *Hub) addUserClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.userClients[client.Username] = append(h.userClients[client.Username], client)
}

func (h *Hub) removeUserClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	sessions := h.userClients[client.Username]
	for i, c := range sessions {
		if c == client {
			h.userClients[client.Username] = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.Username]) == 0 {
		delete(h.userClients, client.Username)
	}
}
