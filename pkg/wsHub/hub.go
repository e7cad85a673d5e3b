package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/metrics"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
)

// ConnectionHub keeps one live websocket per entity (driver).
type ConnectionHub struct {
	clients map[int64]*Conn
	l       logger.Logger
	mu      sync.Mutex
}

func NewConnHub(l logger.Logger) *ConnectionHub {
	return &ConnectionHub{
		clients: make(map[int64]*Conn),
		l:       l,
	}
}

// Add registers newConn. An existing connection of the same entity is closed
// and replaced.
func (h *ConnectionHub) Add(newConn *Conn) error {
	if newConn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := wrap.WithDriverID(wrap.WithAction(context.Background(), "add_ws_connection"), newConn.entityID)

	if existing, ok := h.clients[newConn.entityID]; ok {
		h.l.Warn(ctx, "replacing existing connection")
		if err := existing.Close(); err != nil {
			h.l.Warn(ctx, "failed to close existing conn", "error", err.Error())
		}
	}

	h.clients[newConn.entityID] = newConn
	metrics.WebSocketConnectionsGauge.Set(float64(len(h.clients)))

	return nil
}

// Remove closes c and forgets it, unless it was already replaced by a newer
// connection of the same entity.
func (h *ConnectionHub) Remove(c *Conn) {
	if c == nil {
		return
	}

	h.mu.Lock()
	if current, ok := h.clients[c.entityID]; ok && current == c {
		delete(h.clients, c.entityID)
		metrics.WebSocketConnectionsGauge.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()

	_ = c.Close()
}

// SendTo writes msg to the entity's connection. Returns ErrConnIsNotFound when
// the entity is not connected to this instance.
func (h *ConnectionHub) SendTo(id int64, msg any) error {
	conn, err := h.GetConn(id)
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

// Close closes every websocket connection.
func (h *ConnectionHub) Close() {
	ctx := wrap.WithAction(context.Background(), "hub_close")

	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		h.Remove(conn)
	}

	h.l.Info(ctx, "all websocket connections closed gracefully", "count", len(clients))
}

func (h *ConnectionHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *ConnectionHub) GetConn(id int64) (*Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[id]
	if !ok {
		return nil, ErrConnIsNotFound
	}
	return conn, nil
}
