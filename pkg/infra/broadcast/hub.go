package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

// textMessage matches the websocket text frame opcode.
const textMessage = 1

// Conn is the minimal websocket surface the hub writes to. The contrib
// websocket connection satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Publisher is the event fan-out boundary consumed by the moderation
// engine: fire-and-forget, at-most-once per connected observer.
type Publisher interface {
	Publish(event moderation.ModerationEvent)
}

// connWriter serializes writes to a single connection. The websocket
// transport forbids concurrent writers, and publishes can race each
// other and the registration greeting.
type connWriter struct {
	mu   sync.Mutex
	conn Conn
}

func (w *connWriter) write(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(messageType, data)
}

// Hub tracks live observer connections and broadcasts every moderation
// event to all of them. Observers connecting after an event miss it.
type Hub struct {
	mu     sync.RWMutex
	conns  map[Conn]*connWriter
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		conns:  make(map[Conn]*connWriter),
		logger: logger,
	}
}

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	if _, known := h.conns[c]; !known {
		h.conns[c] = &connWriter{conn: c}
	}
	total := len(h.conns)
	h.mu.Unlock()

	prometheus.WebsocketConnections.Set(float64(total))
	h.logger.WithField("connections", total).Info("observer connected")
}

func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	_, known := h.conns[c]
	delete(h.conns, c)
	total := len(h.conns)
	h.mu.Unlock()

	if known {
		prometheus.WebsocketConnections.Set(float64(total))
		h.logger.WithField("connections", total).Info("observer disconnected")
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish stamps and fans the event out to every observer. Connections
// that fail the write are pruned; delivery is never retried.
func (h *Hub) Publish(event moderation.ModerationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode moderation event")
		return
	}

	h.mu.RLock()
	writers := make([]*connWriter, 0, len(h.conns))
	for _, w := range h.conns {
		writers = append(writers, w)
	}
	h.mu.RUnlock()

	var dead []Conn
	for _, w := range writers {
		if err := w.write(textMessage, payload); err != nil {
			h.logger.WithError(err).Error("failed to send event to observer")
			dead = append(dead, w.conn)
		}
	}

	for _, c := range dead {
		h.Unregister(c)
		_ = c.Close()
	}
}

// Send delivers a one-off payload to a single observer, serialized
// against any broadcast in flight to the same connection.
func (h *Hub) Send(c Conn, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.RLock()
	w := h.conns[c]
	h.mu.RUnlock()

	if w == nil {
		return c.WriteMessage(textMessage, payload)
	}
	return w.write(textMessage, payload)
}
