// Package wsconn provides a WebSocket broadcast hub built on coder/websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/dexarb/internal/logger"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("wsconn: hub closed")

// Config holds hub settings.
type Config struct {
	// Per-subscriber outbound buffer. A subscriber whose buffer is full is disconnected.
	BufferSize     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:   32,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

// Hub fans JSON messages out to every connected client.
type Hub struct {
	cfg Config
	log logger.LoggerInterface

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
	done        chan struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg Config, log logger.LoggerInterface) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Hub{
		cfg:         cfg,
		log:         log,
		subscribers: make(map[*subscriber]struct{}),
		done:        make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and streams broadcasts until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only receive. CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	s := &subscriber{
		msgs: make(chan []byte, h.cfg.BufferSize),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
		},
	}
	if !h.add(s) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.remove(s)

	err = h.writeLoop(ctx, conn, s)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.Debug(ctx, "websocket subscriber dropped", "error", err)
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, s *subscriber) error {
	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		t := time.NewTicker(h.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case msg := <-s.msgs:
			if err := h.write(ctx, conn, msg); err != nil {
				return err
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-h.done:
			return conn.Close(websocket.StatusGoingAway, "shutting down")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
}

// Broadcast JSON-encodes v and queues it for every subscriber without blocking.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for s := range h.subscribers {
		select {
		case s.msgs <- data:
		default:
			go s.closeSlow()
		}
	}
	return nil
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}
