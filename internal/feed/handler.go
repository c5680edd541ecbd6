// Package feed streams committed ledger events to WebSocket subscribers.
package feed

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"token-ledger/internal/domain"
	"token-ledger/internal/observability"
)

// Source is the event log a subscriber tails. *ledger.EventLog satisfies it.
type Source interface {
	Since(afterSeq uint64, limit int) []*domain.Event
	LastSeq() uint64
	Changed() <-chan struct{}
}

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultBatchSize    = 256
	maxInboundMessage   = 512
)

// Options contains configuration for creating a Handler.
type Options struct {
	Source       Source
	PingInterval time.Duration // Default: 30s
	WriteTimeout time.Duration // Default: 10s
	BatchSize    int           // Default: 256
	CheckOrigin  func(r *http.Request) bool
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// Handler upgrades requests to WebSocket and streams events in commit order.
//
// Query parameter after=<seq> selects the starting point: events with a
// greater seq are sent first. Without it, only events committed after the
// connection is established are sent.
type Handler struct {
	source       Source
	pingInterval time.Duration
	writeTimeout time.Duration
	batchSize    int
	upgrader     websocket.Upgrader
	metrics      *observability.Metrics
	logger       *zap.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewHandler creates a new feed Handler.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		source:       opts.Source,
		pingInterval: opts.PingInterval,
		writeTimeout: opts.WriteTimeout,
		batchSize:    opts.BatchSize,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		done:         make(chan struct{}),
	}
	if h.pingInterval <= 0 {
		h.pingInterval = defaultPingInterval
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.batchSize <= 0 {
		h.batchSize = defaultBatchSize
	}
	if h.metrics == nil {
		h.metrics = observability.DefaultMetrics
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.logger = h.logger.Named("feed")
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     opts.CheckOrigin,
	}
	return h
}

// Close disconnects all subscribers and waits for their goroutines to exit.
func (h *Handler) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cursor := h.source.LastSeq()
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "after must be a non-negative integer", http.StatusBadRequest)
			return
		}
		cursor = after
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "feed is shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	h.metrics.WSSubscribers.Inc()
	defer h.metrics.WSSubscribers.Dec()

	logger := h.logger.With(zap.String("remote", r.RemoteAddr), zap.Uint64("after", cursor))
	logger.Debug("subscriber connected")

	h.serve(conn, cursor, logger)
}

func (h *Handler) serve(conn *websocket.Conn, cursor uint64, logger *zap.Logger) {
	defer conn.Close()

	// The reader only services control frames; any read error ends the session.
	gone := make(chan struct{})
	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		changed := h.source.Changed()
		batch := h.source.Since(cursor, h.batchSize)
		for _, e := range batch {
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(NewMessage(e)); err != nil {
				logger.Debug("write failed, dropping subscriber", zap.Error(err))
				return
			}
			cursor = e.Seq
			h.metrics.WSMessages.Inc()
		}
		if len(batch) == h.batchSize {
			continue
		}

		select {
		case <-changed:
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				logger.Debug("ping failed, dropping subscriber", zap.Error(err))
				return
			}
		case <-gone:
			logger.Debug("subscriber disconnected")
			return
		case <-h.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
			return
		}
	}
}
