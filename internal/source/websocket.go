package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSourceURLRequired indicates the websocket source has no URL
var ErrSourceURLRequired = errors.New("source url is required")

// Engine.IO packet types and the socket.io message prefix
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = "3"
	socketConnect = "40"
	socketEvent   = "42"
)

// dataEvent is the socket.io event carrying sample records
const dataEvent = "data"

// ClientState represents the connection state
type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
)

// String returns the state name
func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// WebSocketConfig holds websocket source configuration
type WebSocketConfig struct {
	// URL of the feed. A path containing /socket.io/ selects socket.io framing.
	URL string
	// StartEvent is sent once connected. Empty disables it.
	StartEvent string
	// Channel is the record field carrying samples
	Channel string
	// ReconnectDelay is the wait before redialing a dropped connection
	ReconnectDelay time.Duration
	// QueueSize bounds the sample channel
	QueueSize int
}

// WebSocket streams samples from a websocket feed. Records arrive either as
// plain JSON text frames or as socket.io "data" events. Samples that do not
// fit in the queue are dropped.
type WebSocket struct {
	config WebSocketConfig
	logger *slog.Logger

	mu       sync.RWMutex
	state    ClientState
	maxValue float64

	received atomic.Uint64
	dropped  atomic.Uint64

	samples chan float64
}

// NewWebSocket creates a websocket source
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) (*WebSocket, error) {
	if cfg.URL == "" {
		return nil, ErrSourceURLRequired
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		config:   cfg,
		logger:   logger,
		state:    StateDisconnected,
		maxValue: math.Inf(-1),
		samples:  make(chan float64, cfg.QueueSize),
	}, nil
}

// Samples returns the sample channel. It is closed when Run returns.
func (w *WebSocket) Samples() <-chan float64 {
	return w.samples
}

// State returns the current connection state
func (w *WebSocket) State() ClientState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// MaxValue returns the largest sample seen so far, or -Inf before any sample
func (w *WebSocket) MaxValue() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maxValue
}

// Received returns the number of samples accepted into the queue
func (w *WebSocket) Received() uint64 {
	return w.received.Load()
}

// Dropped returns the number of samples discarded because the queue was full
func (w *WebSocket) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *WebSocket) setState(state ClientState) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}

func (w *WebSocket) socketIO() bool {
	return strings.Contains(w.config.URL, "/socket.io/")
}

// Run connects and streams until ctx is done, reconnecting after
// ReconnectDelay whenever the connection fails or drops.
func (w *WebSocket) Run(ctx context.Context) error {
	defer close(w.samples)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w.setState(StateConnecting)
		err := w.runConnection(ctx)
		w.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("websocket disconnected", "url", w.config.URL, "error", err, "retry_in", w.config.ReconnectDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.config.ReconnectDelay):
		}
	}
}

// runConnection serves one connection until it fails
func (w *WebSocket) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if !w.socketIO() {
		if w.config.StartEvent != "" {
			if err := conn.WriteJSON(map[string]string{"event": w.config.StartEvent}); err != nil {
				return fmt.Errorf("send start event: %w", err)
			}
		}
		w.setState(StateConnected)
		w.logger.Info("websocket connected", "url", w.config.URL)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if w.socketIO() {
			if err := w.handlePacket(conn, data); err != nil {
				return err
			}
			continue
		}
		w.handleRecord(data)
	}
}

// handlePacket processes one Engine.IO packet
func (w *WebSocket) handlePacket(conn *websocket.Conn, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	switch {
	case data[0] == engineOpen:
		return conn.WriteMessage(websocket.TextMessage, []byte(socketConnect))
	case data[0] == enginePing:
		return conn.WriteMessage(websocket.TextMessage, []byte(enginePong))
	case data[0] == engineClose:
		return errors.New("server closed the session")
	case bytes.HasPrefix(data, []byte(socketEvent)):
		record, err := ParseEvent(data[len(socketEvent):], dataEvent)
		if err != nil {
			if !errors.Is(err, ErrNotARecord) {
				w.logger.Debug("skipping malformed event", "error", err)
			}
			return nil
		}
		w.handleRecord(record)
	case bytes.HasPrefix(data, []byte(socketConnect)):
		w.setState(StateConnected)
		w.logger.Info("websocket connected", "url", w.config.URL)
		if w.config.StartEvent != "" {
			msg := fmt.Sprintf(`%s[%q]`, socketEvent, w.config.StartEvent)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return fmt.Errorf("send start event: %w", err)
			}
		}
	}
	return nil
}

// handleRecord extracts the channel value and queues it
func (w *WebSocket) handleRecord(data []byte) {
	value, err := ParseRecord(data, w.config.Channel)
	if err != nil {
		w.logger.Debug("skipping record", "error", err)
		return
	}

	w.mu.Lock()
	if value > w.maxValue {
		w.maxValue = value
		w.logger.Debug("new max sample", "value", value)
	}
	w.mu.Unlock()

	select {
	case w.samples <- value:
		w.received.Add(1)
	default:
		// Channel full, drop sample
		w.dropped.Add(1)
	}
}
