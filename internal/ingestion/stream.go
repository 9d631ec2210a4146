package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"price-relay/internal/domain"
	"price-relay/internal/observability"
)

// ErrStreamClosed is returned when the stream is used after Close.
var ErrStreamClosed = errors.New("stream closed")

// StreamConfig configures the exchange trade stream.
type StreamConfig struct {
	// URL is the websocket base URL; the stream path is appended.
	URL string
	// Symbol is the market symbol, e.g. BTCUSDT.
	Symbol string
	// BufferSize is the capacity of the trade channel.
	BufferSize int
	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay time.Duration
	// ReadTimeout closes a connection that delivered nothing for this long.
	ReadTimeout time.Duration
	// WriteTimeout bounds control frame writes.
	WriteTimeout time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:            "wss://stream.binance.com:9443/ws",
		Symbol:         "BTCUSDT",
		BufferSize:     1024,
		ReconnectDelay: 5 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// StreamSource reads trade events for one symbol and delivers them on a
// bounded channel. Dropped connections are re-dialled after a fixed delay
// until Close is called.
type StreamSource struct {
	config StreamConfig
	logger *zap.Logger
	out    chan *domain.Trade

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
}

// NewStreamSource creates a stream source. Zero config fields use defaults.
func NewStreamSource(config StreamConfig, logger *zap.Logger) *StreamSource {
	def := DefaultStreamConfig()
	if config.URL == "" {
		config.URL = def.URL
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = def.ReconnectDelay
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamSource{
		config: config,
		logger: logger.Named("stream").With(zap.String("symbol", config.Symbol)),
		out:    make(chan *domain.Trade, config.BufferSize),
		done:   make(chan struct{}),
	}
}

// Trades returns the channel trades are delivered on. It is closed when Run returns.
func (s *StreamSource) Trades() <-chan *domain.Trade {
	return s.out
}

// Endpoint returns the full stream URL.
func (s *StreamSource) Endpoint() string {
	return strings.TrimRight(s.config.URL, "/") + "/" + strings.ToLower(s.config.Symbol) + "@trade"
}

// Run connects and reads trades until Close is called or ctx is done.
func (s *StreamSource) Run(ctx context.Context) error {
	defer close(s.out)

	if s.closed.Load() {
		return ErrStreamClosed
	}

	endpoint := s.Endpoint()
	first := true
	for {
		if !first {
			observability.RecordStreamReconnect()
			select {
			case <-s.done:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(s.config.ReconnectDelay):
			}
		}
		first = false

		if s.closed.Load() || ctx.Err() != nil {
			return nil
		}

		conn, err := s.connect(ctx, endpoint)
		if err != nil {
			s.logger.Warn("stream dial failed", zap.String("url", endpoint), zap.Error(err))
			continue
		}
		s.logger.Info("stream connected", zap.String("url", endpoint))

		err = s.readLoop(ctx, conn)
		s.disconnect(conn)

		if s.closed.Load() || ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("stream disconnected, reconnecting",
			zap.Duration("delay", s.config.ReconnectDelay),
			zap.Error(err),
		)
	}
}

// Close stops the stream and closes the socket. Safe to call more than once.
func (s *StreamSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.config.WriteTimeout))
		s.conn.Close()
	}
	return nil
}

func (s *StreamSource) connect(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed.Load() {
		conn.Close()
		return nil, ErrStreamClosed
	}
	s.conn = conn
	return conn, nil
}

func (s *StreamSource) disconnect(conn *websocket.Conn) {
	s.connMu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.connMu.Unlock()
	conn.Close()
}

// readLoop reads messages from conn until it fails.
func (s *StreamSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(conn, stopPing)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		trade, err := ParseTradeEvent(message)
		if err != nil {
			s.logger.Debug("ignoring stream message", zap.Error(err))
			continue
		}
		observability.RecordTradeReceived()

		// Blocking send: a full buffer slows reading instead of dropping trades.
		select {
		case s.out <- trade:
			observability.UpdateTradeBufferDepth(len(s.out))
		case <-s.done:
			return ErrStreamClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *StreamSource) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// tradeEvent is the exchange trade payload.
type tradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// combinedEvent wraps events on combined stream endpoints.
type combinedEvent struct {
	Stream string      `json:"stream"`
	Data   *tradeEvent `json:"data"`
}

// ParseTradeEvent decodes a raw or combined-stream trade message.
// The trade id is "<SYMBOL>-<exchange trade id>".
func ParseTradeEvent(message []byte) (*domain.Trade, error) {
	var ev tradeEvent
	var env combinedEvent
	if err := json.Unmarshal(message, &env); err == nil && env.Data != nil {
		ev = *env.Data
	} else if err := json.Unmarshal(message, &ev); err != nil {
		return nil, fmt.Errorf("decode trade event: %w", err)
	}

	if ev.EventType != "trade" {
		return nil, fmt.Errorf("unexpected event type %q", ev.EventType)
	}
	if ev.Symbol == "" || ev.Price == "" || ev.TradeTime <= 0 {
		return nil, fmt.Errorf("incomplete trade event %d", ev.TradeID)
	}

	symbol := strings.ToUpper(ev.Symbol)
	return &domain.Trade{
		TradeID:      symbol + "-" + strconv.FormatInt(ev.TradeID, 10),
		Symbol:       symbol,
		Price:        ev.Price,
		Quantity:     ev.Quantity,
		Timestamp:    ev.TradeTime,
		IsBuyerMaker: ev.IsBuyerMaker,
	}, nil
}
