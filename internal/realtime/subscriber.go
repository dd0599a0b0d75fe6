package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// DefaultReconnectDelay is the pause between an unexpected disconnect and the
// next connection attempt.
const DefaultReconnectDelay = 3 * time.Second

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	URL            string // ws:// or wss:// endpoint
	PrdID          string
	Header         http.Header
	ReconnectDelay time.Duration
	OnEvent        func(models.DocumentEvent)
	Logger         *slog.Logger
}

// Subscriber keeps one document subscription alive. After an unexpected
// disconnect it waits ReconnectDelay, reconnects and re-sends the same
// subscribe message. Close stops it for good.
type Subscriber struct {
	cfg    SubscriberConfig
	dialer *websocket.Dialer

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
	done   chan struct{}
}

func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(models.DocumentEvent) {}
	}
	return &Subscriber{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		done:   make(chan struct{}),
	}
}

// Run connects and delivers events until ctx is done or Close is called.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if s.isClosed() || ctx.Err() != nil {
			return nil
		}
		s.cfg.Logger.Warn("realtime channel lost, reconnecting",
			"error", err,
			"prd_id", s.cfg.PrdID,
			"delay", s.cfg.ReconnectDelay,
		)

		timer := time.NewTimer(s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to disconnect.
func (s *Subscriber) session(ctx context.Context) error {
	ws, _, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return nil
	}
	s.ws = ws
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ws = nil
		s.mu.Unlock()
		ws.Close()
	}()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	sub := models.SubscribeMessage{Type: models.EventSubscribe, PrdID: s.cfg.PrdID}
	if err := ws.WriteJSON(sub); err != nil {
		return err
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var ev models.DocumentEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			s.cfg.Logger.Debug("dropping malformed realtime message")
			continue
		}
		s.cfg.OnEvent(ev)
	}
}

// Close ends the subscription and suppresses any further reconnect.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	if s.ws != nil {
		err := s.ws.Close()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
	}
	return nil
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
