package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/transport"
)

// StreamConfig holds market-data websocket settings.
type StreamConfig struct {
	URL           string        `yaml:"url"`
	Topic         string        `yaml:"topic"`
	ReconnectMin  time.Duration `yaml:"reconnect_min"`
	ReconnectMax  time.Duration `yaml:"reconnect_max"`
	HandshakeWait time.Duration `yaml:"handshake_wait"`
	APIKey        string        `yaml:"-"`
	SecretKey     string        `yaml:"-"`
}

// DefaultStreamConfig points at the free IEX feed.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:           "wss://stream.data.alpaca.markets/v2/iex",
		Topic:         "bars",
		ReconnectMin:  time.Second,
		ReconnectMax:  time.Minute,
		HandshakeWait: 10 * time.Second,
	}
}

// Stream ingests minute bars from the broker websocket and publishes them
// to the bus. It reconnects with exponential backoff and relies on the
// consumer's dedupe cache to absorb replays after a reconnect.
type Stream struct {
	cfg      StreamConfig
	bus      transport.Bus
	universe []string
	log      zerolog.Logger
}

// NewStream creates a bar ingestor for the given symbols.
func NewStream(cfg StreamConfig, bus transport.Bus, universe []string, log zerolog.Logger) *Stream {
	return &Stream{
		cfg:      cfg,
		bus:      bus,
		universe: universe,
		log:      log.With().Str("component", "stream").Logger(),
	}
}

// streamEvent is one element of the broker's message arrays. Only bar
// events ("T": "b") are consumed; the rest are control traffic.
type streamEvent struct {
	Type       string    `json:"T"`
	Symbol     string    `json:"S"`
	Open       float64   `json:"o"`
	High       float64   `json:"h"`
	Low        float64   `json:"l"`
	Close      float64   `json:"c"`
	Volume     float64   `json:"v"`
	TradeCount int64     `json:"n"`
	Timestamp  time.Time `json:"t"`
	Message    string    `json:"msg"`
}

// Run connects and consumes until ctx is canceled. Connection failures are
// retried forever; only cancellation ends the loop.
func (s *Stream) Run(ctx context.Context) error {
	backoff := s.cfg.ReconnectMin
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Error().Err(err).Dur("backoff", backoff).Msg("stream disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeWait}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket on cancellation so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := s.handshake(conn); err != nil {
		return err
	}
	s.log.Info().Str("url", s.cfg.URL).Strs("symbols", s.universe).Msg("bar stream connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var events []streamEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable stream frame")
			continue
		}
		for _, ev := range events {
			if ev.Type != "b" {
				continue
			}
			s.publishBar(ctx, ev)
		}
	}
}

func (s *Stream) handshake(conn *websocket.Conn) error {
	auth := map[string]string{
		"action": "auth",
		"key":    s.cfg.APIKey,
		"secret": s.cfg.SecretKey,
	}
	if err := conn.WriteJSON(auth); err != nil {
		return err
	}
	sub := map[string]interface{}{
		"action": "subscribe",
		"bars":   s.universe,
	}
	return conn.WriteJSON(sub)
}

func (s *Stream) publishBar(ctx context.Context, ev streamEvent) {
	bar := model.Bar{
		Symbol:     ev.Symbol,
		Timestamp:  ev.Timestamp,
		Open:       ev.Open,
		High:       ev.High,
		Low:        ev.Low,
		Close:      ev.Close,
		Volume:     ev.Volume,
		TradeCount: ev.TradeCount,
	}
	payload, err := json.Marshal(bar)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", bar.Symbol).Msg("failed to encode bar")
		return
	}
	if err := s.bus.Publish(ctx, s.cfg.Topic, payload); err != nil {
		s.log.Error().Err(err).Str("symbol", bar.Symbol).Msg("failed to publish bar")
	}
}
