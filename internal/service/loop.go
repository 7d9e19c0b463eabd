// Package service runs the live engine: it consumes bars from the
// transport, de-duplicates redeliveries, evaluates the strategy and routes
// signals to the executor.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/broker"
	"github.com/statarb/reversion/internal/exec"
	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/stats"
	"github.com/statarb/reversion/internal/strategy"
	"github.com/statarb/reversion/internal/telemetry"
	"github.com/statarb/reversion/internal/transport"
)

// Config tunes the consume loop.
type Config struct {
	Topic        string        `yaml:"topic"`
	Queue        string        `yaml:"queue"`
	PollBatch    int           `yaml:"poll_batch"`
	PollInterval time.Duration `yaml:"poll_interval"`
	QueueDepth   int           `yaml:"queue_depth"`
	DedupeTTL    time.Duration `yaml:"dedupe_ttl"`
	// LiquidationBufferMin is how many minutes before the close the engine
	// flattens all positions.
	LiquidationBufferMin int `yaml:"liquidation_buffer_min"`
}

// DefaultConfig returns production consume-loop settings.
func DefaultConfig() Config {
	return Config{
		Topic:                "bars",
		Queue:                "reversion",
		PollBatch:            10,
		PollInterval:         time.Second,
		QueueDepth:           256,
		DedupeTTL:            10 * time.Minute,
		LiquidationBufferMin: 15,
	}
}

// Service is the live bar-consume loop.
type Service struct {
	cfg       Config
	bus       transport.Bus
	clock     broker.Clock
	evaluator *strategy.Evaluator
	executor  *exec.Executor
	metrics   *telemetry.Metrics
	dedupe    *dedupeCache
	log       zerolog.Logger

	// liquidated latches once the pre-close sweep has run so it fires at
	// most once per session.
	liquidated bool
}

// New assembles the consume loop.
func New(cfg Config, bus transport.Bus, clock broker.Clock, evaluator *strategy.Evaluator,
	executor *exec.Executor, metrics *telemetry.Metrics, log zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		bus:       bus,
		clock:     clock,
		evaluator: evaluator,
		executor:  executor,
		metrics:   metrics,
		dedupe:    newDedupeCache(cfg.DedupeTTL),
		log:       log.With().Str("component", "service").Logger(),
	}
}

// Run subscribes the queue and consumes bars until ctx is canceled. The
// poller and the handler are decoupled by a bounded channel so a slow
// broker call cannot stall polling.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, s.cfg.Queue, s.cfg.Topic); err != nil {
		return err
	}
	s.log.Info().Str("queue", s.cfg.Queue).Str("topic", s.cfg.Topic).Msg("consume loop started")

	messages := make(chan transport.Message, s.cfg.QueueDepth)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		s.pollLoop(ctx, messages)
	}()

	for {
		select {
		case <-ctx.Done():
			<-pollDone
			s.log.Info().Msg("consume loop stopped")
			return ctx.Err()
		case msg := <-messages:
			s.handleMessage(ctx, msg)
		}
	}
}

func (s *Service) pollLoop(ctx context.Context, out chan<- transport.Message) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		msgs, err := s.bus.Poll(ctx, s.cfg.Queue, s.cfg.PollBatch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Msg("poll failed")
		}
		for _, msg := range msgs {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
		if len(msgs) > 0 {
			// Drain the backlog before sleeping again.
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleMessage decodes and processes one delivery. The message is deleted
// in every terminal path; failures before deletion mean redelivery, which
// the dedupe cache absorbs.
func (s *Service) handleMessage(ctx context.Context, msg transport.Message) {
	var bar model.Bar
	if err := json.Unmarshal(msg.Body, &bar); err != nil {
		s.log.Error().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable message")
		s.ack(ctx, msg)
		return
	}
	s.HandleBar(ctx, bar)
	s.ack(ctx, msg)
}

// HandleBar runs the full per-bar pipeline: dedupe, session checks,
// evaluation, execution.
func (s *Service) HandleBar(ctx context.Context, bar model.Bar) {
	s.metrics.BarsReceived.Inc()
	if s.dedupe.Seen(bar.Key()) {
		s.metrics.DuplicateBars.Inc()
		s.log.Debug().Str("bar_key", bar.Key()).Msg("duplicate bar dropped")
		return
	}
	if !s.sessionAllowsTrading(ctx) {
		return
	}

	sig, err := s.evaluator.OnBar(ctx, bar)
	if errors.Is(err, stats.ErrWindowTooLarge) {
		s.log.Debug().Str("symbol", bar.Symbol).Msg("insufficient close history, skipping bar")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("symbol", bar.Symbol).Msg("evaluation failed")
		return
	}
	s.ExecuteSignal(ctx, sig)
}

// ExecuteSignal routes an actionable signal to the executor.
func (s *Service) ExecuteSignal(ctx context.Context, sig model.Signal) {
	if !sig.Do {
		return
	}
	s.metrics.SignalsTotal.WithLabelValues(string(sig.Side)).Inc()
	s.executor.ExecuteMarketOrder(ctx, sig.Symbol, sig.SignedQty())
}

// sessionAllowsTrading skips closed sessions and flattens the book once
// inside the pre-close liquidation window.
func (s *Service) sessionAllowsTrading(ctx context.Context) bool {
	open, err := s.clock.IsOpen(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("market clock unavailable, skipping bar")
		return false
	}
	if !open {
		s.liquidated = false
		return false
	}
	mins, err := s.clock.MinutesToClose(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("market clock unavailable, skipping bar")
		return false
	}
	if mins <= s.cfg.LiquidationBufferMin {
		if !s.liquidated {
			s.log.Info().Int("minutes_to_close", mins).Msg("liquidation window reached, flattening book")
			s.executor.LiquidateAll(ctx)
			s.liquidated = true
		}
		return false
	}
	s.liquidated = false
	return true
}

func (s *Service) ack(ctx context.Context, msg transport.Message) {
	if err := s.bus.Delete(ctx, s.cfg.Queue, msg.Handle); err != nil {
		s.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to delete message")
	}
}
