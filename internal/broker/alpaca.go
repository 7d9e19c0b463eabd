package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/statarb/reversion/internal/model"
)

// AlpacaConfig holds connection settings for the Alpaca REST API.
type AlpacaConfig struct {
	BaseURL   string        `yaml:"base_url"`
	DataURL   string        `yaml:"data_url"`
	APIKey    string        `yaml:"-"`
	SecretKey string        `yaml:"-"`
	Timeout   time.Duration `yaml:"timeout"`
	RateRPS   float64       `yaml:"rate_rps"`
	RateBurst int           `yaml:"rate_burst"`
}

// DefaultAlpacaConfig returns paper-trading defaults. Credentials come from
// the environment, never from config files.
func DefaultAlpacaConfig() AlpacaConfig {
	return AlpacaConfig{
		BaseURL:   "https://paper-api.alpaca.markets",
		DataURL:   "https://data.alpaca.markets",
		Timeout:   10 * time.Second,
		RateRPS:   3,
		RateBurst: 5,
	}
}

// Alpaca is a REST adapter implementing Clock, MarketData and OrderPlacer.
// All calls go through a token-bucket rate limiter and a circuit breaker so
// a failing broker degrades to fast errors instead of hanging the loop.
type Alpaca struct {
	cfg     AlpacaConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewAlpaca creates the REST adapter.
func NewAlpaca(cfg AlpacaConfig, log zerolog.Logger) *Alpaca {
	settings := gobreaker.Settings{
		Name:        "alpaca",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("broker circuit breaker state change")
		},
	}
	return &Alpaca{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log.With().Str("component", "alpaca").Logger(),
	}
}

type clockResponse struct {
	IsOpen    bool      `json:"is_open"`
	Timestamp time.Time `json:"timestamp"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// IsOpen reports whether the market session is currently open.
func (a *Alpaca) IsOpen(ctx context.Context) (bool, error) {
	clock, err := a.getClock(ctx)
	if err != nil {
		return false, err
	}
	return clock.IsOpen, nil
}

// MinutesToClose returns minutes until the next close, 0 when closed.
func (a *Alpaca) MinutesToClose(ctx context.Context) (int, error) {
	clock, err := a.getClock(ctx)
	if err != nil {
		return 0, err
	}
	if !clock.IsOpen {
		return 0, nil
	}
	return int(clock.NextClose.Sub(clock.Timestamp).Minutes()), nil
}

// MinutesToOpen returns minutes until the next open, 0 when open.
func (a *Alpaca) MinutesToOpen(ctx context.Context) (int, error) {
	clock, err := a.getClock(ctx)
	if err != nil {
		return 0, err
	}
	if clock.IsOpen {
		return 0, nil
	}
	return int(time.Until(clock.NextOpen).Minutes()), nil
}

func (a *Alpaca) getClock(ctx context.Context) (clockResponse, error) {
	var clock clockResponse
	err := a.getJSON(ctx, a.cfg.BaseURL+"/v2/clock", &clock)
	return clock, err
}

type barsResponse struct {
	Bars []struct {
		T time.Time `json:"t"`
		O float64   `json:"o"`
		H float64   `json:"h"`
		L float64   `json:"l"`
		C float64   `json:"c"`
		V float64   `json:"v"`
		N int64     `json:"n"`
	} `json:"bars"`
	NextPageToken string `json:"next_page_token"`
}

// GetBars fetches historical bars in ascending time order.
func (a *Alpaca) GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("limit", "10000")

	var resp barsResponse
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", a.cfg.DataURL, url.PathEscape(symbol), q.Encode())
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	bars := make([]model.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		bars = append(bars, model.Bar{
			Symbol:     symbol,
			Timestamp:  b.T,
			Open:       b.O,
			High:       b.H,
			Low:        b.L,
			Close:      b.C,
			Volume:     b.V,
			TradeCount: b.N,
		})
	}
	return bars, nil
}

// LatestPrice returns the price of the most recent trade.
func (a *Alpaca) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		Trade struct {
			Price float64 `json:"p"`
		} `json:"trade"`
	}
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", a.cfg.DataURL, url.PathEscape(symbol))
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return 0, err
	}
	if resp.Trade.Price <= 0 {
		return 0, fmt.Errorf("alpaca: no trade price for %s", symbol)
	}
	return resp.Trade.Price, nil
}

type orderResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

// SubmitMarketOrder places a day market order and waits briefly for the fill.
func (a *Alpaca) SubmitMarketOrder(ctx context.Context, symbol string, qty int, side model.Side) (float64, error) {
	body := map[string]string{
		"symbol":          symbol,
		"qty":             strconv.Itoa(qty),
		"side":            sideParam(side),
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": uuid.NewString(),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	var order orderResponse
	if err := a.doJSON(ctx, http.MethodPost, a.cfg.BaseURL+"/v2/orders", payload, &order); err != nil {
		return 0, fmt.Errorf("submit order: %w", err)
	}

	// Market orders on liquid equities fill near-instantly; poll a few
	// times before giving up.
	for attempt := 0; attempt < 10; attempt++ {
		if order.Status == "filled" {
			price, perr := strconv.ParseFloat(order.FilledAvgPrice, 64)
			if perr != nil {
				return 0, fmt.Errorf("parse fill price %q: %w", order.FilledAvgPrice, perr)
			}
			a.log.Info().Str("symbol", symbol).Int("qty", qty).Str("side", string(side)).
				Float64("fill_price", price).Msg("order filled")
			return price, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		if err := a.getJSON(ctx, a.cfg.BaseURL+"/v2/orders/"+order.ID, &order); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("order %s not filled (status %s)", order.ID, order.Status)
}

func sideParam(side model.Side) string {
	if side == model.SideSell {
		return "sell"
	}
	return "buy"
}

func (a *Alpaca) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	return a.doJSON(ctx, http.MethodGet, endpoint, nil, out)
}

// doJSON performs one rate-limited, breaker-guarded request.
func (a *Alpaca) doJSON(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("APCA-API-KEY-ID", a.cfg.APIKey)
		req.Header.Set("APCA-API-SECRET-KEY", a.cfg.SecretKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("alpaca %s %s: status %d: %s", method, endpoint, resp.StatusCode, string(data))
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}
