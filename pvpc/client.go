package pvpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/infra/logger"
)

// ErrNoPrices is returned when the feed answers with no values for a date,
// which is how ESIOS reports unpublished prices.
var ErrNoPrices = fmt.Errorf("%w: no values published", schedule.ErrPricesUnavailable)

// Client fetches PVPC prices from an ESIOS compatible endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     logger.Logger
	loc     *time.Location
	now     func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithNow sets the clock used to resolve today and tomorrow.
func WithNow(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient creates a price client for dates in loc.
func NewClient(cfg Config, loc *time.Location, opts ...Option) *Client {
	cfg.SetDefaults()
	if loc == nil {
		loc = time.Local
	}
	st := gobreaker.Settings{
		Name:    "pvpc",
		Timeout: time.Duration(cfg.Breaker.OpenSeconds) * time.Second,
	}
	failures := uint32(cfg.Breaker.MaxFailures)
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	// unpublished days are an expected answer, not a feed failure
	st.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, ErrNoPrices) }

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     logger.New("pvpc-client"),
		loc:     loc,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) today() time.Time {
	return model.Day(c.now().In(c.loc))
}

// Today returns the prices of the current local date.
func (c *Client) Today(ctx context.Context) (model.DailyPrices, error) {
	return c.ForDate(ctx, c.today())
}

// Tomorrow returns the prices of the next local date. They are usually
// published around 20:15.
func (c *Client) Tomorrow(ctx context.Context) (model.DailyPrices, error) {
	return c.ForDate(ctx, c.today().AddDate(0, 0, 1))
}

// ForDate returns the prices of date.
func (c *Client) ForDate(ctx context.Context, date time.Time) (model.DailyPrices, error) {
	date = model.DateIn(date, c.loc)
	if err := c.limiter.Wait(ctx); err != nil {
		return model.DailyPrices{}, err
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, date)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.DailyPrices{}, fmt.Errorf("%w: %v", schedule.ErrPricesUnavailable, err)
	}
	if err != nil {
		return model.DailyPrices{}, err
	}
	return res.(model.DailyPrices), nil
}

func (c *Client) requestURL(date time.Time) string {
	day := model.DateKey(date)
	q := url.Values{}
	q.Set("start_date", day+"T00:00:00")
	q.Set("end_date", day+"T23:59:59")
	q.Set("geo_ids", fmt.Sprint(c.cfg.GeoID))
	return c.cfg.APIURL + "?" + q.Encode()
}

func (c *Client) fetch(ctx context.Context, date time.Time) (model.DailyPrices, error) {
	u := c.requestURL(date)
	c.log.Debugf("fetching PVPC prices from %s", u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.DailyPrices{}, err
	}
	req.Header.Set("Accept", "application/json; application/vnd.esios-api-v1+json")
	if c.cfg.Token != "" {
		req.Header.Set("x-api-key", c.cfg.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.DailyPrices{}, fmt.Errorf("%w: %v", schedule.ErrPricesUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Errorf("ESIOS returned %d: %s", resp.StatusCode, body)
		err := fmt.Errorf("esios status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %v", schedule.ErrPricesUnavailable, err)
		}
		return model.DailyPrices{}, err
	}

	var body indicatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.DailyPrices{}, fmt.Errorf("decode esios response: %w", err)
	}
	prices := toHourly(body.Indicator.Values, c.cfg.GeoID)
	if len(prices) == 0 {
		return model.DailyPrices{}, ErrNoPrices
	}
	if len(prices) != model.HoursPerDay {
		c.log.Warnf("expected %d prices for %s, got %d", model.HoursPerDay, model.DateKey(date), len(prices))
	}
	return model.DailyPrices{Date: date, Prices: prices}, nil
}

// State reports the circuit breaker state.
func (c *Client) State() string {
	return c.breaker.State().String()
}
