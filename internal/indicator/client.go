// Package indicator fetches the daily UF value from the external
// mindicador.cl time series. The rate is a display and reporting
// enhancement, never a submission blocker, so the client degrades to an
// unavailable snapshot instead of returning errors.
package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/models"
)

// DefaultURL is the public UF endpoint.
const DefaultURL = "https://mindicador.cl/api/uf"

// Client fetches the UF-to-CLP exchange rate.
type Client struct {
	url        string
	httpClient api.HTTPClient
	logger     *zap.Logger
}

// NewClient creates an indicator client for the given endpoint URL. An empty
// url falls back to DefaultURL.
func NewClient(url string, logger *zap.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(hc api.HTTPClient) { c.httpClient = hc }

// seriesResponse mirrors the mindicador payload; only the most recent
// series entry is consumed.
type seriesResponse struct {
	Serie []struct {
		Fecha time.Time `json:"fecha"`
		Valor float64   `json:"valor"`
	} `json:"serie"`
}

// FetchTodayRate performs one network call and returns today's UF rate.
// On any transport, status, or payload failure it returns an unavailable
// snapshot; it never returns a Go error to the caller.
func (c *Client) FetchTodayRate(ctx context.Context) models.ExchangeRateSnapshot {
	rate, date, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("UF rate unavailable", zap.Error(err))
		return models.ExchangeRateSnapshot{
			Success: false,
			Rate:    0,
			Date:    time.Now(),
			Err:     err.Error(),
		}
	}

	c.logger.Info("UF rate fetched",
		zap.Float64("rate", rate),
		zap.Time("date", date))
	return models.ExchangeRateSnapshot{Success: true, Rate: rate, Date: date}
}

func (c *Client) fetch(ctx context.Context) (float64, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("fetch indicator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, time.Time{}, fmt.Errorf("indicator returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("read indicator body: %w", err)
	}

	var payload seriesResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, time.Time{}, fmt.Errorf("decode indicator payload: %w", err)
	}
	if len(payload.Serie) == 0 || payload.Serie[0].Valor <= 0 {
		return 0, time.Time{}, fmt.Errorf("indicator payload has no usable UF value")
	}

	return payload.Serie[0].Valor, payload.Serie[0].Fecha, nil
}
