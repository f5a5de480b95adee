// Package provider implements the imagery catalog client for a Copernicus
// Data Space / Sentinel Hub style Process API. The client authenticates with
// OAuth2 client credentials, slices a date range into short windows so one
// cloudy slice cannot sink the whole request, and returns raw band grids as
// ephemeral tiles. Rate limiting and outages surface as typed errors and are
// never retried internally.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"satellite-service/internal/config"
	"satellite-service/internal/models"
)

// Client fetches multispectral raster tiles for a bounding box and date
// range. Implementations must support partial results: dates without
// cloud-free imagery yield fewer tiles, not an error.
type Client interface {
	Fetch(ctx context.Context, bbox models.BBox, from, to time.Time, bands []models.Band) ([]models.RasterTile, error)
}

// SentinelClient talks to the Process API. Safe for concurrent use; the
// access token is shared and refreshed under a mutex.
type SentinelClient struct {
	cfg  config.ProviderConfig
	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewSentinelClient(cfg config.ProviderConfig) *SentinelClient {
	return &SentinelClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Fetch requests tiles slice by slice across the date range. A slice without
// imagery contributes nothing; provider failures abort with a typed error so
// the caller never caches a half-fetched range.
func (c *SentinelClient) Fetch(ctx context.Context, bbox models.BBox, from, to time.Time, bands []models.Band) ([]models.RasterTile, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	width, height := computeDims(bbox, c.cfg.TargetMPerPixel, c.cfg.MinDim, c.cfg.MaxDim)

	step := c.cfg.StepDays
	if step <= 0 {
		step = 10
	}

	var tiles []models.RasterTile
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, step) {
		sliceEnd := cur.AddDate(0, 0, step-1)
		if sliceEnd.After(to) {
			sliceEnd = to
		}

		got, err := c.process(ctx, token, processRequest{
			BBox:             bbox,
			From:             cur,
			To:               sliceEnd,
			Bands:            bands,
			Width:            width,
			Height:           height,
			MaxCloudCoverage: c.cfg.MaxCloudCoverage,
		})
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, got...)
	}

	slog.Info("Fetched imagery tiles",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"tiles", len(tiles))
	return tiles, nil
}

// accessToken returns a cached token, refreshing it via the client
// credentials grant when close to expiry.
func (c *SentinelClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExp) > 30*time.Second {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", models.ErrAuthExpired, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: token endpoint %s", models.ErrProviderUnavailable, resp.Status)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", models.ErrProviderUnavailable, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", models.ErrAuthExpired)
	}

	c.token = out.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.token, nil
}

type processRequest struct {
	BBox             models.BBox
	From, To         time.Time
	Bands            []models.Band
	Width, Height    int
	MaxCloudCoverage float64
}

type processPayload struct {
	Input struct {
		Bounds struct {
			BBox       [4]float64        `json:"bbox"`
			Properties map[string]string `json:"properties"`
		} `json:"bounds"`
		Data []struct {
			Type       string `json:"type"`
			DataFilter struct {
				TimeRange struct {
					From string `json:"from"`
					To   string `json:"to"`
				} `json:"timeRange"`
				MaxCloudCoverage float64 `json:"maxCloudCoverage"`
				MosaickingOrder  string  `json:"mosaickingOrder"`
			} `json:"dataFilter"`
		} `json:"data"`
	} `json:"input"`
	Output struct {
		Width  int      `json:"width"`
		Height int      `json:"height"`
		Bands  []string `json:"bands"`
	} `json:"output"`
}

type tileEnvelope struct {
	Tiles []tilePayload `json:"tiles"`
}

type tilePayload struct {
	ID            string               `json:"id"`
	AcquiredOn    string               `json:"acquired_on"`
	BBox          [4]float64           `json:"bbox"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	Bands         map[string][]float64 `json:"bands"`
	CloudProb     []float64            `json:"cloud_probability"`
	CloudCoverage float64              `json:"cloud_coverage"`
}

func (c *SentinelClient) process(ctx context.Context, token string, in processRequest) ([]models.RasterTile, error) {
	payload := processPayload{}
	payload.Input.Bounds.BBox = in.BBox
	payload.Input.Bounds.Properties = map[string]string{
		"crs": "http://www.opengis.net/def/crs/EPSG/0/4326",
	}
	payload.Input.Data = make([]struct {
		Type       string `json:"type"`
		DataFilter struct {
			TimeRange struct {
				From string `json:"from"`
				To   string `json:"to"`
			} `json:"timeRange"`
			MaxCloudCoverage float64 `json:"maxCloudCoverage"`
			MosaickingOrder  string  `json:"mosaickingOrder"`
		} `json:"dataFilter"`
	}, 1)
	payload.Input.Data[0].Type = "sentinel-2-l2a"
	payload.Input.Data[0].DataFilter.TimeRange.From = in.From.Format("2006-01-02") + "T00:00:00Z"
	payload.Input.Data[0].DataFilter.TimeRange.To = in.To.Format("2006-01-02") + "T23:59:59Z"
	payload.Input.Data[0].DataFilter.MaxCloudCoverage = in.MaxCloudCoverage
	payload.Input.Data[0].DataFilter.MosaickingOrder = "leastCC"
	payload.Output.Width = in.Width
	payload.Output.Height = in.Height
	for _, b := range in.Bands {
		payload.Output.Bands = append(payload.Output.Bands, string(b))
	}
	// Cloud probability always rides along for masking.
	payload.Output.Bands = append(payload.Output.Bands, "CLP")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProcessURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build process request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: process request timed out", models.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("%w: process request failed: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &models.RateLimitedError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", models.ErrAuthExpired, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		// Catalog has nothing for this slice. Not an error.
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: process %s: %s", models.ErrProviderUnavailable, resp.Status, truncate(data, 300))
	}

	var envelope tileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode process response: %v", models.ErrProviderUnavailable, err)
	}

	tiles := make([]models.RasterTile, 0, len(envelope.Tiles))
	for _, t := range envelope.Tiles {
		acquired, err := time.Parse("2006-01-02", t.AcquiredOn)
		if err != nil {
			slog.Warn("Skipping tile with unparseable acquisition date",
				"tile_id", t.ID, "acquired_on", t.AcquiredOn)
			continue
		}
		bands := make(map[models.Band][]float64, len(t.Bands))
		for name, grid := range t.Bands {
			bands[models.Band(name)] = grid
		}
		tiles = append(tiles, models.RasterTile{
			ProviderID:    t.ID,
			BBox:          t.BBox,
			AcquiredOn:    acquired,
			Width:         t.Width,
			Height:        t.Height,
			Bands:         bands,
			CloudProb:     t.CloudProb,
			CloudCoverage: t.CloudCoverage,
		})
	}
	return tiles, nil
}

// retryAfter parses the Retry-After header, which this provider sends in
// milliseconds. Falls back to a conservative 30s.
func retryAfter(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if ms, err := strconv.Atoi(ra); err == nil && ms > 0 {
			d := time.Duration(ms) * time.Millisecond
			if d > time.Minute {
				d = time.Minute
			}
			return d
		}
	}
	return 30 * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
