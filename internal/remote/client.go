// Package remote talks to the dataset, training and model-management
// service. The classifier only needs two things from it: the class order
// of the published model and an optional validity threshold override.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/Brownie44l1/meloscan/internal/model"
)

const (
	settingsPath = "/api/classifier/settings"
	healthPath   = "/api/health"

	maxBodyBytes = 1 << 20
)

// Settings is the classifier configuration published by the service.
// Absent fields are left nil.
type Settings struct {
	ClassNames        []string `mapstructure:"class_names"`
	ValidityThreshold *float64 `mapstructure:"validity_threshold"`
}

// Health is the service's readiness report.
type Health struct {
	Status      string `mapstructure:"status"`
	ModelLoaded bool   `mapstructure:"model_loaded"`
	Error       string `mapstructure:"error"`
}

// Client is a small HTTP client for the service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New returns a client for baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Settings fetches and validates the published classifier settings.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	doc, err := c.getJSON(ctx, settingsPath)
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := decode(doc, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(s.ClassNames) > 0 {
		if _, err := model.ParseClassOrder(s.ClassNames); err != nil {
			return nil, fmt.Errorf("settings class_names: %w", err)
		}
	}
	if t := s.ValidityThreshold; t != nil && !(*t >= 0 && *t <= 1) {
		return nil, fmt.Errorf("settings validity_threshold must be in [0,1], got %g", *t)
	}

	c.logger.Debug("fetched remote settings",
		"url", c.baseURL+settingsPath,
		"classes", s.ClassNames,
		"threshold_set", s.ValidityThreshold != nil)
	return &s, nil
}

// CheckHealth reports whether the service is reachable and healthy.
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	doc, err := c.getJSON(ctx, healthPath)
	if err != nil {
		return nil, err
	}
	var h Health
	if err := decode(doc, &h); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	if h.Status != "healthy" {
		return &h, fmt.Errorf("service unhealthy: status %q", h.Status)
	}
	return &h, nil
}

func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s failed with status %d: %s", path, resp.StatusCode, detail(body))
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return doc, nil
}

// decode maps a loosely typed document onto out, accepting numbers sent
// as strings.
func decode(doc map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(doc)
}

// detail extracts the service's {"detail": ...} message, falling back to
// the raw body.
func detail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(body))
}
