// Package weather looks up current conditions from an OpenWeatherMap-compatible endpoint.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skychat/internal/config"
)

type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

// ParseUnit maps free-form input onto a Unit, defaulting to Celsius.
func ParseUnit(s string) Unit {
	if Unit(strings.ToLower(strings.TrimSpace(s))) == Fahrenheit {
		return Fahrenheit
	}
	return Celsius
}

// System returns the provider's measurement system for u.
func (u Unit) System() string {
	if u == Fahrenheit {
		return "imperial"
	}
	return "metric"
}

// Report is the successful lookup payload handed to the model.
type Report struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Unit        Unit    `json:"unit"`
	Conditions  string  `json:"conditions"`
}

// Result is either a Report or an error message. It never aborts a turn:
// failures travel to the model as {"error": "..."}.
type Result struct {
	Report *Report
	Err    string
}

func (r Result) Failed() bool {
	return r.Report == nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Report == nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err})
	}
	return json.Marshal(r.Report)
}

func failure(err error) Result {
	return Result{Err: fmt.Sprintf("Failed to get weather data: %v", err)}
}

// Client calls the provider's /data/2.5/weather endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.WeatherConfig, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type providerResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Lookup fetches current conditions for location. Every failure is
// reported inside the Result.
func (c *Client) Lookup(ctx context.Context, location string, unit Unit) Result {
	location = strings.TrimSpace(location)
	if location == "" {
		return failure(errors.New("location is required"))
	}
	if c.apiKey == "" {
		return failure(errors.New("weather api key not configured"))
	}
	if unit != Fahrenheit {
		unit = Celsius
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", unit.System())
	endpoint := c.baseURL + "/data/2.5/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return failure(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	const maxBodySize = 256 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return failure(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(fmt.Errorf("%s", resp.Status))
	}

	var parsed providerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failure(fmt.Errorf("decode response: %w", err))
	}
	if parsed.Name == "" || parsed.Main.Temp == nil || len(parsed.Weather) == 0 {
		return failure(errors.New("incomplete response"))
	}
	return Result{Report: &Report{
		Location:    parsed.Name,
		Temperature: *parsed.Main.Temp,
		Unit:        unit,
		Conditions:  parsed.Weather[0].Description,
	}}
}
