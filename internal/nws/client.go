package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultBaseURL = "https://api.weather.gov"

	// ProbeTimeout bounds the one-shot feed check at setup.
	ProbeTimeout = 20 * time.Second
	// PollTimeout bounds each scheduled fetch.
	PollTimeout = 10 * time.Second

	alertsPath = "/alerts/active"
)

var (
	ErrInvalidFeed = errors.New("invalid feed")
	ErrTimeout     = errors.New("request timed out")
)

// StatusError is returned when the API answers with anything but 200.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d - status: %s", e.Code, e.Status)
}

// Doer is satisfied by *http.Client. The same Doer is shared by every sensor
// and must be safe for concurrent use.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the NWS active alerts endpoint.
type Client struct {
	doer      Doer
	baseURL   string
	userAgent string
}

func NewClient(doer Doer, baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		doer:      doer,
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// NewHTTPClient builds the shared session. Transient failures (connection
// errors, 429, 5xx) are retried up to retryMax times within the caller's
// deadline; the final response is handed back as-is so callers still see the
// status code.
func NewHTTPClient(retryMax int, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}
	return rc.StandardClient()
}

// ActiveAlerts fetches the active alerts for a feed identifier. The caller's
// context carries the bounded wait; exceeding it yields ErrTimeout.
func (c *Client) ActiveAlerts(ctx context.Context, feedID string) (*AlertCollection, error) {
	resp, err := c.get(ctx, feedID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var data AlertCollection
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if timedOut(ctx, err) {
			return nil, fmt.Errorf("%w: reading alerts for %s", ErrTimeout, feedID)
		}
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	return &data, nil
}

// Probe confirms that zoneCode resolves to a live feed. The API reports an
// unknown zone either with a non-200 status or with {"status": 404} inside a
// 200 response; both yield ErrInvalidFeed.
func (c *Client) Probe(ctx context.Context, zoneCode string) error {
	resp, err := c.get(ctx, zoneCode)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w: validating feed for zone %q", ErrTimeout, zoneCode)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: invalid zone ID %q: %w", ErrInvalidFeed, zoneCode,
			&StatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if timedOut(ctx, err) {
			return fmt.Errorf("%w: validating feed for zone %q", ErrTimeout, zoneCode)
		}
		return fmt.Errorf("%w: invalid zone ID %q: %w", ErrInvalidFeed, zoneCode, err)
	}

	if obj, ok := body.(map[string]any); ok {
		if status, ok := obj["status"].(float64); ok && status == http.StatusNotFound {
			return fmt.Errorf("%w: invalid zone ID %q", ErrInvalidFeed, zoneCode)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, zoneParam string) (*http.Response, error) {
	u := c.baseURL + alertsPath + "?" + url.Values{"zone": {zoneParam}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.doer.Do(req)
	if err != nil {
		if timedOut(ctx, err) {
			return nil, fmt.Errorf("%w: fetching %s", ErrTimeout, zoneParam)
		}
		return nil, fmt.Errorf("error doing request: %w", err)
	}
	return resp, nil
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
