// Package client is a Go client for the EventHub API together with the
// view models a front end binds to.
//
// Every call that acts for a user takes an explicit Credentials value.
// Nothing in this package holds a process-wide session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Credentials authenticate a caller.
type Credentials struct {
	Token string
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status         int
	Message        string
	AvailableSeats *int
	BookingsCount  *int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eventhub: %d %s", e.Status, e.Message)
}

// Client calls the EventHub HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL. A nil hc uses
// http.DefaultClient.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// NewIdempotencyKey returns a fresh key for CreateBooking. Reuse the same
// key when retrying a booking whose outcome is unknown.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Register creates an account and returns credentials for it.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (Credentials, *model.User, error) {
	var res model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", Credentials{}, nil, req, &res); err != nil {
		return Credentials{}, nil, err
	}
	return Credentials{Token: res.AccessToken}, res.User, nil
}

// Login exchanges an email and password for credentials.
func (c *Client) Login(ctx context.Context, email, password string) (Credentials, *model.User, error) {
	var res model.AuthResponse
	req := model.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", Credentials{}, nil, req, &res); err != nil {
		return Credentials{}, nil, err
	}
	return Credentials{Token: res.AccessToken}, res.User, nil
}

// ListEvents returns every event.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	if err := c.do(ctx, http.MethodGet, "/api/events", Credentials{}, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEvent returns one event.
func (c *Client) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(id), Credentials{}, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEvent creates an event. The caller must be an organizer.
func (c *Client) CreateEvent(ctx context.Context, creds Credentials, req model.CreateEventRequest) (*model.Event, error) {
	var out model.EventCreatedResponse
	if err := c.do(ctx, http.MethodPost, "/api/events", creds, nil, req, &out); err != nil {
		return nil, err
	}
	return out.Event, nil
}

// UpdateEvent applies a partial update to an event the caller owns.
func (c *Client) UpdateEvent(ctx context.Context, creds Credentials, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodPut, "/api/events/"+url.PathEscape(id), creds, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEvent deletes an event the caller owns.
func (c *Client) DeleteEvent(ctx context.Context, creds Credentials, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), creds, nil, nil, nil)
}

// CreateBooking reserves seats. req.IdempotencyKey, when set, is sent in
// the Idempotency-Key header.
func (c *Client) CreateBooking(ctx context.Context, creds Credentials, req model.CreateBookingRequest) (*model.BookingResult, error) {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{idempotencyKeyHeader: req.IdempotencyKey}
	}
	var out model.BookingResult
	if err := c.do(ctx, http.MethodPost, "/api/bookings", creds, headers, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyBookings lists the caller's bookings.
func (c *Client) MyBookings(ctx context.Context, creds Credentials) ([]model.BookingDetail, error) {
	var out []model.BookingDetail
	if err := c.do(ctx, http.MethodGet, "/api/bookings/my", creds, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelBooking cancels one of the caller's bookings.
func (c *Client) CancelBooking(ctx context.Context, creds Credentials, id string) (*model.CancelResult, error) {
	var out model.CancelResult
	if err := c.do(ctx, http.MethodDelete, "/api/bookings/"+url.PathEscape(id), creds, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, creds Credentials, headers map[string]string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var payload model.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.AvailableSeats = payload.AvailableSeats
		apiErr.BookingsCount = payload.BookingsCount
	}
	return apiErr
}
