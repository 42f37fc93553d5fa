// Package scheduling implements the Calendly availability client: event
// type resolution and open-slot retrieval for an authorized account.
package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gostudy/bookbot/internal/logging"
)

// Recorder observes outbound scheduling API calls. Implemented by the
// metrics collector; a nil Recorder disables observation.
type Recorder interface {
	ObserveUpstream(op, outcome string, d time.Duration)
}

// EventType is a bookable meeting template of the authorized account.
type EventType struct {
	Name          string `json:"name"`
	URI           string `json:"uri"`
	SchedulingURL string `json:"scheduling_url"`
}

// Slot is a single bookable start time. ISO keeps the upstream precision;
// Display is the human form shown in chat ("T" replaced by a space, the
// trailing zone marker stripped).
type Slot struct {
	ISO     string `json:"iso"`
	Display string `json:"display"`
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Timezone       string
	WindowDays     int
	MaxSlots       int
	SchedulingLink string // optional event type selector; empty = first
	Timeout        time.Duration
}

// Client queries the Calendly API with a user's bearer token.
type Client struct {
	opts    Options
	http    *http.Client
	metrics Recorder
	log     *logging.Logger
}

// NewClient creates an availability client. Zero-value options fall back
// to the production Calendly surface and the windows spec'd for the bot.
func NewClient(opts Options, metrics Recorder, log *logging.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.calendly.com"
	}
	if opts.Timezone == "" {
		opts.Timezone = "Asia/Tashkent"
	}
	if opts.WindowDays == 0 {
		opts.WindowDays = 7
	}
	if opts.MaxSlots == 0 {
		opts.MaxSlots = 5
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		metrics: metrics,
		log:     log.Sub("scheduling"),
	}
}

// FormatStartTime turns an ISO start time into its chat display form:
// the date/time separator becomes a space and the UTC marker is dropped.
func FormatStartTime(iso string) string {
	return strings.TrimSuffix(strings.Replace(iso, "T", " ", 1), "Z")
}

type userResponse struct {
	Resource struct {
		URI string `json:"uri"`
	} `json:"resource"`
}

type eventTypesResponse struct {
	Collection []EventType `json:"collection"`
}

type availabilityRequest struct {
	EventType string `json:"event_type"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

type availabilityResponse struct {
	Collection []struct {
		StartTime string `json:"start_time"`
	} `json:"collection"`
}

// CurrentUser returns the authorized account's profile URI.
func (c *Client) CurrentUser(ctx context.Context, token string) (string, error) {
	body, err := c.call(ctx, "current_user", token, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.opts.BaseURL+"/users/me", nil)
	})
	if err != nil {
		return "", err
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing user response: %w", err)
	}
	return resp.Resource.URI, nil
}

// EventTypes lists the account's event types.
func (c *Client) EventTypes(ctx context.Context, token, userURI string) ([]EventType, error) {
	target := c.opts.BaseURL + "/event_types"
	if userURI != "" {
		target += "?user=" + url.QueryEscape(userURI)
	}

	body, err := c.call(ctx, "event_types", token, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}

	var resp eventTypesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing event types response: %w", err)
	}
	return resp.Collection, nil
}

// ResolveEventType picks the event type slots are fetched for. Without a
// configured scheduling link the first entry wins; with one, the event
// type whose public link matches exactly. An empty collection fails with
// ErrNoEventTypes, a missing match with ErrNoMatchingEventType.
func (c *Client) ResolveEventType(ctx context.Context, token string) (*EventType, error) {
	userURI, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	eventTypes, err := c.EventTypes(ctx, token, userURI)
	if err != nil {
		return nil, err
	}
	if len(eventTypes) == 0 {
		return nil, ErrNoEventTypes
	}

	if c.opts.SchedulingLink == "" {
		return &eventTypes[0], nil
	}
	for i := range eventTypes {
		if eventTypes[i].SchedulingURL == c.opts.SchedulingLink {
			return &eventTypes[i], nil
		}
	}
	return nil, ErrNoMatchingEventType
}

// Slots returns up to MaxSlots open start times in the forward window,
// formatted for display. An empty upstream collection yields an empty
// slice, not an error.
func (c *Client) Slots(ctx context.Context, token string) ([]Slot, error) {
	eventType, err := c.ResolveEventType(ctx, token)
	if err != nil {
		return nil, err
	}
	return c.AvailableTimes(ctx, token, eventType.URI)
}

// AvailableTimes queries availability for one event type over the
// configured forward window starting at current UTC time.
func (c *Client) AvailableTimes(ctx context.Context, token, eventTypeURI string) ([]Slot, error) {
	start := time.Now().UTC()
	end := start.Add(time.Duration(c.opts.WindowDays) * 24 * time.Hour)

	payload, err := json.Marshal(availabilityRequest{
		EventType: eventTypeURI,
		StartTime: start.Format(time.RFC3339),
		EndTime:   end.Format(time.RFC3339),
		Timezone:  c.opts.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding availability request: %w", err)
	}

	body, err := c.call(ctx, "availability", token, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.opts.BaseURL+"/availability", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp availabilityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing availability response: %w", err)
	}

	slots := make([]Slot, 0, c.opts.MaxSlots)
	for _, entry := range resp.Collection {
		if len(slots) == c.opts.MaxSlots {
			break
		}
		slots = append(slots, Slot{
			ISO:     entry.StartTime,
			Display: FormatStartTime(entry.StartTime),
		})
	}

	c.log.Debug().
		Int("returned", len(resp.Collection)).
		Int("kept", len(slots)).
		Msg("availability fetched")

	return slots, nil
}

// call executes one authorized request with a bounded deadline and at
// most one retry on a network-level failure. HTTP statuses are never
// retried; non-2xx becomes an UpstreamError carrying the upstream body.
func (c *Client) call(ctx context.Context, op, token string, build func() (*http.Request, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	started := time.Now()
	body, err := c.attempt(ctx, token, build)
	if err != nil && retryable(err) {
		c.log.Warn().Err(err).Str("op", op).Msg("network failure, retrying once")
		body, err = c.attempt(ctx, token, build)
	}

	outcome := "ok"
	var upstream *UpstreamError
	switch {
	case err == nil:
	case isTimeout(err):
		outcome = "timeout"
		err = fmt.Errorf("calendly %s: %w", op, ErrUpstreamTimeout)
	case errors.As(err, &upstream):
		outcome = "error"
		upstream.Op = op
	default:
		outcome = "error"
		err = fmt.Errorf("calendly %s: %w", op, err)
	}
	if c.metrics != nil {
		c.metrics.ObserveUpstream(op, outcome, time.Since(started))
	}
	return body, err
}

// netOpError marks a transport-level failure (as opposed to an HTTP status).
type netOpError struct{ err error }

func (e *netOpError) Error() string { return e.err.Error() }
func (e *netOpError) Unwrap() error { return e.err }

func (c *Client) attempt(ctx context.Context, token string, build func() (*http.Request, error)) ([]byte, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &netOpError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &netOpError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// retryable reports whether an attempt failed at the network level and is
// worth one more try. Deadline expiry and HTTP statuses are not.
func retryable(err error) bool {
	var opErr *netOpError
	if !errors.As(err, &opErr) {
		return false
	}
	return !isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
