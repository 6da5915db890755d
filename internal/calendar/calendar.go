// Package calendar fetches upcoming events from a remote calendar and
// normalizes them into schedule events.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/prodhub/internal/keywords"
	"github.com/sadopc/prodhub/internal/metrics"
	"github.com/sadopc/prodhub/internal/schedule"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"
	DefaultExclude = "birthday"
	defaultTimeout = 15 * time.Second
	// maxPages bounds pagination against a misbehaving server.
	maxPages = 20
)

var (
	ErrUnauthorized = errors.New("calendar token rejected")
	ErrNoToken      = errors.New("calendar token is required")
)

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("calendar http %d", e.StatusCode)
	}
	return fmt.Sprintf("calendar http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

type Options struct {
	BaseURL string
	// Exclude lists title keywords of events to drop. Nil means
	// DefaultExclude; an empty slice keeps everything.
	Exclude    []string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
	MaxRetries int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	exclude    *keywords.Matcher
	log        zerolog.Logger
	maxRetries int
	baseDelay  time.Duration
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	exclude := opts.Exclude
	if exclude == nil {
		exclude = []string{DefaultExclude}
	}
	m, err := keywords.NewMatcher(exclude)
	if err != nil {
		return nil, fmt.Errorf("build exclusion matcher: %w", err)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		exclude:    m,
		log:        log.With().Str("component", "calendar").Logger(),
		maxRetries: opts.MaxRetries,
		baseDelay:  200 * time.Millisecond,
	}, nil
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type eventItem struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Summary string    `json:"summary"`
	Start   eventTime `json:"start"`
}

type eventList struct {
	Items         []eventItem `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// Upcoming returns the events starting at or after from, in the order the
// provider lists them, with excluded titles removed.
func (c *Client) Upcoming(ctx context.Context, token string, from time.Time) ([]schedule.Event, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}
	started := time.Now()
	events, err := c.fetch(ctx, token, from)
	metrics.CalendarFetches.WithLabelValues(metrics.Status(err)).Inc()
	metrics.CalendarFetchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		c.log.Warn().Err(err).Msg("calendar fetch failed")
		return nil, err
	}
	c.log.Debug().Int("events", len(events)).Msg("calendar fetched")
	return events, nil
}

func (c *Client) fetch(ctx context.Context, token string, from time.Time) ([]schedule.Event, error) {
	var events []schedule.Event
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("timeMin", from.UTC().Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var list eventList
		if err := c.getJSON(ctx, token, "/calendars/primary/events?"+q.Encode(), &list); err != nil {
			return nil, err
		}
		for _, item := range list.Items {
			if ev, ok := c.normalize(item); ok {
				events = append(events, ev)
			}
		}
		if list.NextPageToken == "" {
			return events, nil
		}
		pageToken = list.NextPageToken
	}
	c.log.Warn().Int("pages", maxPages).Msg("calendar pagination truncated")
	return events, nil
}

// normalize maps a provider event onto a schedule event. Events without a
// usable start or with an excluded title are dropped.
func (c *Client) normalize(item eventItem) (schedule.Event, bool) {
	if item.Status == "cancelled" || c.exclude.Match(item.Summary) {
		return schedule.Event{}, false
	}
	var (
		start time.Time
		err   error
	)
	switch {
	case item.Start.DateTime != "":
		start, err = time.Parse(time.RFC3339, item.Start.DateTime)
	case item.Start.Date != "":
		start, err = time.Parse("2006-01-02", item.Start.Date)
	default:
		return schedule.Event{}, false
	}
	if err != nil {
		c.log.Debug().Err(err).Str("event", item.ID).Msg("skipping event with invalid start")
		return schedule.Event{}, false
	}
	return schedule.Event{
		ID:     schedule.ExternalPrefix + item.ID,
		Title:  item.Summary,
		Date:   start,
		Origin: schedule.OriginExternal,
		AllDay: IsAllDay(start),
	}, true
}

// IsAllDay reports whether t falls exactly on midnight UTC.
func IsAllDay(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

func (c *Client) getJSON(ctx context.Context, token, requestPath string, out any) error {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+requestPath, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("decode calendar response: %w", err)
			}
			return nil
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		return &HTTPError{StatusCode: resp.StatusCode, Message: errPayload.Error.Message}
	}
}

func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
