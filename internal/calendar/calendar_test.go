package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/prodhub/internal/schedule"
)

func TestUpcomingNormalizesAndFilters(t *testing.T) {
	from := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-05-01T08:00:00Z", r.URL.Query().Get("timeMin"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"a","summary":"Standup","start":{"dateTime":"2026-05-02T09:30:00+02:00"}},
			{"id":"b","summary":"Mom's Birthday","start":{"date":"2026-05-03"}},
			{"id":"c","summary":"Conference","start":{"date":"2026-05-04"}},
			{"id":"d","summary":"Broken","start":{}},
			{"id":"e","summary":"Midnight call","start":{"dateTime":"2026-05-05T00:00:00Z"}},
			{"id":"f","summary":"Gone","status":"cancelled","start":{"date":"2026-05-06"}}
		]}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	events, err := c.Upcoming(context.Background(), "tok", from)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "gcal-a", events[0].ID)
	assert.Equal(t, schedule.OriginExternal, events[0].Origin)
	assert.False(t, events[0].AllDay)
	assert.True(t, events[0].Date.Equal(time.Date(2026, 5, 2, 7, 30, 0, 0, time.UTC)))

	assert.Equal(t, "gcal-c", events[1].ID)
	assert.True(t, events[1].AllDay)

	assert.Equal(t, "gcal-e", events[2].ID)
	assert.True(t, events[2].AllDay)
}

func TestUpcomingFollowsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"items":[{"id":"1","summary":"One","start":{"date":"2026-05-01"}}],"nextPageToken":"p2"}`))
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		w.Write([]byte(`{"items":[{"id":"2","summary":"Two","start":{"date":"2026-05-02"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Exclude: []string{}})
	require.NoError(t, err)
	events, err := c.Upcoming(context.Background(), "tok", time.Now())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "gcal-2", events[1].ID)
}

func TestUpcomingCustomExclusions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[
			{"id":"1","summary":"Birthday","start":{"date":"2026-05-01"}},
			{"id":"2","summary":"Dentist","start":{"date":"2026-05-01"}}
		]}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Exclude: []string{"dentist"}})
	require.NoError(t, err)
	events, err := c.Upcoming(context.Background(), "tok", time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "gcal-1", events[0].ID)
}

func TestUpcomingUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Upcoming(context.Background(), "bad", time.Now())
	assert.ErrorIs(t, err, ErrUnauthorized)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "Invalid Credentials", httpErr.Message)
}

func TestUpcomingRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, MaxRetries: 2})
	require.NoError(t, err)
	events, err := c.Upcoming(context.Background(), "tok", time.Now())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUpcomingRequiresToken(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	_, err = c.Upcoming(context.Background(), " ", time.Now())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestUpcomingMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Upcoming(context.Background(), "tok", time.Now())
	assert.Error(t, err)
}

func TestIsAllDay(t *testing.T) {
	ist := time.FixedZone("IST", 3*3600)
	assert.True(t, IsAllDay(time.Date(2026, 1, 1, 3, 0, 0, 0, ist)))
	assert.False(t, IsAllDay(time.Date(2026, 1, 1, 0, 0, 0, 0, ist)))
	assert.False(t, IsAllDay(time.Date(2026, 1, 1, 0, 0, 0, 1, time.UTC)))
}
