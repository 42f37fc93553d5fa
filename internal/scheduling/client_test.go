package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostudy/bookbot/internal/logging"
)

func testClient(t *testing.T, handler http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	return NewClient(opts, nil, logging.Nop())
}

// calendlyStub serves the three API surfaces the client touches.
type calendlyStub struct {
	eventTypes []EventType
	slotTimes  []string
	lastAuth   string
	lastAvail  availabilityRequest
}

func (s *calendlyStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		s.lastAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"resource": map[string]string{"uri": "https://api.calendly.com/users/abc123"},
		})
	})
	mux.HandleFunc("/event_types", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"collection": s.eventTypes})
	})
	mux.HandleFunc("/availability", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&s.lastAvail)
		entries := make([]map[string]string, 0, len(s.slotTimes))
		for _, ts := range s.slotTimes {
			entries = append(entries, map[string]string{"start_time": ts})
		}
		json.NewEncoder(w).Encode(map[string]any{"collection": entries})
	})
	return mux
}

func TestCurrentUser(t *testing.T) {
	stub := &calendlyStub{}
	client := testClient(t, stub.handler(), Options{})

	uri, err := client.CurrentUser(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "https://api.calendly.com/users/abc123", uri)
	assert.Equal(t, "Bearer tok-1", stub.lastAuth)
}

func TestResolveEventTypeFirstWins(t *testing.T) {
	stub := &calendlyStub{eventTypes: []EventType{
		{Name: "Intro Call", URI: "uri-1", SchedulingURL: "https://calendly.com/me/intro"},
		{Name: "Follow Up", URI: "uri-2", SchedulingURL: "https://calendly.com/me/followup"},
	}}
	client := testClient(t, stub.handler(), Options{})

	et, err := client.ResolveEventType(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "uri-1", et.URI)
}

func TestResolveEventTypeBySchedulingLink(t *testing.T) {
	stub := &calendlyStub{eventTypes: []EventType{
		{Name: "Intro Call", URI: "uri-1", SchedulingURL: "https://calendly.com/me/intro"},
		{Name: "Follow Up", URI: "uri-2", SchedulingURL: "https://calendly.com/me/followup"},
	}}
	client := testClient(t, stub.handler(), Options{SchedulingLink: "https://calendly.com/me/followup"})

	et, err := client.ResolveEventType(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "uri-2", et.URI)
}

func TestResolveEventTypeEmptyCollection(t *testing.T) {
	stub := &calendlyStub{}
	client := testClient(t, stub.handler(), Options{})

	_, err := client.ResolveEventType(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoEventTypes)
}

func TestResolveEventTypeNoMatch(t *testing.T) {
	stub := &calendlyStub{eventTypes: []EventType{
		{Name: "Intro Call", URI: "uri-1", SchedulingURL: "https://calendly.com/me/intro"},
	}}
	client := testClient(t, stub.handler(), Options{SchedulingLink: "https://calendly.com/someone-else"})

	_, err := client.ResolveEventType(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoMatchingEventType)
}

func TestSlotsCappedAtMax(t *testing.T) {
	times := make([]string, 8)
	for i := range times {
		times[i] = fmt.Sprintf("2026-09-0%dT10:00:00Z", i+1)
	}
	stub := &calendlyStub{
		eventTypes: []EventType{{Name: "Intro", URI: "uri-1"}},
		slotTimes:  times,
	}
	client := testClient(t, stub.handler(), Options{MaxSlots: 5})

	slots, err := client.Slots(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, slots, 5)
	assert.Equal(t, "2026-09-01T10:00:00Z", slots[0].ISO)
	assert.Equal(t, "2026-09-01 10:00:00", slots[0].Display)
}

func TestSlotsEmptyCollection(t *testing.T) {
	stub := &calendlyStub{eventTypes: []EventType{{Name: "Intro", URI: "uri-1"}}}
	client := testClient(t, stub.handler(), Options{})

	slots, err := client.Slots(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsRequestWindow(t *testing.T) {
	stub := &calendlyStub{eventTypes: []EventType{{Name: "Intro", URI: "uri-1"}}}
	client := testClient(t, stub.handler(), Options{WindowDays: 7, Timezone: "Asia/Tashkent"})

	before := time.Now().UTC()
	_, err := client.Slots(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, "uri-1", stub.lastAvail.EventType)
	assert.Equal(t, "Asia/Tashkent", stub.lastAvail.Timezone)

	start, err := time.Parse(time.RFC3339, stub.lastAvail.StartTime)
	require.NoError(t, err)
	end, err := time.Parse(time.RFC3339, stub.lastAvail.EndTime)
	require.NoError(t, err)
	assert.WithinDuration(t, before, start, 5*time.Second)
	assert.Equal(t, 7*24*time.Hour, end.Sub(start))
}

func TestUpstreamStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	})
	client := testClient(t, handler, Options{})

	_, err := client.CurrentUser(context.Background(), "bad-token")
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.Status)
	assert.Equal(t, "current_user", upstream.Op)
	assert.Contains(t, upstream.Body, "invalid token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNetworkFailureRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatal(err)
			}
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"resource": map[string]string{"uri": "uri-after-retry"},
		})
	})
	client := testClient(t, handler, Options{})

	uri, err := client.CurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "uri-after-retry", uri)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTimeoutMapsToSentinel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client := testClient(t, handler, Options{Timeout: 50 * time.Millisecond})

	_, err := client.CurrentUser(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestFormatStartTime(t *testing.T) {
	assert.Equal(t, "2026-09-01 10:00:00", FormatStartTime("2026-09-01T10:00:00Z"))
	assert.Equal(t, "2026-09-01 10:00:00.000000", FormatStartTime("2026-09-01T10:00:00.000000Z"))
	assert.Equal(t, "2026-09-01 10:00:00+05:00", FormatStartTime("2026-09-01T10:00:00+05:00"))
}
