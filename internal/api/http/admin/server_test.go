package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sia-bridge/internal/domain/event"
	"github.com/oshokin/sia-bridge/internal/store"
)

// fakeService records calls and returns canned answers.
type fakeService struct {
	health   Health
	status   Status
	records  []event.ReplayRecord
	filters  []store.Filter
	replayed []*event.AlarmEvent
}

func (f *fakeService) Health(context.Context) Health {
	return f.health
}

func (f *fakeService) Events(_ context.Context, filter store.Filter) []event.ReplayRecord {
	f.filters = append(f.filters, filter)

	return f.records
}

func (f *fakeService) Replay(_ context.Context, evt *event.AlarmEvent) uint64 {
	f.replayed = append(f.replayed, evt)

	return uint64(len(f.replayed))
}

func (f *fakeService) Status(context.Context) Status {
	return f.status
}

func newTestServer(t *testing.T, service Service) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(NewServer(service).Handler())
	t.Cleanup(srv.Close)

	return srv
}

func getJSON(t *testing.T, client *http.Client, url string, out any) int {
	t.Helper()

	resp, err := client.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))

	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	t.Parallel()

	service := &fakeService{
		health: Health{Status: "ok", QueueDepth: 3, DroppedEvents: 1, StoredEvents: 42},
	}
	srv := newTestServer(t, service)

	var got Health

	code := getJSON(t, srv.Client(), srv.URL+"/health", &got)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, service.health, got)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	service := &fakeService{
		status: Status{
			ListenAddress:     ":65100",
			ForwardURL:        "http://downstream/events",
			Accounts:          []string{"AAA", "EEE"},
			EncryptedAccounts: []string{"EEE"},
		},
	}
	srv := newTestServer(t, service)

	var got Status

	code := getJSON(t, srv.Client(), srv.URL+"/status", &got)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, service.status, got)
}

func TestEvents_FiltersAndShape(t *testing.T) {
	t.Parallel()

	when := time.Date(2025, 10, 20, 15, 10, 30, 0, time.UTC)
	service := &fakeService{
		records: []event.ReplayRecord{
			{
				ID: 7,
				Event: &event.AlarmEvent{
					AccountID:      "AAA",
					Code:           "BA",
					Description:    "Burglary alarm",
					Zone:           "001",
					Qualifier:      event.QualifierNew,
					Classification: event.ClassKnown,
					Timestamp:      when,
				},
				Forwarded: true,
			},
		},
	}
	srv := newTestServer(t, service)

	var got []map[string]any

	code := getJSON(t, srv.Client(), srv.URL+"/events?account=AAA&code=BA&limit=10", &got)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, got, 1)
	require.Equal(t, "AAA", got[0]["account_code"])
	require.Equal(t, "BA", got[0]["event"])
	require.Equal(t, "2025-10-20 15:10:30", got[0]["timestamp"])
	require.Equal(t, true, got[0]["forwarded"])

	require.Equal(t, []store.Filter{{AccountID: "AAA", Code: "BA", Limit: 10}}, service.filters)
}

func TestEvents_BadLimit(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeService{})

	resp, err := srv.Client().Get(srv.URL + "/events?limit=banana")
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReplay(t *testing.T) {
	t.Parallel()

	service := &fakeService{}
	srv := newTestServer(t, service)

	body := `{"account_code":"AAA","event":"BA","zone":"2","qualifier":"new"}`

	resp, err := srv.Client().Post(srv.URL+"/replay", "application/json", strings.NewReader(body))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got map[string]uint64

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, uint64(1), got["record_id"])

	require.Len(t, service.replayed, 1)
	replayed := service.replayed[0]
	require.Equal(t, "AAA", replayed.AccountID)
	require.Equal(t, "BA", replayed.Code)
	require.Equal(t, event.QualifierNew, replayed.Qualifier)
	require.Equal(t, event.ClassKnown, replayed.Classification)
	require.True(t, replayed.SyntheticTime)
}

func TestReplay_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{name: "missing account", body: `{"event":"BA"}`},
		{name: "bad code length", body: `{"account_code":"AAA","event":"BURG"}`},
		{name: "bad qualifier", body: `{"account_code":"AAA","event":"BA","qualifier":"maybe"}`},
		{name: "unknown field", body: `{"account_code":"AAA","event":"BA","extra":true}`},
		{name: "not json", body: `!!`},
	}

	service := &fakeService{}
	srv := newTestServer(t, service)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := srv.Client().Post(srv.URL+"/replay", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)

			defer resp.Body.Close()

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	require.Empty(t, service.replayed)
}

func TestMethodRouting(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeService{})

	resp, err := srv.Client().Post(srv.URL+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
