package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workshop-scheduler/internal/application"
)

func sampleRequest() application.MeetingRequest {
	return application.MeetingRequest{
		WorkshopID: "ws-1",
		DayIndex:   2,
		Title:      "Go in Production (day 2)",
		Start:      time.Date(2024, time.March, 6, 14, 0, 0, 0, time.UTC),
		Duration:   60 * time.Minute,
		Attendees:  []string{"mentor@example.com", "paid@example.com"},
	}
}

func TestHTTPGenerator_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req createMeetingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2024-03-06T14:00:00Z", req.StartTime)
		assert.Equal(t, 60, req.DurationMinutes)
		assert.Equal(t, "ws-1/2", req.ExternalRef)
		assert.Len(t, req.Attendees, 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createMeetingResponse{ID: "m-42", JoinURL: "https://meet.example/m-42"})
	}))
	defer srv.Close()

	gen, err := NewHTTPGenerator(HTTPConfig{Endpoint: srv.URL, APIToken: "secret"})
	require.NoError(t, err)

	meeting, err := gen.Create(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example/m-42", meeting.Link)
	assert.Equal(t, "m-42", meeting.ProviderID)
}

func TestHTTPGenerator_Failures(t *testing.T) {
	cases := map[string]struct {
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		"rejected": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrProviderRejected))
				assert.Contains(t, err.Error(), "429")
			},
		},
		"empty link": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"m-1"}`))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrEmptyLink))
			},
		},
		"bad json": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decoding response")
			},
		},
		"timeout": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			gen, err := NewHTTPGenerator(HTTPConfig{Endpoint: srv.URL, Timeout: 100 * time.Millisecond})
			require.NoError(t, err)

			_, err = gen.Create(context.Background(), sampleRequest())
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestNewHTTPGenerator_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPGenerator(HTTPConfig{})
	assert.Error(t, err)
}

func TestStaticGenerator(t *testing.T) {
	gen := StaticGenerator{BaseURL: "https://meet.local/"}

	first, err := gen.Create(context.Background(), sampleRequest())
	require.NoError(t, err)
	second, err := gen.Create(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.Link, "https://meet.local/"))
	assert.NotEqual(t, first.Link, second.Link)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gen.Create(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
