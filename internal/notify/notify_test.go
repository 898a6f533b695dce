package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workshop-scheduler/internal/application"
)

func sampleIssued() application.LinkIssuedNotice {
	return application.LinkIssuedNotice{
		Workshop: application.Workshop{ID: "ws-1", Title: "Go in Production"},
		Link: application.SessionLink{
			WorkshopID: "ws-1",
			DayIndex:   1,
			Link:       "https://meet.example/abc",
			Start:      time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC),
		},
		Attendees: []string{"mentor@example.com", "paid@example.com"},
	}
}

func TestSendGridNotifier_LinkIssued(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := NewSendGridNotifier(SendGridConfig{APIKey: "sg-key", FromEmail: "noreply@example.com", Host: srv.URL})
	require.NoError(t, err)
	require.NoError(t, n.LinkIssued(context.Background(), sampleIssued()))

	personalizations, ok := got["personalizations"].([]any)
	require.True(t, ok)
	require.Len(t, personalizations, 1)
	p := personalizations[0].(map[string]any)
	assert.Len(t, p["to"], 2)
	assert.Equal(t, "[Workshops] Go in Production: day 1 meeting link", p["subject"])
}

func TestSendGridNotifier_ReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	n, err := NewSendGridNotifier(SendGridConfig{APIKey: "sg-key", FromEmail: "noreply@example.com", Host: srv.URL})
	require.NoError(t, err)

	err = n.LinksInvalidated(context.Background(), application.LinksInvalidatedNotice{
		Workshop:  application.Workshop{Title: "Go in Production"},
		Attendees: []string{"paid@example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewSendGridNotifier_Validates(t *testing.T) {
	_, err := NewSendGridNotifier(SendGridConfig{FromEmail: "noreply@example.com"})
	assert.Error(t, err)
	_, err = NewSendGridNotifier(SendGridConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestLinksInvalidatedMessage(t *testing.T) {
	subject, text := linksInvalidatedMessage(application.LinksInvalidatedNotice{
		Workshop: application.Workshop{Title: "Go in Production"},
		Links: []application.SessionLink{
			{DayIndex: 1, Link: "https://meet.example/1"},
			{DayIndex: 2, Link: "https://meet.example/2"},
		},
	})
	assert.Equal(t, "Go in Production: schedule changed", subject)
	assert.Contains(t, text, "day 1: https://meet.example/1")
	assert.Contains(t, text, "day 2: https://meet.example/2")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	require.NoError(t, n.LinkIssued(context.Background(), sampleIssued()))
	assert.Contains(t, buf.String(), `"workshop_id":"ws-1"`)
	assert.Contains(t, buf.String(), `"recipients":2`)
}
