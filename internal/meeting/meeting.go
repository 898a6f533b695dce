// Package meeting creates video meetings for workshop sessions.
//
// HTTPGenerator talks to a JSON meeting provider; StaticGenerator mints links
// locally and is meant for development and tests.
package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/workshop-scheduler/internal/application"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 10 * time.Second

var (
	// ErrProviderRejected is returned when the provider answers with a non-2xx status.
	ErrProviderRejected = errors.New("meeting: provider rejected request")
	// ErrEmptyLink is returned when the provider answers without a join link.
	ErrEmptyLink = errors.New("meeting: provider returned no link")
)

// HTTPConfig configures an HTTPGenerator.
type HTTPConfig struct {
	Endpoint string
	APIToken string
	Timeout  time.Duration
}

// HTTPGenerator implements application.MeetingLinkGenerator against a JSON API.
// Calls are never retried; the caller decides whether to try again.
type HTTPGenerator struct {
	cfg  HTTPConfig
	http *http.Client
}

var _ application.MeetingLinkGenerator = (*HTTPGenerator)(nil)

// NewHTTPGenerator creates a generator posting to cfg.Endpoint.
func NewHTTPGenerator(cfg HTTPConfig) (*HTTPGenerator, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("meeting: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPGenerator{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
	}, nil
}

type createMeetingRequest struct {
	Topic           string   `json:"topic"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Attendees       []string `json:"attendees"`
	ExternalRef     string   `json:"external_ref"`
}

type createMeetingResponse struct {
	ID      string `json:"id"`
	JoinURL string `json:"join_url"`
}

// Create asks the provider for a meeting.
func (g *HTTPGenerator) Create(ctx context.Context, request application.MeetingRequest) (application.Meeting, error) {
	if g == nil {
		return application.Meeting{}, fmt.Errorf("HTTPGenerator is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body := createMeetingRequest{
		Topic:           request.Title,
		StartTime:       request.Start.UTC().Format(time.RFC3339),
		DurationMinutes: int(request.Duration / time.Minute),
		Attendees:       request.Attendees,
		ExternalRef:     fmt.Sprintf("%s/%d", request.WorkshopID, request.DayIndex),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return application.Meeting{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return application.Meeting{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIToken)
	}

	httpResp, err := g.http.Do(httpReq)
	if err != nil {
		return application.Meeting{}, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return application.Meeting{}, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return application.Meeting{}, fmt.Errorf("%w: status %d: %s", ErrProviderRejected, httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var resp createMeetingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return application.Meeting{}, fmt.Errorf("decoding response: %w", err)
	}
	if strings.TrimSpace(resp.JoinURL) == "" {
		return application.Meeting{}, ErrEmptyLink
	}
	return application.Meeting{Link: resp.JoinURL, ProviderID: resp.ID}, nil
}

// StaticGenerator mints a random link under BaseURL without calling anyone.
type StaticGenerator struct {
	BaseURL string
}

var _ application.MeetingLinkGenerator = StaticGenerator{}

// Create returns BaseURL/<uuid>.
func (g StaticGenerator) Create(ctx context.Context, request application.MeetingRequest) (application.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return application.Meeting{}, err
	}
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = "https://meet.invalid"
	}
	id := uuid.NewString()
	return application.Meeting{Link: base + "/" + id, ProviderID: id}, nil
}
