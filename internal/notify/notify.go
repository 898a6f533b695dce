// Package notify tells workshop attendees about meeting links.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/example/workshop-scheduler/internal/application"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// SendGridConfig configures a SendGridNotifier.
type SendGridConfig struct {
	APIKey    string
	FromName  string
	FromEmail string
	// Host overrides the SendGrid API host.
	Host string
}

// SendGridNotifier emails attendees through the SendGrid v3 API.
type SendGridNotifier struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

var _ application.LinkNotifier = (*SendGridNotifier)(nil)

// NewSendGridNotifier creates a notifier sending from cfg.FromEmail.
func NewSendGridNotifier(cfg SendGridConfig) (*SendGridNotifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("notify: sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("notify: sender address is required")
	}
	name := cfg.FromName
	if name == "" {
		name = "Workshops"
	}
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	return &SendGridNotifier{
		key:        cfg.APIKey,
		host:       host,
		from:       sgmail.NewEmail(name, cfg.FromEmail),
		subjPrefix: "[" + name + "] ",
	}, nil
}

// LinkIssued sends the new link to every attendee.
func (n *SendGridNotifier) LinkIssued(ctx context.Context, notice application.LinkIssuedNotice) error {
	subject, text := linkIssuedMessage(notice)
	return n.send(ctx, notice.Attendees, subject, text)
}

// LinksInvalidated tells attendees that previously sent links no longer apply.
func (n *SendGridNotifier) LinksInvalidated(ctx context.Context, notice application.LinksInvalidatedNotice) error {
	subject, text := linksInvalidatedMessage(notice)
	return n.send(ctx, notice.Attendees, subject, text)
}

func (n *SendGridNotifier) prepare(to []string, subject, text string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = n.subjPrefix + subject
	for _, addr := range to {
		p.AddTos(sgmail.NewEmail("", addr))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", text))
	return m
}

func (n *SendGridNotifier) send(ctx context.Context, to []string, subject, text string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(n.key, endpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(to, subject, text))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("notify: sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify: sendgrid returned status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogNotifier records notices in the log instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ application.LinkNotifier = LogNotifier{}

// LinkIssued implements application.LinkNotifier.
func (n LogNotifier) LinkIssued(ctx context.Context, notice application.LinkIssuedNotice) error {
	n.logger().InfoContext(ctx, "meeting link issued",
		"workshop_id", notice.Workshop.ID,
		"day_index", notice.Link.DayIndex,
		"recipients", len(notice.Attendees),
	)
	return nil
}

// LinksInvalidated implements application.LinkNotifier.
func (n LogNotifier) LinksInvalidated(ctx context.Context, notice application.LinksInvalidatedNotice) error {
	n.logger().InfoContext(ctx, "meeting links invalidated",
		"workshop_id", notice.Workshop.ID,
		"links", len(notice.Links),
		"recipients", len(notice.Attendees),
	)
	return nil
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func linkIssuedMessage(notice application.LinkIssuedNotice) (string, string) {
	link := notice.Link
	subject := fmt.Sprintf("%s: day %d meeting link", notice.Workshop.Title, link.DayIndex)
	text := fmt.Sprintf("Day %d of %s starts at %s.\n\nJoin here: %s\n",
		link.DayIndex,
		notice.Workshop.Title,
		link.Start.Format("Monday, 2 January 2006 15:04 MST"),
		link.Link,
	)
	return subject, text
}

func linksInvalidatedMessage(notice application.LinksInvalidatedNotice) (string, string) {
	subject := fmt.Sprintf("%s: schedule changed", notice.Workshop.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "The schedule of %s has changed. These meeting links are no longer valid:\n\n", notice.Workshop.Title)
	for _, link := range notice.Links {
		fmt.Fprintf(&b, "  day %d: %s\n", link.DayIndex, link.Link)
	}
	b.WriteString("\nNew links will be sent before each session.\n")
	return subject, b.String()
}
