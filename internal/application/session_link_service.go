package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/recurrence"
	"github.com/example/workshop-scheduler/internal/scheduler"
)

// SessionDuration is the meeting length requested from the provider.
const SessionDuration = 60 * time.Minute

// WorkshopReader loads workshops by identifier.
type WorkshopReader interface {
	GetWorkshop(ctx context.Context, id string) (Workshop, error)
}

// EnrollmentReader lists the enrollments of a workshop.
type EnrollmentReader interface {
	ListEnrollments(ctx context.Context, workshopID string) ([]Enrollment, error)
}

// MeetingLinkGenerator creates meetings at the external provider.
type MeetingLinkGenerator interface {
	Create(ctx context.Context, request MeetingRequest) (Meeting, error)
}

// LinkNotifier tells attendees about link changes. Failures never fail the
// operation that triggered them.
type LinkNotifier interface {
	LinkIssued(ctx context.Context, notice LinkIssuedNotice) error
	LinksInvalidated(ctx context.Context, notice LinksInvalidatedNotice) error
}

// SessionLinkService gates meeting link generation for workshop sessions.
type SessionLinkService struct {
	workshops   WorkshopReader
	enrollments EnrollmentReader
	links       ledger.Store
	generator   MeetingLinkGenerator
	notifier    LinkNotifier
	resolver    *recurrence.Resolver
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionLinkService wires dependencies for link operations.
func NewSessionLinkService(workshops WorkshopReader, enrollments EnrollmentReader, links ledger.Store, generator MeetingLinkGenerator, resolver *recurrence.Resolver, now func() time.Time) *SessionLinkService {
	return NewSessionLinkServiceWithLogger(workshops, enrollments, links, generator, nil, resolver, now, nil)
}

// NewSessionLinkServiceWithLogger wires dependencies, an optional notifier, and a logger.
func NewSessionLinkServiceWithLogger(workshops WorkshopReader, enrollments EnrollmentReader, links ledger.Store, generator MeetingLinkGenerator, notifier LinkNotifier, resolver *recurrence.Resolver, now func() time.Time, logger *slog.Logger) *SessionLinkService {
	if resolver == nil {
		resolver = recurrence.NewResolver(time.UTC)
	}
	if now == nil {
		now = time.Now
	}
	return &SessionLinkService{
		workshops:   workshops,
		enrollments: enrollments,
		links:       links,
		generator:   generator,
		notifier:    notifier,
		resolver:    resolver,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SessionLinkService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionLinkService", operation, attrs...)
}

// sessionState is the shared evaluation behind RequestLink, PreviewLink, and ListSessions.
type sessionState struct {
	workshop Workshop
	preview  LinkPreview
	record   ledger.Record
}

// RequestLink returns the meeting link of a session, generating it when the
// window is open and no link exists yet. At most one link is ever committed
// per session; concurrent callers all receive the committed one.
func (s *SessionLinkService) RequestLink(ctx context.Context, params RequestLinkParams) (link SessionLink, err error) {
	if s == nil {
		err = fmt.Errorf("SessionLinkService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RequestLink",
		"workshop_id", params.WorkshopID,
		"day_index", params.DayIndex,
		"override", params.AllowOverride,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "link request failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("created", link.Created).InfoContext(ctx, "link request served")
	}()

	var state sessionState
	state, err = s.evaluate(ctx, params.WorkshopID, params.DayIndex)
	if err != nil {
		return
	}

	preview := state.preview
	switch preview.Status {
	case LinkStatusGenerated:
		link = sessionLinkFromRecord(state.record, false, s.resolver.Location())
		return
	case LinkStatusPending:
		if !params.AllowOverride {
			err = &WindowNotOpenError{WaitRemaining: preview.WaitRemaining, OpensAt: preview.OpensAt}
			return
		}
		// Only administrators may bypass the window.
		if !params.Principal.IsAdmin {
			err = ErrUnauthorized
			return
		}
		logger.WarnContext(ctx, "generation window bypassed", "opens_at", preview.OpensAt)
	}
	if s.generator == nil {
		err = fmt.Errorf("meeting link generator not configured")
		return
	}

	var attendees []string
	attendees, err = s.attendees(ctx, state.workshop)
	if err != nil {
		return
	}
	if len(attendees) == 0 {
		err = ErrNoAttendees
		return
	}

	var meeting Meeting
	meeting, err = s.generator.Create(ctx, MeetingRequest{
		WorkshopID: state.workshop.ID,
		DayIndex:   preview.DayIndex,
		Title:      fmt.Sprintf("%s (day %d)", state.workshop.Title, preview.DayIndex),
		Start:      preview.Start,
		Duration:   SessionDuration,
		Attendees:  attendees,
	})
	if err != nil {
		err = &GenerationError{Err: err}
		return
	}
	if strings.TrimSpace(meeting.Link) == "" {
		err = &GenerationError{Err: errors.New("provider returned an empty link")}
		return
	}

	record := ledger.Record{
		Link:         meeting.Link,
		ScheduledFor: preview.Start,
		GeneratedAt:  s.now(),
	}
	sessions := ledger.ForWorkshop(s.links, state.workshop.ID)
	if err = sessions.Put(ctx, preview.DayIndex, record); err != nil {
		if !errors.Is(err, ledger.ErrAlreadyExists) {
			err = mapLedgerError(err)
			return
		}

		// Another request committed first; its link wins and ours is discarded.
		var (
			winner ledger.Record
			ok     bool
		)
		winner, ok, err = sessions.Get(ctx, preview.DayIndex)
		if err != nil {
			return
		}
		if !ok {
			err = fmt.Errorf("ledger reported a conflict for day %d but holds no record", preview.DayIndex)
			return
		}
		logger.InfoContext(ctx, "lost commit race", "discarded_provider_id", meeting.ProviderID)
		link = sessionLinkFromRecord(winner, false, s.resolver.Location())
		return
	}

	record.WorkshopID = state.workshop.ID
	record.DayIndex = preview.DayIndex
	link = sessionLinkFromRecord(record, true, s.resolver.Location())

	if s.notifier != nil {
		if nErr := s.notifier.LinkIssued(ctx, LinkIssuedNotice{Workshop: state.workshop, Link: link, Attendees: attendees}); nErr != nil {
			logger.WarnContext(ctx, "link notification failed", "error", nErr)
		}
	}
	return
}

// PreviewLink evaluates a session without side effects.
func (s *SessionLinkService) PreviewLink(ctx context.Context, workshopID string, dayIndex int) (LinkPreview, error) {
	if s == nil {
		return LinkPreview{}, fmt.Errorf("SessionLinkService is nil")
	}
	state, err := s.evaluate(ctx, workshopID, dayIndex)
	if err != nil {
		s.loggerWith(ctx, "PreviewLink", "workshop_id", workshopID, "day_index", dayIndex).
			ErrorContext(ctx, "link preview failed", "error", err, "error_kind", ErrorKind(err))
		return LinkPreview{}, err
	}
	return state.preview, nil
}

// ListSessions evaluates every session of a workshop in day order.
func (s *SessionLinkService) ListSessions(ctx context.Context, workshopID string) ([]LinkPreview, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionLinkService is nil")
	}
	logger := s.loggerWith(ctx, "ListSessions", "workshop_id", workshopID)

	workshop, err := s.loadWorkshop(ctx, workshopID)
	if err != nil {
		logger.ErrorContext(ctx, "listing sessions failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	instants, err := s.resolver.ResolveAll(workshop.Schedule)
	if err != nil {
		logger.ErrorContext(ctx, "listing sessions failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	records, err := ledger.ForWorkshop(s.links, workshop.ID).All(ctx)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	byDay := make(map[int]ledger.Record, len(records))
	for _, record := range records {
		byDay[record.DayIndex] = record
	}

	now := s.now()
	previews := make([]LinkPreview, 0, len(instants))
	for _, instant := range instants {
		record, ok := byDay[instant.DayIndex]
		previews = append(previews, classify(workshop.ID, instant, record, ok, now))
	}
	return previews, nil
}

func (s *SessionLinkService) evaluate(ctx context.Context, workshopID string, dayIndex int) (sessionState, error) {
	workshop, err := s.loadWorkshop(ctx, workshopID)
	if err != nil {
		return sessionState{}, err
	}

	instant, err := s.resolver.Resolve(workshop.Schedule, dayIndex)
	if err != nil {
		return sessionState{}, err
	}

	record, ok, err := ledger.ForWorkshop(s.links, workshop.ID).Get(ctx, dayIndex)
	if err != nil {
		return sessionState{}, mapLedgerError(err)
	}

	return sessionState{
		workshop: workshop,
		preview:  classify(workshop.ID, instant, record, ok, s.now()),
		record:   record,
	}, nil
}

func (s *SessionLinkService) loadWorkshop(ctx context.Context, workshopID string) (Workshop, error) {
	if s.workshops == nil {
		return Workshop{}, fmt.Errorf("workshop repository not configured")
	}
	if strings.TrimSpace(workshopID) == "" {
		return Workshop{}, ErrNotFound
	}
	workshop, err := s.workshops.GetWorkshop(ctx, workshopID)
	if err != nil {
		return Workshop{}, mapWorkshopRepoError(err)
	}
	return workshop, nil
}

func (s *SessionLinkService) attendees(ctx context.Context, workshop Workshop) ([]string, error) {
	return collectAttendees(ctx, s.enrollments, workshop)
}

func classify(workshopID string, instant recurrence.SessionInstant, record ledger.Record, hasLink bool, now time.Time) LinkPreview {
	preview := LinkPreview{
		WorkshopID: workshopID,
		DayIndex:   instant.DayIndex,
		Start:      instant.Start,
	}
	if hasLink {
		preview.Status = LinkStatusGenerated
		preview.Link = record.Link
		preview.GeneratedAt = record.GeneratedAt.In(instant.Start.Location())
		return preview
	}

	decision := scheduler.Evaluate(instant.Start, now)
	preview.OpensAt = decision.OpensAt
	if decision.Allowed {
		preview.Status = LinkStatusEligible
		return preview
	}
	preview.Status = LinkStatusPending
	preview.WaitRemaining = decision.WaitRemaining
	return preview
}

// collectAttendees returns the confirmed students plus the mentor, deduplicated
// case-insensitively and sorted.
func collectAttendees(ctx context.Context, enrollments EnrollmentReader, workshop Workshop) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			return
		}
		seen[email] = struct{}{}
	}

	if enrollments != nil {
		list, err := enrollments.ListEnrollments(ctx, workshop.ID)
		if err != nil {
			return nil, mapWorkshopRepoError(err)
		}
		for _, enrollment := range list {
			if enrollment.PaymentStatus == PaymentConfirmed {
				add(enrollment.StudentEmail)
			}
		}
	}
	add(workshop.MentorEmail)

	attendees := make([]string, 0, len(seen))
	for email := range seen {
		attendees = append(attendees, email)
	}
	sort.Strings(attendees)
	return attendees, nil
}

func mapLedgerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrNotFound) {
		return ErrNotFound
	}
	return mapWorkshopRepoError(err)
}
