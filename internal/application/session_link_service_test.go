package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

type linkHarness struct {
	service     *SessionLinkService
	workshops   *workshopRepoStub
	enrollments *enrollmentRepoStub
	links       *ledger.MemoryStore
	generator   *generatorStub
	notifier    *notifierStub
}

func newLinkHarness(now time.Time, workshop Workshop) *linkHarness {
	h := &linkHarness{
		workshops: newWorkshopRepoStub(workshop),
		enrollments: &enrollmentRepoStub{enrollments: []Enrollment{
			{WorkshopID: workshop.ID, StudentEmail: "paid@example.com", PaymentStatus: PaymentConfirmed},
			{WorkshopID: workshop.ID, StudentEmail: "pending@example.com", PaymentStatus: PaymentPending},
			{WorkshopID: workshop.ID, StudentEmail: "MENTOR@example.com", PaymentStatus: PaymentConfirmed},
		}},
		links:     ledger.NewMemoryStore(),
		generator: &generatorStub{},
		notifier:  &notifierStub{},
	}
	h.service = NewSessionLinkServiceWithLogger(h.workshops, h.enrollments, h.links, h.generator, h.notifier,
		recurrence.NewResolver(time.UTC), fixedNow(now), nil)
	return h
}

func TestRequestLink_WindowNotOpen(t *testing.T) {
	h := newLinkHarness(referenceStart.Add(-4*time.Hour), testWorkshop())

	_, err := h.service.RequestLink(context.Background(), RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWindowNotOpen))

	var windowErr *WindowNotOpenError
	require.True(t, errors.As(err, &windowErr))
	assert.Equal(t, time.Hour, windowErr.WaitRemaining)
	assert.True(t, referenceStart.Add(-3*time.Hour).Equal(windowErr.OpensAt))
	assert.Zero(t, h.generator.calls.Load())
}

func TestRequestLink_GeneratesOnceAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())
	h.generator.requests = make(chan MeetingRequest, 1)

	first, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, referenceStart.Equal(first.Start))

	request := <-h.generator.requests
	assert.Equal(t, SessionDuration, request.Duration)
	assert.Equal(t, []string{"mentor@example.com", "paid@example.com"}, request.Attendees)
	assert.True(t, referenceStart.Equal(request.Start))

	second, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Link, second.Link)
	assert.EqualValues(t, 1, h.generator.calls.Load())

	require.Len(t, h.notifier.issued, 1)
	assert.Equal(t, first.Link, h.notifier.issued[0].Link.Link)
}

func TestRequestLink_ConcurrentCallersShareOneLink(t *testing.T) {
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())
	h.generator.delay = 5 * time.Millisecond

	const callers = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		links = make(map[string]int)
		errs  []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link, err := h.service.RequestLink(context.Background(), RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			links[link.Link]++
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, links, 1)

	records, err := h.links.ListLinks(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	_, ok := links[records[0].Link]
	assert.True(t, ok)
	assert.Len(t, h.notifier.issued, 1)
}

func TestRequestLink_Override(t *testing.T) {
	ctx := context.Background()
	h := newLinkHarness(referenceStart.Add(-4*time.Hour), testWorkshop())

	_, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1, AllowOverride: true})
	assert.True(t, errors.Is(err, ErrUnauthorized))

	link, err := h.service.RequestLink(ctx, RequestLinkParams{
		Principal:     Principal{UserID: "admin", IsAdmin: true},
		WorkshopID:    "ws-1",
		DayIndex:      1,
		AllowOverride: true,
	})
	require.NoError(t, err)
	assert.True(t, link.Created)

	// Once generated, an override from a non-admin is a plain read.
	existing, err := h.service.RequestLink(ctx, RequestLinkParams{
		Principal:     Principal{UserID: "student-1"},
		WorkshopID:    "ws-1",
		DayIndex:      1,
		AllowOverride: true,
	})
	require.NoError(t, err)
	assert.False(t, existing.Created)
	assert.Equal(t, link.Link, existing.Link)
	assert.EqualValues(t, 1, h.generator.calls.Load())
}

func TestRequestLink_OverrideInsideWindowNeedsNoAdmin(t *testing.T) {
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())

	link, err := h.service.RequestLink(context.Background(), RequestLinkParams{
		Principal:     Principal{UserID: "student-1"},
		WorkshopID:    "ws-1",
		DayIndex:      1,
		AllowOverride: true,
	})
	require.NoError(t, err)
	assert.True(t, link.Created)
}

// utcLedger reads records back in UTC the way the SQL and redis stores do.
type utcLedger struct {
	*ledger.MemoryStore
}

func (s utcLedger) GetLink(ctx context.Context, workshopID string, dayIndex int) (ledger.Record, error) {
	record, err := s.MemoryStore.GetLink(ctx, workshopID, dayIndex)
	record.ScheduledFor = record.ScheduledFor.UTC()
	record.GeneratedAt = record.GeneratedAt.UTC()
	return record, err
}

func TestRequestLink_ReportsTimesInOperatingZone(t *testing.T) {
	ctx := context.Background()
	zone := time.FixedZone("UTC+9", 9*60*60)
	start := time.Date(2024, time.March, 4, 10, 0, 0, 0, zone)

	h := newLinkHarness(start.Add(-time.Hour), testWorkshop())
	h.service = NewSessionLinkServiceWithLogger(h.workshops, h.enrollments, utcLedger{h.links}, h.generator, nil,
		recurrence.NewResolver(zone), fixedNow(start.Add(-time.Hour)), nil)

	first, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)
	require.False(t, second.Created)

	assert.True(t, start.Equal(second.Start))
	assert.Equal(t, first.Start.Format(time.RFC3339), second.Start.Format(time.RFC3339))
	assert.Equal(t, first.GeneratedAt.Format(time.RFC3339Nano), second.GeneratedAt.Format(time.RFC3339Nano))
	assert.Equal(t, "UTC+9", second.Start.Location().String())
}

func TestRequestLink_NoAttendees(t *testing.T) {
	workshop := testWorkshop()
	workshop.MentorEmail = ""
	h := newLinkHarness(referenceStart.Add(-time.Hour), workshop)
	h.enrollments.enrollments = nil

	_, err := h.service.RequestLink(context.Background(), RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	assert.True(t, errors.Is(err, ErrNoAttendees))
	assert.Zero(t, h.generator.calls.Load())
}

func TestRequestLink_GenerationFailureLeavesLedgerEmpty(t *testing.T) {
	ctx := context.Background()
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())
	cause := errors.New("provider unavailable")
	h.generator.err = cause

	_, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.True(t, errors.Is(err, cause))

	records, err := h.links.ListLinks(ctx, "ws-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	h.generator.err = nil
	link, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)
	assert.True(t, link.Created)
}

func TestRequestLink_NotifierFailureIsIgnored(t *testing.T) {
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())
	h.notifier.err = errors.New("smtp down")

	link, err := h.service.RequestLink(context.Background(), RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, link.Link)
}

func TestRequestLink_ResolutionErrors(t *testing.T) {
	ctx := context.Background()
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())

	for _, day := range []int{0, 5} {
		_, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: day})
		assert.True(t, errors.Is(err, ErrOutOfRange), "day %d: %v", day, err)
	}

	_, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "missing", DayIndex: 1})
	assert.True(t, errors.Is(err, ErrNotFound))

	broken := testWorkshop()
	broken.ID = "ws-broken"
	broken.Schedule = recurrence.Recurring{StartDate: recurrence.MustParseDate("2024-03-04"), NumberOfDays: 2}
	h.workshops.workshops[broken.ID] = broken
	_, err = h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: broken.ID, DayIndex: 1})
	assert.True(t, errors.Is(err, ErrMalformedSchedule))
	assert.Zero(t, h.generator.calls.Load())
}

func TestPreviewLink_Statuses(t *testing.T) {
	ctx := context.Background()
	h := newLinkHarness(referenceStart.Add(-4*time.Hour), testWorkshop())

	preview, err := h.service.PreviewLink(ctx, "ws-1", 1)
	require.NoError(t, err)
	assert.Equal(t, LinkStatusPending, preview.Status)
	assert.Equal(t, time.Hour, preview.WaitRemaining)

	h.service.now = fixedNow(referenceStart.Add(-3 * time.Hour))
	preview, err = h.service.PreviewLink(ctx, "ws-1", 1)
	require.NoError(t, err)
	assert.Equal(t, LinkStatusEligible, preview.Status)
	assert.Zero(t, h.generator.calls.Load())

	link, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)

	preview, err = h.service.PreviewLink(ctx, "ws-1", 1)
	require.NoError(t, err)
	assert.Equal(t, LinkStatusGenerated, preview.Status)
	assert.Equal(t, link.Link, preview.Link)

	_, err = h.service.PreviewLink(ctx, "ws-1", 9)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	h := newLinkHarness(referenceStart.Add(-time.Hour), testWorkshop())

	_, err := h.service.RequestLink(ctx, RequestLinkParams{WorkshopID: "ws-1", DayIndex: 1})
	require.NoError(t, err)

	sessions, err := h.service.ListSessions(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, sessions, 4)

	assert.Equal(t, LinkStatusGenerated, sessions[0].Status)
	for _, s := range sessions[1:] {
		assert.Equal(t, LinkStatusPending, s.Status)
	}
	assert.True(t, time.Date(2024, time.March, 6, 14, 0, 0, 0, time.UTC).Equal(sessions[1].Start))
	assert.True(t, time.Date(2024, time.March, 11, 10, 0, 0, 0, time.UTC).Equal(sessions[2].Start))
	assert.True(t, time.Date(2024, time.March, 13, 14, 0, 0, 0, time.UTC).Equal(sessions[3].Start))
}
