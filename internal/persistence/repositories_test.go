package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/recurrence"
	"github.com/example/workshop-scheduler/internal/testfixtures"
)

func TestWorkshopRepository(t *testing.T) {
	t.Parallel()

	for _, backend := range testfixtures.Backends(t) {
		backend := backend
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := backend.Storage

			workshop := testfixtures.NewWorkshopFixture(testfixtures.WithWorkshopID("ws-crud")).Persistence()
			require.NoError(t, store.CreateWorkshop(ctx, workshop))

			err := store.CreateWorkshop(ctx, workshop)
			assert.ErrorIs(t, err, persistence.ErrDuplicate)

			fetched, err := store.GetWorkshop(ctx, "ws-crud")
			require.NoError(t, err)
			assert.Equal(t, workshop.Title, fetched.Title)
			assert.Equal(t, workshop.MentorEmail, fetched.MentorEmail)
			assert.True(t, workshop.CreatedAt.Equal(fetched.CreatedAt))

			schedule, err := fetched.Schedule()
			require.NoError(t, err)
			assert.Equal(t, testfixtures.DefaultRecurring(), schedule)

			custom := testfixtures.NewWorkshopFixture(
				testfixtures.WithWorkshopID("ws-crud"),
				testfixtures.WithCustomSessions("2024-03-10 09:00", "2024-03-05 18:30"),
			).Persistence()
			custom.UpdatedAt = testfixtures.ReferenceTime()
			require.NoError(t, store.UpdateWorkshop(ctx, custom))

			fetched, err = store.GetWorkshop(ctx, "ws-crud")
			require.NoError(t, err)
			assert.Equal(t, persistence.ScheduleTypeCustom, fetched.ScheduleType)
			assert.Empty(t, fetched.Slots)
			schedule, err = fetched.Schedule()
			require.NoError(t, err)
			customSchedule, ok := schedule.(recurrence.Custom)
			require.True(t, ok)
			require.Len(t, customSchedule.Sessions, 2)
			assert.Equal(t, "2024-03-10", customSchedule.Sessions[0].Date.String(), "sessions keep author order")

			require.NoError(t, store.DeleteWorkshop(ctx, "ws-crud"))
			_, err = store.GetWorkshop(ctx, "ws-crud")
			assert.ErrorIs(t, err, persistence.ErrNotFound)
			assert.ErrorIs(t, store.DeleteWorkshop(ctx, "ws-crud"), persistence.ErrNotFound)
			assert.ErrorIs(t, store.UpdateWorkshop(ctx, custom), persistence.ErrNotFound)
		})
	}
}

func TestWorkshopRepositoryListOrder(t *testing.T) {
	t.Parallel()

	for _, backend := range testfixtures.Backends(t) {
		backend := backend
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			base := testfixtures.ReferenceTime()

			late := testfixtures.NewWorkshopFixture(testfixtures.WithWorkshopID("b"), testfixtures.WithWorkshopTimestamps(base, base)).Persistence()
			early := testfixtures.NewWorkshopFixture(testfixtures.WithWorkshopID("a"), testfixtures.WithWorkshopTimestamps(base.Add(-time.Hour), base)).Persistence()
			require.NoError(t, backend.Storage.CreateWorkshop(ctx, late))
			require.NoError(t, backend.Storage.CreateWorkshop(ctx, early))

			workshops, err := backend.Storage.ListWorkshops(ctx)
			require.NoError(t, err)
			require.Len(t, workshops, 2)
			assert.Equal(t, "a", workshops[0].ID)
			assert.Equal(t, "b", workshops[1].ID)
		})
	}
}

func TestEnrollmentRepository(t *testing.T) {
	t.Parallel()

	for _, backend := range testfixtures.Backends(t) {
		backend := backend
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := backend.Storage

			workshop := testfixtures.NewWorkshopFixture().Persistence()
			require.NoError(t, store.CreateWorkshop(ctx, workshop))

			enrollment := testfixtures.NewEnrollmentFixture(workshop.ID,
				testfixtures.WithStudentEmail("Ada@Example.com"),
				testfixtures.WithPaymentStatus(persistence.PaymentPending),
			).Persistence()
			require.NoError(t, store.UpsertEnrollment(ctx, enrollment))

			fetched, err := store.GetEnrollment(ctx, workshop.ID, "ada@example.com")
			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", fetched.StudentEmail)
			assert.Equal(t, persistence.PaymentPending, fetched.PaymentStatus)

			update := enrollment
			update.PaymentStatus = persistence.PaymentConfirmed
			update.EnrolledAt = enrollment.EnrolledAt.Add(time.Hour)
			update.UpdatedAt = enrollment.UpdatedAt.Add(time.Hour)
			require.NoError(t, store.UpsertEnrollment(ctx, update))

			fetched, err = store.GetEnrollment(ctx, workshop.ID, "ADA@example.com")
			require.NoError(t, err)
			assert.Equal(t, persistence.PaymentConfirmed, fetched.PaymentStatus)
			assert.True(t, enrollment.EnrolledAt.Equal(fetched.EnrolledAt), "enrolled_at is preserved")

			other := testfixtures.NewEnrollmentFixture(workshop.ID, testfixtures.WithStudentEmail("bob@example.com")).Persistence()
			require.NoError(t, store.UpsertEnrollment(ctx, other))
			list, err := store.ListEnrollments(ctx, workshop.ID)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ada@example.com", list[0].StudentEmail)

			_, err = store.GetEnrollment(ctx, workshop.ID, "nobody@example.com")
			assert.ErrorIs(t, err, persistence.ErrNotFound)

			orphan := testfixtures.NewEnrollmentFixture("missing").Persistence()
			assert.ErrorIs(t, store.UpsertEnrollment(ctx, orphan), persistence.ErrForeignKeyViolation)
		})
	}
}

func TestLinkLedgerStore(t *testing.T) {
	t.Parallel()

	for _, backend := range testfixtures.Backends(t) {
		backend := backend
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := backend.Storage

			workshop := testfixtures.NewWorkshopFixture().Persistence()
			require.NoError(t, store.CreateWorkshop(ctx, workshop))

			start := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
			first := testfixtures.NewLinkRecord(workshop.ID, 1, start)
			require.NoError(t, store.InsertLink(ctx, first))

			second := first
			second.Link = "https://meet.example.com/other"
			assert.ErrorIs(t, store.InsertLink(ctx, second), ledger.ErrAlreadyExists)

			got, err := store.GetLink(ctx, workshop.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, first.Link, got.Link)
			assert.True(t, start.Equal(got.ScheduledFor))

			_, err = store.GetLink(ctx, workshop.ID, 2)
			assert.ErrorIs(t, err, ledger.ErrNotFound)

			require.NoError(t, store.InsertLink(ctx, testfixtures.NewLinkRecord(workshop.ID, 3, start.Add(48*time.Hour))))
			records, err := store.ListLinks(ctx, workshop.ID)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, 1, records[0].DayIndex)
			assert.Equal(t, 3, records[1].DayIndex)

			require.NoError(t, store.ClearLinks(ctx, workshop.ID))
			records, err = store.ListLinks(ctx, workshop.ID)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestLinkLedgerStoreConcurrentInsert(t *testing.T) {
	t.Parallel()

	for _, backend := range testfixtures.Backends(t) {
		backend := backend
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := backend.Storage

			workshop := testfixtures.NewWorkshopFixture().Persistence()
			require.NoError(t, store.CreateWorkshop(ctx, workshop))

			const writers = 16
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				winners  int
				unwanted []error
			)
			start := time.Date(2024, time.March, 6, 14, 0, 0, 0, time.UTC)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := store.InsertLink(ctx, testfixtures.NewLinkRecord(workshop.ID, 2, start))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						winners++
					case errors.Is(err, ledger.ErrAlreadyExists):
					default:
						unwanted = append(unwanted, err)
					}
				}()
			}
			wg.Wait()

			assert.Empty(t, unwanted)
			assert.Equal(t, 1, winners)
		})
	}
}

func TestDeleteWorkshopCascades(t *testing.T) {
	t.Parallel()

	for _, backend := range testfixtures.Backends(t) {
		backend := backend
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := backend.Storage

			workshop := testfixtures.NewWorkshopFixture().Persistence()
			require.NoError(t, store.CreateWorkshop(ctx, workshop))
			require.NoError(t, store.UpsertEnrollment(ctx, testfixtures.NewEnrollmentFixture(workshop.ID).Persistence()))
			require.NoError(t, store.InsertLink(ctx, testfixtures.NewLinkRecord(workshop.ID, 1, testfixtures.ReferenceTime())))

			require.NoError(t, store.DeleteWorkshop(ctx, workshop.ID))

			enrollments, err := store.ListEnrollments(ctx, workshop.ID)
			require.NoError(t, err)
			assert.Empty(t, enrollments)
			records, err := store.ListLinks(ctx, workshop.ID)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestWorkshopScheduleRoundTrip(t *testing.T) {
	t.Parallel()

	var w persistence.Workshop
	w.SetSchedule(recurrence.NewCustom(recurrence.Session{
		Date: recurrence.MustParseDate("2024-03-05"),
		Time: recurrence.MustParseTimeOfDay("3:00 PM"),
	}))
	assert.Equal(t, persistence.ScheduleTypeCustom, w.ScheduleType)
	require.Len(t, w.Sessions, 1)
	assert.Equal(t, 1, w.Sessions[0].DayIndex)
	assert.Equal(t, "15:00", w.Sessions[0].TimeOfDay)

	w.ScheduleType = "weekly"
	_, err := w.Schedule()
	assert.ErrorIs(t, err, recurrence.ErrMalformedSchedule)

	w.ScheduleType = persistence.ScheduleTypeCustom
	w.Sessions[0].Date = "not-a-date"
	_, err = w.Schedule()
	assert.ErrorIs(t, err, recurrence.ErrMalformedSchedule)
}
