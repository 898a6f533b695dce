package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func TestResolver_Recurring(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(tokyo)

	t.Run("single weekly slot starting on its weekday", func(t *testing.T) {
		t.Parallel()

		schedule := Recurring{
			StartDate:    MustParseDate("2024-03-04"), // Monday
			Pattern:      []Slot{{Weekday: time.Monday, Time: MustParseTimeOfDay("10:00 AM")}},
			NumberOfDays: 4,
		}

		first, err := resolver.Resolve(schedule, 1)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, tokyo), first.Start)

		second, err := resolver.Resolve(schedule, 2)
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, second.Start.Sub(first.Start))
		assert.Equal(t, 2, second.DayIndex)
	})

	t.Run("cycle is ordered by first occurrence not by pattern order", func(t *testing.T) {
		t.Parallel()

		schedule := Recurring{
			StartDate: MustParseDate("2024-03-05"), // Tuesday
			Pattern: []Slot{
				{Weekday: time.Monday, Time: MustParseTimeOfDay("10AM")},
				{Weekday: time.Wednesday, Time: MustParseTimeOfDay("2PM")},
			},
			NumberOfDays: 5,
		}

		want := []time.Time{
			time.Date(2024, time.March, 6, 14, 0, 0, 0, tokyo),
			time.Date(2024, time.March, 11, 10, 0, 0, 0, tokyo),
			time.Date(2024, time.March, 13, 14, 0, 0, 0, tokyo),
			time.Date(2024, time.March, 18, 10, 0, 0, 0, tokyo),
			time.Date(2024, time.March, 20, 14, 0, 0, 0, tokyo),
		}

		all, err := resolver.ResolveAll(schedule)
		require.NoError(t, err)
		require.Len(t, all, len(want))
		for i, instant := range all {
			assert.Equal(t, i+1, instant.DayIndex)
			assert.Equal(t, want[i], instant.Start, "day %d", i+1)
		}
	})

	t.Run("same weekday slots are ordered by time", func(t *testing.T) {
		t.Parallel()

		schedule := Recurring{
			StartDate: MustParseDate("2024-03-04"),
			Pattern: []Slot{
				{Weekday: time.Monday, Time: MustParseTimeOfDay("15:00")},
				{Weekday: time.Monday, Time: MustParseTimeOfDay("9:00 AM")},
			},
			NumberOfDays: 2,
		}

		first, err := resolver.Resolve(schedule, 1)
		require.NoError(t, err)
		assert.Equal(t, 9, first.Start.Hour())

		second, err := resolver.Resolve(schedule, 2)
		require.NoError(t, err)
		assert.Equal(t, 15, second.Start.Hour())
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		schedule := Recurring{
			StartDate:    MustParseDate("2024-12-30"),
			Pattern:      []Slot{{Weekday: time.Friday, Time: MustParseTimeOfDay("6:30 PM")}},
			NumberOfDays: 10,
		}

		for day := 1; day <= schedule.NumberOfDays; day++ {
			a, errA := resolver.Resolve(schedule, day)
			b, errB := resolver.Resolve(schedule, day)
			require.NoError(t, errA)
			require.NoError(t, errB)
			assert.True(t, a.Start.Equal(b.Start))
		}
	})
}

func TestResolver_Custom(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(tokyo)
	schedule := NewCustom(
		Session{Date: MustParseDate("2024-05-20"), Time: MustParseTimeOfDay("9:00 AM")},
		Session{Date: MustParseDate("2024-05-02"), Time: MustParseTimeOfDay("1:30 PM")},
		Session{Date: MustParseDate("2024-06-11"), Time: MustParseTimeOfDay("18:45")},
	)

	want := []time.Time{
		time.Date(2024, time.May, 20, 9, 0, 0, 0, tokyo),
		time.Date(2024, time.May, 2, 13, 30, 0, 0, tokyo),
		time.Date(2024, time.June, 11, 18, 45, 0, 0, tokyo),
	}
	for i, expected := range want {
		instant, err := resolver.Resolve(schedule, i+1)
		require.NoError(t, err)
		assert.Equal(t, expected, instant.Start)
	}
}

func TestResolver_Errors(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(nil)
	recurring := Recurring{
		StartDate:    MustParseDate("2024-03-04"),
		Pattern:      []Slot{{Weekday: time.Monday, Time: MustParseTimeOfDay("10:00 AM")}},
		NumberOfDays: 3,
	}
	custom := NewCustom(Session{Date: MustParseDate("2024-03-04"), Time: MustParseTimeOfDay("10:00 AM")})

	tests := []struct {
		name     string
		schedule Schedule
		day      int
		want     error
	}{
		{name: "recurring day zero", schedule: recurring, day: 0, want: ErrOutOfRange},
		{name: "recurring past last day", schedule: recurring, day: 4, want: ErrOutOfRange},
		{name: "custom day zero", schedule: custom, day: 0, want: ErrOutOfRange},
		{name: "custom past last day", schedule: custom, day: 2, want: ErrOutOfRange},
		{name: "nil schedule", schedule: nil, day: 1, want: ErrMalformedSchedule},
		{name: "empty pattern", schedule: Recurring{StartDate: MustParseDate("2024-03-04"), NumberOfDays: 1}, day: 1, want: ErrMalformedSchedule},
		{name: "missing start date", schedule: Recurring{Pattern: recurring.Pattern, NumberOfDays: 1}, day: 1, want: ErrMalformedSchedule},
		{name: "custom length mismatch", schedule: Custom{NumberOfDays: 2, Sessions: custom.Sessions}, day: 1, want: ErrMalformedSchedule},
		{name: "zero days", schedule: Custom{}, day: 1, want: ErrMalformedSchedule},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := resolver.Resolve(tt.schedule, tt.day)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestResolver_DefaultsToUTC(t *testing.T) {
	t.Parallel()

	instant, err := NewResolver(nil).Resolve(NewCustom(Session{Date: MustParseDate("2024-01-01"), Time: TimeOfDay{Hour: 8}}), 1)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, instant.Start.Location())
}
