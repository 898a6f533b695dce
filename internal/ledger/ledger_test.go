package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_PutRejectsSecondWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := ForWorkshop(NewMemoryStore(), "ws-1")
	at := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.Put(ctx, 1, Record{Link: "https://meet.example/a", ScheduledFor: at}))
	err := l.Put(ctx, 1, Record{Link: "https://meet.example/b", ScheduledFor: at})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	got, ok, err := l.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://meet.example/a", got.Link)
	assert.Equal(t, "ws-1", got.WorkshopID)
	assert.Equal(t, 1, got.DayIndex)
}

func TestLedger_GetMissing(t *testing.T) {
	t.Parallel()

	_, ok, err := ForWorkshop(NewMemoryStore(), "ws-1").Get(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_ClearIsScopedToWorkshop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	a := ForWorkshop(store, "ws-a")
	b := ForWorkshop(store, "ws-b")

	require.NoError(t, a.Put(ctx, 2, Record{Link: "a2"}))
	require.NoError(t, a.Put(ctx, 1, Record{Link: "a1"}))
	require.NoError(t, b.Put(ctx, 1, Record{Link: "b1"}))

	all, err := a.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].DayIndex)

	require.NoError(t, a.Clear(ctx))

	all, err = a.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, ok, err := b.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// A cleared day can be written again.
	require.NoError(t, a.Put(ctx, 1, Record{Link: "a1-new"}))
}

func TestLedger_PutRequiresLink(t *testing.T) {
	t.Parallel()

	err := ForWorkshop(NewMemoryStore(), "ws-1").Put(context.Background(), 1, Record{})
	assert.Error(t, err)
}

func TestMemoryStore_ConcurrentInsertHasOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := ForWorkshop(NewMemoryStore(), "ws-1")

	const writers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link := fmt.Sprintf("link-%d", i)
			if err := l.Put(ctx, 1, Record{Link: link}); err == nil {
				mu.Lock()
				winners = append(winners, link)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, ok, err := l.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, winners[0], got.Link)
}
