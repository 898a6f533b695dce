package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/workshop-scheduler/internal/ledger"
)

const keyPrefix = "workshopd"

// LinksKey is the hash holding one workshop's records, keyed by day index.
func LinksKey(workshopID string) string {
	return fmt.Sprintf("%s:workshop:%s:links", keyPrefix, workshopID)
}

// LedgerStore implements ledger.Store with one hash per workshop. HSETNX makes
// InsertLink an atomic insert-if-absent across every client of the server.
type LedgerStore struct {
	client redis.UniversalClient
}

var _ ledger.Store = (*LedgerStore)(nil)

// NewLedgerStore wraps client.
func NewLedgerStore(client redis.UniversalClient) *LedgerStore {
	return &LedgerStore{client: client}
}

type storedRecord struct {
	Link         string    `json:"link"`
	ScheduledFor time.Time `json:"scheduled_for"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// GetLink returns the record of one session.
func (s *LedgerStore) GetLink(ctx context.Context, workshopID string, dayIndex int) (ledger.Record, error) {
	data, err := s.client.HGet(ctx, LinksKey(workshopID), strconv.Itoa(dayIndex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger.Record{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to get link: %w", err)
	}
	return decodeRecord(workshopID, dayIndex, data)
}

// InsertLink commits record unless its session already has one.
func (s *LedgerStore) InsertLink(ctx context.Context, record ledger.Record) error {
	data, err := json.Marshal(storedRecord{
		Link:         record.Link,
		ScheduledFor: record.ScheduledFor.UTC(),
		GeneratedAt:  record.GeneratedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	set, err := s.client.HSetNX(ctx, LinksKey(record.WorkshopID), strconv.Itoa(record.DayIndex), data).Result()
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	if !set {
		return ledger.ErrAlreadyExists
	}
	return nil
}

// ListLinks returns every record of a workshop ordered by day.
func (s *LedgerStore) ListLinks(ctx context.Context, workshopID string) ([]ledger.Record, error) {
	fields, err := s.client.HGetAll(ctx, LinksKey(workshopID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	records := make([]ledger.Record, 0, len(fields))
	for field, value := range fields {
		day, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid day field %q: %w", field, err)
		}
		record, err := decodeRecord(workshopID, day, []byte(value))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DayIndex < records[j].DayIndex })
	return records, nil
}

// ClearLinks drops the workshop's hash.
func (s *LedgerStore) ClearLinks(ctx context.Context, workshopID string) error {
	if err := s.client.Del(ctx, LinksKey(workshopID)).Err(); err != nil {
		return fmt.Errorf("failed to clear links: %w", err)
	}
	return nil
}

func decodeRecord(workshopID string, dayIndex int, data []byte) (ledger.Record, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return ledger.Record{}, fmt.Errorf("failed to unmarshal link: %w", err)
	}
	return ledger.Record{
		WorkshopID:   workshopID,
		DayIndex:     dayIndex,
		Link:         stored.Link,
		ScheduledFor: stored.ScheduledFor,
		GeneratedAt:  stored.GeneratedAt,
	}, nil
}
