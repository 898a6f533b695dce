// Package ledger records which workshop sessions already have a meeting link.
//
// A Store holds the records of every workshop and guarantees that at most one
// record exists per (workshop, day); Ledger is the per-workshop view used by
// the link service.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyExists is returned when a record for the session was committed first by another writer.
	ErrAlreadyExists = errors.New("ledger: link already exists")
	// ErrNotFound is returned when no record exists for the session.
	ErrNotFound = errors.New("ledger: link not found")
)

// Record is an issued meeting link. Records are immutable once written.
type Record struct {
	WorkshopID   string
	DayIndex     int
	Link         string
	ScheduledFor time.Time
	GeneratedAt  time.Time
}

// Store persists ledger records. InsertLink must be an atomic insert-if-absent
// that returns ErrAlreadyExists when the session already has a record.
type Store interface {
	GetLink(ctx context.Context, workshopID string, dayIndex int) (Record, error)
	InsertLink(ctx context.Context, record Record) error
	ListLinks(ctx context.Context, workshopID string) ([]Record, error)
	ClearLinks(ctx context.Context, workshopID string) error
}

// Ledger is the dayIndex -> Record map of a single workshop.
type Ledger struct {
	store      Store
	workshopID string
}

// ForWorkshop returns the ledger view of one workshop.
func ForWorkshop(store Store, workshopID string) *Ledger {
	return &Ledger{store: store, workshopID: workshopID}
}

// Get returns the record for dayIndex and whether it exists.
func (l *Ledger) Get(ctx context.Context, dayIndex int) (Record, bool, error) {
	if l == nil || l.store == nil {
		return Record{}, false, fmt.Errorf("ledger store not configured")
	}
	record, err := l.store.GetLink(ctx, l.workshopID, dayIndex)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// Put commits record for dayIndex. A second Put for the same day fails with
// ErrAlreadyExists and leaves the first record in place.
func (l *Ledger) Put(ctx context.Context, dayIndex int, record Record) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger store not configured")
	}
	if record.Link == "" {
		return fmt.Errorf("ledger: record for day %d has no link", dayIndex)
	}
	record.WorkshopID = l.workshopID
	record.DayIndex = dayIndex
	return l.store.InsertLink(ctx, record)
}

// All returns every record of the workshop ordered by day.
func (l *Ledger) All(ctx context.Context) ([]Record, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("ledger store not configured")
	}
	return l.store.ListLinks(ctx, l.workshopID)
}

// Clear drops every record of the workshop.
func (l *Ledger) Clear(ctx context.Context) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger store not configured")
	}
	return l.store.ClearLinks(ctx, l.workshopID)
}
