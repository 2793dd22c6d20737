package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

// DefaultSearchLogCapacity bounds the records kept by NewSearchLog.
const DefaultSearchLogCapacity = 10000

// SearchLog is an in-memory SearchHistorySink. It keeps the most recent
// records in a ring; once full, each new search evicts the oldest one and a
// click on an evicted record is NotFound.
type SearchLog struct {
	mu       sync.Mutex
	records  []domain.SearchHistory
	capacity int
	next     int
	byID     map[string]int
	now      func() time.Time
}

// NewSearchLog creates an empty SearchLog holding DefaultSearchLogCapacity records.
func NewSearchLog() *SearchLog {
	return NewSearchLogWithCapacity(DefaultSearchLogCapacity)
}

// NewSearchLogWithCapacity creates an empty SearchLog holding at most capacity
// records. A non-positive capacity falls back to the default.
func NewSearchLogWithCapacity(capacity int) *SearchLog {
	if capacity <= 0 {
		capacity = DefaultSearchLogCapacity
	}
	return &SearchLog{capacity: capacity, byID: make(map[string]int), now: time.Now}
}

// Len reports how many records are retained.
func (l *SearchLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// RecordSearch stores a new unclicked record, evicting the oldest when full.
func (l *SearchLog) RecordSearch(_ context.Context, query string, resultCount int, userID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := domain.SearchHistory{
		ID:          uuid.New().String(),
		Query:       query,
		ResultCount: resultCount,
		CreatedAt:   l.now().UTC(),
	}
	if userID != "" {
		rec.UserID = &userID
	}

	if len(l.records) < l.capacity {
		l.records = append(l.records, rec)
	} else {
		delete(l.byID, l.records[l.next].ID)
		l.records[l.next] = rec
	}
	l.byID[rec.ID] = l.next
	l.next = (l.next + 1) % l.capacity
	return rec.ID, nil
}

// RecordClick sets the clicked slug once.
func (l *SearchLog) RecordClick(_ context.Context, recordID, slug string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[recordID]
	if !ok {
		return apperrors.NotFound("search record", recordID)
	}
	if l.records[i].ClickedSlug != nil {
		return apperrors.Conflict("click already recorded for search " + recordID)
	}
	l.records[i].ClickedSlug = &slug
	return nil
}

// LatestUnclicked scans newest first; the last stored record wins ties.
func (l *SearchLog) LatestUnclicked(_ context.Context, query, userID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	want := scoring.Normalize(query)
	for n := 1; n <= len(l.records); n++ {
		rec := l.records[(l.next-n+len(l.records))%len(l.records)]
		if rec.ClickedSlug != nil || scoring.Normalize(rec.Query) != want {
			continue
		}
		if (rec.UserID == nil && userID == "") || (rec.UserID != nil && *rec.UserID == userID) {
			return rec.ID, nil
		}
	}
	return "", apperrors.NotFound("unclicked search", query)
}

// Get returns a copy of the record with id.
func (l *SearchLog) Get(id string) (domain.SearchHistory, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[id]
	if !ok {
		return domain.SearchHistory{}, false
	}
	return l.records[i], true
}
