package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStoreUnavailable indicates the event store dependency is not configured.
	ErrStoreUnavailable = errors.New("events: store unavailable")
	// ErrNotFound is returned when an event id is unknown.
	ErrNotFound = errors.New("events: event not found")
)

// PGStore persists domain events in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// InsertDomainEvent implements EventStore.
func (s *PGStore) InsertDomainEvent(ctx context.Context, ev Event) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)`, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	return err
}

// GetDomainEvent loads an event by id.
func (s *PGStore) GetDomainEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	if s == nil || s.pool == nil {
		return Event{}, ErrStoreUnavailable
	}
	var (
		ev      Event
		payload []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, topic, aggregate_id, payload, occurred_at FROM domain_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	ev.Payload = payload
	return ev, nil
}

// MarkPublished records the delivery time of an event.
func (s *PGStore) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `UPDATE domain_events SET published_at = $2 WHERE id = $1 AND published_at IS NULL`, id, at)
	return err
}
