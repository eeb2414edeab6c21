package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/events"
	"github.com/noah-isme/toko-bundles/internal/lock"
	"github.com/noah-isme/toko-bundles/internal/order"
	"github.com/noah-isme/toko-bundles/internal/submission"
)

// memStore mimics the transactional contract of the Postgres store: fn works
// on a copy that is kept only when fn succeeds.
type memStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]order.Order
}

func newMemStore() *memStore {
	return &memStore{orders: map[uuid.UUID]order.Order{}}
}

func clone(o order.Order) order.Order {
	o.Lines = append([]order.Line(nil), o.Lines...)
	return o
}

func (s *memStore) CreateOrder(_ context.Context, o order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = clone(o)
	return nil
}

func (s *memStore) GetOrder(_ context.Context, id uuid.UUID) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return clone(o), nil
}

func (s *memStore) UpdateOrder(_ context.Context, id uuid.UUID, fn func(*order.Order) error) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	working := clone(o)
	if err := fn(&working); err != nil {
		return order.Order{}, err
	}
	s.orders[id] = clone(working)
	return working, nil
}

// tamper rewrites a stored line directly, as an out-of-band edit would.
func (s *memStore) tamper(id uuid.UUID, itemCode string, fn func(*order.Line)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	for i := range o.Lines {
		if o.Lines[i].ItemCode == itemCode {
			fn(&o.Lines[i])
		}
	}
	s.orders[id] = o
}

type bundleBook map[string]bundle.Definition

func (b bundleBook) Resolve(_ context.Context, identifier string) (bundle.Definition, error) {
	for _, def := range b {
		if def.ContainerItem == identifier {
			return def, nil
		}
	}
	if def, ok := b[identifier]; ok {
		return def, nil
	}
	return bundle.Definition{}, catalog.ErrNotFound
}

func (b bundleBook) BundlePrice(ctx context.Context, code string) (decimal.Decimal, error) {
	def, ok := b[code]
	if !ok {
		return decimal.Zero, catalog.ErrNotFound
	}
	return def.Price, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	topics []string
}

func (e *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "expected %s, got %s", want, got.String())
}

func breakfast() bundle.Definition {
	return bundle.Definition{
		Code:          "BREAKFAST",
		ContainerItem: "BREAKFAST-BOX",
		ContainerUOM:  "Box",
		Price:         d("120"),
		Constituents: []bundle.Constituent{
			{ItemCode: "COFFEE", RegularRate: d("100"), Qty: d("1"), UOM: "Cup"},
			{ItemCode: "CROISSANT", RegularRate: d("50"), Qty: d("1"), UOM: "Nos"},
		},
	}
}

func mystery() bundle.Definition {
	return bundle.Definition{Code: "MYSTERY", ContainerItem: "MYSTERY-BOX", Price: d("25")}
}

type fixture struct {
	store   *memStore
	emitter *recordingEmitter
	service *order.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	book := bundleBook{"BREAKFAST": breakfast(), "MYSTERY": mystery()}
	store := newMemStore()
	emitter := &recordingEmitter{}
	svc, err := order.NewService(order.ServiceConfig{
		Store:    store,
		Bundles:  book,
		Gate:     &submission.Validator{Catalog: book},
		Locker:   lock.Locker{R: rdb, RetryBackoff: time.Millisecond, MaxWait: time.Second},
		LockTTL:  5 * time.Second,
		Events:   emitter,
		Currency: "idr",
		Now:      func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return fixture{store: store, emitter: emitter, service: svc}
}
