package catalog_test

import (
	"context"
	"sort"
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
)

type memStore struct {
	mu      sync.Mutex
	bundles map[string]bundle.Definition
	gets    int
	upserts int
}

func newMemStore(defs ...bundle.Definition) *memStore {
	s := &memStore{bundles: map[string]bundle.Definition{}}
	for _, d := range defs {
		s.bundles[d.Code] = d
	}
	return s
}

func (s *memStore) GetBundle(_ context.Context, code string) (bundle.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	def, ok := s.bundles[code]
	if !ok {
		return bundle.Definition{}, catalog.ErrNotFound
	}
	return def, nil
}

func (s *memStore) FindByContainer(_ context.Context, item string) (bundle.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range s.bundles {
		if def.ContainerItem == item {
			return def, nil
		}
	}
	return bundle.Definition{}, catalog.ErrNotFound
}

func (s *memStore) ListBundles(context.Context) ([]bundle.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bundle.Definition, 0, len(s.bundles))
	for _, def := range s.bundles {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *memStore) UpsertBundle(_ context.Context, def bundle.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.bundles[def.Code] = def
	return nil
}

type emitted struct {
	topic       string
	aggregateID string
	payload     any
}

type recordingEmitter struct {
	events []emitted
}

func (e *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	e.events = append(e.events, emitted{topic: topic, aggregateID: aggregateID, payload: payload})
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, OccurredAt: time.Now()}, nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func breakfast() bundle.Definition {
	return bundle.Definition{
		Code:          "BREAKFAST",
		Name:          "Breakfast set",
		ContainerItem: "BREAKFAST-BOX",
		ContainerUOM:  "Box",
		Price:         d("120"),
		Constituents: []bundle.Constituent{
			{ItemCode: "COFFEE", RegularRate: d("100"), Qty: d("1"), UOM: "Cup"},
			{ItemCode: "CROISSANT", RegularRate: d("50"), Qty: d("1"), UOM: "Nos"},
		},
	}
}

type fixture struct {
	store   *memStore
	emitter *recordingEmitter
	redis   *miniredis.Miniredis
	service *catalog.Service
}

func newFixture(t *testing.T, defs ...bundle.Definition) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore(defs...)
	emitter := &recordingEmitter{}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  store,
		Cache:  catalog.NewCache(rdb, time.Minute),
		Events: emitter,
	})
	require.NoError(t, err)
	return fixture{store: store, emitter: emitter, redis: mr, service: svc}
}
