package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/common"
	"github.com/noah-isme/toko-bundles/internal/events"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service orchestrates bundle lookups, caching and definition updates.
type Service struct {
	store     Store
	cache     *Cache
	events    Emitter
	assembler bundle.Assembler
	logger    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Cache     *Cache
	Events    Emitter
	Assembler bundle.Assembler
	Logger    *zerolog.Logger
}

// Quote is a priced preview of a bundle at a quantity.
type Quote struct {
	Bundle  bundle.Definition `json:"bundle"`
	Qty     int               `json:"qty"`
	Lines   []bundle.Line     `json:"lines"`
	Summary bundle.Summary    `json:"summary"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Service{
		store:     cfg.Store,
		cache:     cfg.Cache,
		events:    cfg.Events,
		assembler: cfg.Assembler,
		logger:    logger,
	}, nil
}

// Get returns the active bundle with the given code.
func (s *Service) Get(ctx context.Context, code string) (bundle.Definition, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return bundle.Definition{}, common.BadRequest("bundle code is required", nil)
	}
	if cached, ok, err := s.cache.Bundle(ctx, code); ok {
		return cached, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Str("bundle", code).Msg("bundle cache read failed")
	}
	def, err := s.store.GetBundle(ctx, code)
	if err != nil {
		return bundle.Definition{}, s.lookupError(code, err)
	}
	if err := s.cache.StoreBundle(ctx, def); err != nil {
		s.logger.Warn().Err(err).Str("bundle", code).Msg("bundle cache write failed")
	}
	return def, nil
}

// Resolve finds a bundle by the item a cashier scanned: the container item
// first, then the bundle code itself.
func (s *Service) Resolve(ctx context.Context, identifier string) (bundle.Definition, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return bundle.Definition{}, common.BadRequest("bundle identifier is required", nil)
	}
	def, err := s.store.FindByContainer(ctx, identifier)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return bundle.Definition{}, fmt.Errorf("find bundle by container %s: %w", identifier, err)
	}
	return s.Get(ctx, identifier)
}

// List returns all active bundles ordered by code.
func (s *Service) List(ctx context.Context) ([]bundle.Definition, error) {
	defs, err := s.store.ListBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	return defs, nil
}

// Put validates and stores a definition, invalidates its cache entry and
// announces the change. It returns configuration warnings.
func (s *Service) Put(ctx context.Context, def bundle.Definition) ([]string, error) {
	def.Code = strings.TrimSpace(def.Code)
	def.ContainerItem = strings.TrimSpace(def.ContainerItem)
	for i := range def.Constituents {
		def.Constituents[i].ItemCode = strings.TrimSpace(def.Constituents[i].ItemCode)
	}
	warnings, err := CheckConfiguration(def)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return warnings, common.NewAppError("BUNDLE_MISCONFIGURED", "bundle configuration is invalid", http.StatusUnprocessableEntity, err).
				WithDetails(map[string]any{"problems": cfgErr.Problems})
		}
		return warnings, err
	}
	if err := s.store.UpsertBundle(ctx, def); err != nil {
		return warnings, fmt.Errorf("store bundle %s: %w", def.Code, err)
	}
	if err := s.cache.Invalidate(ctx, def.Code); err != nil {
		s.logger.Warn().Err(err).Str("bundle", def.Code).Msg("bundle cache invalidation failed")
	}
	if s.events != nil {
		payload := map[string]any{"code": def.Code, "price": def.Price, "constituents": len(def.Constituents)}
		if _, err := s.events.Emit(ctx, events.TopicBundleUpdated, def.Code, payload); err != nil {
			s.logger.Error().Err(err).Str("bundle", def.Code).Msg("emit bundle.updated")
		}
	}
	s.logger.Info().Str("bundle", def.Code).Strs("warnings", warnings).Msg("bundle stored")
	return warnings, nil
}

// BundlePrice returns the configured price of a bundle.
func (s *Service) BundlePrice(ctx context.Context, code string) (decimal.Decimal, error) {
	def, err := s.Get(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	return def.Price, nil
}

// Quote assembles a bundle without persisting anything and reports how the
// lines reconcile with the bundle price.
func (s *Service) Quote(ctx context.Context, identifier string, qty int) (Quote, error) {
	if qty <= 0 {
		return Quote{}, common.BadRequest("qty must be a positive integer", bundle.ErrInvalidQuantity)
	}
	def, err := s.Resolve(ctx, identifier)
	if err != nil {
		return Quote{}, err
	}
	lines, err := s.assembler.Assemble(def, qty)
	if err != nil {
		return Quote{}, common.NewAppError("BUNDLE_MISCONFIGURED", err.Error(), http.StatusUnprocessableEntity, err)
	}
	return Quote{Bundle: def, Qty: qty, Lines: lines, Summary: bundle.Verify(lines, qty, def.Price)}, nil
}

func (s *Service) lookupError(code string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return common.NotFound(fmt.Sprintf("bundle %s not found", code), err)
	}
	return fmt.Errorf("get bundle %s: %w", code, err)
}
