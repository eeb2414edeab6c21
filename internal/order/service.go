package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/common"
	"github.com/noah-isme/toko-bundles/internal/events"
	"github.com/noah-isme/toko-bundles/internal/lock"
	"github.com/noah-isme/toko-bundles/internal/money"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/submission"
)

// Resolver finds bundle definitions by container item or bundle code.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (bundle.Definition, error)
}

// Gate checks an order before it is finalized.
type Gate interface {
	Check(ctx context.Context, order submission.Order) (submission.Report, error)
}

// Locker serializes work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service manages the order lifecycle: drafting, bundle expansion and submission.
type Service struct {
	store     Store
	bundles   Resolver
	assembler bundle.Assembler
	gate      Gate
	locker    Locker
	lockTTL   time.Duration
	events    Emitter
	currency  string
	logger    zerolog.Logger
	now       func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Bundles   Resolver
	Assembler bundle.Assembler
	Gate      Gate
	Locker    Locker
	LockTTL   time.Duration
	Events    Emitter
	Currency  string
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// ItemInput describes a plain line to add.
type ItemInput struct {
	ItemCode string
	UOM      string
	Qty      decimal.Decimal
	Rate     decimal.Decimal
}

// BundleResult is the order after a bundle was added together with the
// reconciliation summary of the assembled lines.
type BundleResult struct {
	Order   Order          `json:"order"`
	Summary bundle.Summary `json:"summary"`
}

// SubmitResult is the finalized order and the validation report.
type SubmitResult struct {
	Order  Order             `json:"order"`
	Report submission.Report `json:"report"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("order: store is required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("order: submission gate is required")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "IDR"
	}
	return &Service{
		store:     cfg.Store,
		bundles:   cfg.Bundles,
		assembler: cfg.Assembler,
		gate:      cfg.Gate,
		locker:    cfg.Locker,
		lockTTL:   cfg.LockTTL,
		events:    cfg.Events,
		currency:  currency,
		logger:    logger,
		now:       now,
	}, nil
}

// Create opens a draft order for a customer.
func (s *Service) Create(ctx context.Context, customer, currency string) (Order, error) {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return Order{}, common.BadRequest("customer is required", nil)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.currency
	}
	o := Order{
		ID:         uuid.New(),
		Customer:   customer,
		Status:     StatusDraft,
		Currency:   currency,
		TaxTotal:   decimal.Zero,
		GrandTotal: decimal.Zero,
		Lines:      []Line{},
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	s.emit(ctx, events.TopicOrderCreated, o, map[string]any{"customer": o.Customer, "currency": o.Currency})
	return o, nil
}

// Get loads an order with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, s.storeError(id, err)
	}
	return o, nil
}

// AddItem appends a plain line to a draft order.
func (s *Service) AddItem(ctx context.Context, id uuid.UUID, in ItemInput) (Order, error) {
	if strings.TrimSpace(in.ItemCode) == "" {
		return Order{}, common.BadRequest("item code is required", nil)
	}
	if !in.Qty.IsPositive() {
		return Order{}, common.BadRequest("qty must be greater than zero", nil)
	}
	if in.Rate.IsNegative() {
		return Order{}, common.BadRequest("rate cannot be negative", nil)
	}
	line := PlainLine(in.ItemCode, in.UOM, in.Qty, in.Rate)
	o, err := s.store.UpdateOrder(ctx, id, func(o *Order) error {
		if !o.IsDraft() {
			return ErrNotDraft
		}
		o.Append(line)
		return nil
	})
	if err != nil {
		return Order{}, s.storeError(id, err)
	}
	return o, nil
}

// AddBundle resolves a bundle, expands it into parent and child lines and
// appends them to a draft order.
func (s *Service) AddBundle(ctx context.Context, id uuid.UUID, identifier string, qty int) (BundleResult, error) {
	if qty <= 0 {
		return BundleResult{}, common.BadRequest("qty must be a positive integer", bundle.ErrInvalidQuantity)
	}
	if s.bundles == nil {
		return BundleResult{}, common.Internal(errors.New("order: bundle resolver not configured"))
	}
	def, err := s.bundles.Resolve(ctx, identifier)
	if err != nil {
		return BundleResult{}, err
	}
	assembled, err := s.assembler.Assemble(def, qty)
	if err != nil {
		obs.IncCounterVec(obs.BundleAssembledTotal, "invalid")
		return BundleResult{}, common.NewAppError("BUNDLE_MISCONFIGURED", err.Error(), http.StatusUnprocessableEntity, err)
	}
	summary := bundle.Verify(assembled, qty, def.Price)
	logger := s.logger.With().Str("order_id", id.String()).Str("bundle", def.Code).Int("qty", qty).Logger()
	if summary.MatchWithinTolerance {
		obs.IncCounterVec(obs.BundleAssembledTotal, "ok")
	} else {
		obs.IncCounterVec(obs.BundleAssembledTotal, "mismatch")
		obs.IncCounter(obs.BundleReconciliationMismatch)
		logger.Warn().
			Str("expected", summary.ExpectedTotal.String()).
			Str("actual", summary.ActualTotal.String()).
			Str("difference", summary.Difference.String()).
			Msg("bundle lines do not reconcile with bundle price")
	}

	lines := BundleLines(def, assembled)
	o, err := s.store.UpdateOrder(ctx, id, func(o *Order) error {
		if !o.IsDraft() {
			return ErrNotDraft
		}
		o.Append(lines...)
		return nil
	})
	if err != nil {
		return BundleResult{}, s.storeError(id, err)
	}
	logger.Info().
		Int("main_lines", summary.Main.Count).
		Int("child_lines", summary.Child.Count).
		Str("total_discount", summary.TotalDiscount.String()).
		Str("actual_total", summary.ActualTotal.String()).
		Msg("bundle added to order")
	return BundleResult{Order: o, Summary: summary}, nil
}

// SetTax records an externally computed tax total on a draft order.
func (s *Service) SetTax(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (Order, error) {
	if amount.IsNegative() {
		return Order{}, common.BadRequest("tax amount cannot be negative", nil)
	}
	o, err := s.store.UpdateOrder(ctx, id, func(o *Order) error {
		if !o.IsDraft() {
			return ErrNotDraft
		}
		o.TaxTotal = money.Round(amount)
		o.Recompute()
		return nil
	})
	if err != nil {
		return Order{}, s.storeError(id, err)
	}
	return o, nil
}

// Submit finalizes a draft order. The bundle contract is checked inside the
// same transaction that flips the status so a violation leaves the order
// untouched. Submissions of one order are serialized by a lock.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (SubmitResult, error) {
	var result SubmitResult
	finalize := func(ctx context.Context) error {
		o, err := s.store.UpdateOrder(ctx, id, func(o *Order) error {
			if !o.IsDraft() {
				return ErrNotDraft
			}
			report, err := s.gate.Check(ctx, o.Submission())
			if err != nil {
				return err
			}
			result.Report = report
			at := s.now().UTC()
			o.Status = StatusSubmitted
			o.SubmittedAt = &at
			return nil
		})
		if err != nil {
			return err
		}
		result.Order = o
		return nil
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, lock.OrderKey(id.String()), s.lockTTL, finalize)
	} else {
		err = finalize(ctx)
	}
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return SubmitResult{}, common.Conflict("ORDER_LOCKED", "order is being submitted by another request", err)
		}
		return SubmitResult{}, s.storeError(id, err)
	}

	s.logger.Info().Str("order_id", id.String()).Str("grand_total", result.Order.GrandTotal.String()).Msg("order submitted")
	s.emit(ctx, events.TopicOrderSubmitted, result.Order, map[string]any{
		"customer":   result.Order.Customer,
		"currency":   result.Order.Currency,
		"taxTotal":   result.Order.TaxTotal,
		"grandTotal": result.Order.GrandTotal,
		"lines":      len(result.Order.Lines),
	})
	return result, nil
}

func (s *Service) emit(ctx context.Context, topic string, o Order, payload map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, o.ID.String(), payload); err != nil {
		s.logger.Error().Err(err).Str("order_id", o.ID.String()).Str("topic", topic).Msg("emit order event")
	}
}

func (s *Service) storeError(id uuid.UUID, err error) error {
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		return ContractError(verr)
	case errors.Is(err, ErrNotFound):
		return common.NotFound(fmt.Sprintf("order %s not found", id), err)
	case errors.Is(err, ErrNotDraft):
		return common.Conflict("ORDER_NOT_DRAFT", "order has already been submitted", err)
	case common.IsAppError(err):
		return err
	default:
		return fmt.Errorf("order %s: %w", id, err)
	}
}

// ContractError maps a bundle contract violation to its HTTP representation.
func ContractError(verr *submission.ValidationError) *common.AppError {
	details := map[string]any{"violation": verr.Violation}
	if verr.ItemCode != "" {
		details["itemCode"] = verr.ItemCode
	}
	if verr.Bundle != "" {
		details["bundle"] = verr.Bundle
	}
	if verr.Violation == submission.ViolationChildGroup {
		details["expected"] = verr.Expected.StringFixed(2)
		details["actual"] = verr.Actual.StringFixed(2)
	}
	if verr.Violation == submission.ViolationParent {
		details["discountPercentage"] = verr.Percentage.String()
		details["amount"] = verr.Actual.String()
	}
	return common.NewAppError("BUNDLE_CONTRACT_VIOLATION", verr.Error(), http.StatusUnprocessableEntity, verr).WithDetails(details)
}
