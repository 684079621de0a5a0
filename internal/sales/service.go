package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/platform/feed"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

const idempotencyModule = "sales"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Create(ctx context.Context, o Order) error
	Update(ctx context.Context, o Order) error
	Delete(ctx context.Context, id string) error
}

// StockPort deducts fulfilled items from warehouse stock.
type StockPort interface {
	Deduct(ctx context.Context, lines []inventory.DeductionLine) (inventory.DeductionResult, error)
}

// IdempotencyPort claims and releases one-shot operation keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Publisher announces record changes.
type Publisher interface {
	Publish(ctx context.Context, collection string) error
}

// Recorder receives fulfillment metrics.
type Recorder interface {
	ObserveDeduction(applied, skipped int)
	ObserveDuplicateDeduction()
}

// Service manages orders and drives stock deduction on fulfillment.
type Service struct {
	repo    RepositoryPort
	stock   StockPort
	idem    IdempotencyPort
	feed    Publisher
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a sales service. idem, feed and metrics may be nil.
func NewService(repo RepositoryPort, stock StockPort, idem IdempotencyPort, feed Publisher, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		stock:   stock,
		idem:    idem,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DeductionKey is the idempotency key guarding an order's stock deduction.
func DeductionKey(orderID string) string {
	return "sales:deduct:" + orderID
}

// Create stores a new order. Orders created as Completed are fulfilled
// before the order itself is written.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	status := input.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusCompleted {
		return Order{}, fmt.Errorf("%w: orders start as %s or %s", ErrInvalidStatus, StatusPending, StatusCompleted)
	}
	if input.VATRate < 0 {
		return Order{}, fmt.Errorf("sales: vat rate must be >= 0: %w", shared.ErrValidation)
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return Order{}, err
	}
	now := s.now()
	order := Order{
		ID:        uuid.NewString(),
		Customer:  strings.TrimSpace(input.Customer),
		Date:      input.Date,
		Items:     items,
		VATRate:   input.VATRate,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.Date.IsZero() {
		order.Date = now
	}
	order.ApplyTotals()

	if PlanTransition("", status, false) == StockDeduct {
		if err := s.fulfill(ctx, &order); err != nil {
			return Order{}, err
		}
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if order.Deducted() {
			s.logger.Error("order not stored after stock deduction",
				slog.String("order_id", order.ID), slog.Any("error", err))
		}
		return Order{}, fmt.Errorf("sales: create order: %w", err)
	}
	s.publish(ctx)
	s.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)),
		slog.Float64("final_price", order.FinalPrice))
	return order, nil
}

// UpdateStatus moves an order to status, deducting stock on its first
// entry into Completed.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	return s.Update(ctx, id, UpdateInput{Status: &status})
}

// Update edits an order. Item and price edits never touch stock; a status
// change goes through PlanTransition.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if input.Customer != nil {
		order.Customer = strings.TrimSpace(*input.Customer)
	}
	if input.Date != nil {
		order.Date = *input.Date
	}
	if input.VATRate != nil {
		if *input.VATRate < 0 {
			return Order{}, fmt.Errorf("sales: vat rate must be >= 0: %w", shared.ErrValidation)
		}
		order.VATRate = *input.VATRate
	}
	if input.Items != nil {
		items, err := buildItems(*input.Items)
		if err != nil {
			return Order{}, err
		}
		order.Items = items
	}
	order.ApplyTotals()

	if input.Status != nil {
		to, err := ParseStatus(string(*input.Status))
		if err != nil {
			return Order{}, err
		}
		effect := PlanTransition(order.Status, to, order.Deducted())
		s.logger.Debug("order transition",
			slog.String("order_id", order.ID),
			slog.String("from", string(order.Status)),
			slog.String("to", string(to)),
			slog.String("stock", effect.String()))
		if effect == StockDeduct {
			if err := s.fulfill(ctx, &order); err != nil {
				return Order{}, err
			}
		}
		order.Status = to
	}
	order.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, order); err != nil {
		return Order{}, fmt.Errorf("sales: update order: %w", err)
	}
	s.publish(ctx)
	return order, nil
}

// Delete removes an order at any status. Deducted stock is not returned.
func (s *Service) Delete(ctx context.Context, id string) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if order.Deducted() {
		s.logger.Warn("order deleted without restocking",
			slog.String("order_id", order.ID),
			slog.String("status", string(order.Status)),
			slog.Int("items", len(order.Items)))
	}
	s.publish(ctx)
	return nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.List(ctx, filter)
}

// fulfill deducts the order's items from stock exactly once and stamps
// StockDeductedAt. A key already claimed by an earlier request means the
// stock is gone; the order is stamped without deducting again.
func (s *Service) fulfill(ctx context.Context, order *Order) error {
	key := DeductionKey(order.ID)
	if s.idem != nil {
		err := s.idem.CheckAndInsert(ctx, key, idempotencyModule)
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			s.logger.Warn("stock already deducted for order", slog.String("order_id", order.ID))
			if s.metrics != nil {
				s.metrics.ObserveDuplicateDeduction()
			}
			s.stamp(order)
			return nil
		}
		if err != nil {
			return fmt.Errorf("sales: claim deduction: %w", err)
		}
	}
	result, err := s.stock.Deduct(ctx, order.DeductionLines())
	if err != nil {
		if s.idem != nil {
			if relErr := s.idem.Delete(ctx, key); relErr != nil {
				s.logger.Error("release deduction key", slog.String("order_id", order.ID), slog.Any("error", relErr))
			}
		}
		return fmt.Errorf("sales: fulfill order %s: %w", order.ID, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveDeduction(len(result.Applied), len(result.Skipped))
	}
	s.stamp(order)
	s.logger.Info("order fulfilled",
		slog.String("order_id", order.ID),
		slog.Int("applied", len(result.Applied)),
		slog.Int("skipped", len(result.Skipped)))
	return nil
}

func (s *Service) stamp(order *Order) {
	now := s.now()
	order.StockDeductedAt = &now
}

func (s *Service) publish(ctx context.Context) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, feed.CollectionOrders); err != nil {
		s.logger.Warn("publish order change", slog.Any("error", err))
	}
}

func buildItems(inputs []ItemInput) ([]OrderItem, error) {
	items := make([]OrderItem, 0, len(inputs))
	for i, in := range inputs {
		code := strings.TrimSpace(in.FabricCode)
		if code == "" {
			return nil, fmt.Errorf("sales: item %d: fabric code required: %w", i+1, shared.ErrValidation)
		}
		if in.Meters < 0 || in.PricePerMeter < 0 {
			return nil, fmt.Errorf("sales: item %d: meters and price must be >= 0: %w", i+1, shared.ErrValidation)
		}
		items = append(items, OrderItem{
			FabricCode:    code,
			RollID:        strings.TrimSpace(in.RollID),
			SubCode:       strings.TrimSpace(in.SubCode),
			Meters:        in.Meters,
			PricePerMeter: in.PricePerMeter,
		})
	}
	return items, nil
}
