package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabricdesk/fabricdesk/internal/platform/feed"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Purchase, error)
	List(ctx context.Context, filter ListFilter) ([]Purchase, error)
	Create(ctx context.Context, p Purchase) error
	Update(ctx context.Context, p Purchase) error
	Delete(ctx context.Context, id string) error
}

// StockReceiver books received purchase lines into warehouse stock.
type StockReceiver interface {
	ReceivePurchase(ctx context.Context, p Purchase) error
}

// Publisher announces record changes.
type Publisher interface {
	Publish(ctx context.Context, collection string) error
}

// Service orchestrates purchase invoices.
type Service struct {
	repo     RepositoryPort
	receiver StockReceiver
	feed     Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs procurement service. receiver and feed may be nil.
func NewService(repo RepositoryPort, receiver StockReceiver, feed Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, receiver: receiver, feed: feed, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a purchase with computed totals and optionally books its
// lines into stock as new rolls.
func (s *Service) Create(ctx context.Context, input CreateInput) (Purchase, error) {
	items, err := buildItems(input.Items)
	if err != nil {
		return Purchase{}, err
	}
	if input.VATRate < 0 {
		return Purchase{}, fmt.Errorf("procurement: vat rate must be >= 0: %w", shared.ErrValidation)
	}
	now := s.now()
	purchase := Purchase{
		ID:        uuid.NewString(),
		Supplier:  strings.TrimSpace(input.Supplier),
		Date:      input.Date,
		Items:     items,
		VATRate:   input.VATRate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if purchase.Date.IsZero() {
		purchase.Date = now
	}
	purchase.ApplyTotals()

	if err := s.repo.Create(ctx, purchase); err != nil {
		return Purchase{}, fmt.Errorf("procurement: create purchase: %w", err)
	}
	s.publish(ctx)

	if input.ReceiveIntoStock && s.receiver != nil {
		if err := s.receiver.ReceivePurchase(ctx, purchase); err != nil {
			s.logger.Error("receive purchase into stock", slog.String("purchase_id", purchase.ID), slog.Any("error", err))
			return purchase, fmt.Errorf("procurement: receive into stock: %w", err)
		}
	}
	s.logger.Info("purchase recorded",
		slog.String("purchase_id", purchase.ID),
		slog.String("supplier", purchase.Supplier),
		slog.Int("items", len(purchase.Items)),
		slog.Float64("final_price", purchase.FinalPrice))
	return purchase, nil
}

// Update applies changes and recomputes totals. Stock is not touched:
// received rolls are physical stock and are edited through inventory.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Purchase, error) {
	purchase, err := s.repo.Get(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	if input.Supplier != nil {
		purchase.Supplier = strings.TrimSpace(*input.Supplier)
	}
	if input.Date != nil {
		purchase.Date = *input.Date
	}
	if input.VATRate != nil {
		if *input.VATRate < 0 {
			return Purchase{}, fmt.Errorf("procurement: vat rate must be >= 0: %w", shared.ErrValidation)
		}
		purchase.VATRate = *input.VATRate
	}
	if input.Items != nil {
		items, err := buildItems(*input.Items)
		if err != nil {
			return Purchase{}, err
		}
		purchase.Items = items
	}
	purchase.ApplyTotals()
	purchase.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, purchase); err != nil {
		return Purchase{}, fmt.Errorf("procurement: update purchase: %w", err)
	}
	s.publish(ctx)
	return purchase, nil
}

// Delete removes a purchase. Rolls received from it stay in stock.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// Get returns one purchase.
func (s *Service) Get(ctx context.Context, id string) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchases matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) publish(ctx context.Context) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, feed.CollectionPurchases); err != nil {
		s.logger.Warn("publish purchase change", slog.Any("error", err))
	}
}

func buildItems(inputs []ItemInput) ([]PurchaseItem, error) {
	items := make([]PurchaseItem, 0, len(inputs))
	for i, in := range inputs {
		code := strings.TrimSpace(in.FabricCode)
		if code == "" {
			return nil, fmt.Errorf("procurement: item %d: fabric code required: %w", i+1, shared.ErrValidation)
		}
		if in.Meters < 0 || in.PricePerMeter < 0 {
			return nil, fmt.Errorf("procurement: item %d: meters and price must be >= 0: %w", i+1, shared.ErrValidation)
		}
		items = append(items, PurchaseItem{
			FabricCode:    code,
			SubCode:       strings.TrimSpace(in.SubCode),
			Meters:        in.Meters,
			PricePerMeter: in.PricePerMeter,
		})
	}
	return items, nil
}
