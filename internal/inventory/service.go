package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabricdesk/fabricdesk/internal/platform/feed"
	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListFabrics(ctx context.Context) ([]Fabric, error)
	GetFabric(ctx context.Context, id string) (Fabric, error)
	GetFabricByCode(ctx context.Context, mainCode string) (Fabric, error)
	CreateFabric(ctx context.Context, f Fabric) error
	DeleteFabric(ctx context.Context, id string) error
	RecordSnapshot(ctx context.Context, v WarehouseValuation, takenAt time.Time) error
}

// PurchaseLister supplies the purchase history used as price evidence.
type PurchaseLister interface {
	List(ctx context.Context, filter procurement.ListFilter) ([]procurement.Purchase, error)
}

// ChangeFeed publishes and delivers collection change notifications.
type ChangeFeed interface {
	Publish(ctx context.Context, collection string) error
	SubscribeAll(ctx context.Context, collection string, fn func(ctx context.Context, collection string)) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Strategy Strategy
}

// Service coordinates fabric stock.
type Service struct {
	repo      RepositoryPort
	purchases PurchaseLister
	feed      ChangeFeed
	logger    *slog.Logger
	strategy  Strategy
	now       func() time.Time
}

// NewService builds Service. feed may be nil.
func NewService(repo RepositoryPort, purchases PurchaseLister, feed ChangeFeed, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = DefaultStrategy
	}
	return &Service{
		repo:      repo,
		purchases: purchases,
		feed:      feed,
		logger:    logger,
		strategy:  strategy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Strategy returns the configured valuation strategy.
func (s *Service) Strategy() Strategy { return s.strategy }

// CreateFabric registers a new fabric with no rolls.
func (s *Service) CreateFabric(ctx context.Context, input CreateFabricInput) (Fabric, error) {
	code := strings.TrimSpace(input.MainCode)
	if code == "" {
		return Fabric{}, fmt.Errorf("inventory: main code required: %w", shared.ErrValidation)
	}
	if _, err := s.repo.GetFabricByCode(ctx, code); err == nil {
		return Fabric{}, fmt.Errorf("%w: %s", ErrDuplicateMainCode, code)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Fabric{}, err
	}
	now := s.now()
	fabric := Fabric{
		ID:        uuid.NewString(),
		MainCode:  code,
		Name:      strings.TrimSpace(input.Name),
		Color:     strings.TrimSpace(input.Color),
		Rolls:     []Roll{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateFabric(ctx, fabric); err != nil {
		return Fabric{}, err
	}
	s.publish(ctx)
	s.logger.Info("fabric created", slog.String("fabric_id", fabric.ID), slog.String("main_code", code))
	return fabric, nil
}

// GetFabric returns one fabric.
func (s *Service) GetFabric(ctx context.Context, id string) (Fabric, error) {
	return s.repo.GetFabric(ctx, id)
}

// ListFabrics returns every fabric.
func (s *Service) ListFabrics(ctx context.Context) ([]Fabric, error) {
	return s.repo.ListFabrics(ctx)
}

// DeleteFabric removes a fabric together with its rolls.
func (s *Service) DeleteFabric(ctx context.Context, id string) error {
	if err := s.repo.DeleteFabric(ctx, id); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// AddRoll appends a roll with a freshly assigned id.
func (s *Service) AddRoll(ctx context.Context, fabricID string, input AddRollInput) (Roll, error) {
	if input.Meters <= 0 {
		return Roll{}, ErrInvalidMeters
	}
	if input.Price < 0 {
		return Roll{}, ErrInvalidPrice
	}
	roll := Roll{
		RollID:   uuid.NewString(),
		SubCode:  strings.TrimSpace(input.SubCode),
		Meters:   input.Meters,
		Price:    input.Price,
		Location: strings.TrimSpace(input.Location),
		AddedAt:  s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fabric, err := tx.GetFabricForUpdate(ctx, fabricID)
		if err != nil {
			return err
		}
		rolls := append(append(make([]Roll, 0, len(fabric.Rolls)+1), fabric.Rolls...), roll)
		return tx.ReplaceRolls(ctx, fabric.ID, rolls, roll.AddedAt)
	})
	if err != nil {
		return Roll{}, err
	}
	s.publish(ctx)
	return roll, nil
}

// RemoveRoll deletes one roll from a fabric.
func (s *Service) RemoveRoll(ctx context.Context, fabricID, rollID string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fabric, err := tx.GetFabricForUpdate(ctx, fabricID)
		if err != nil {
			return err
		}
		idx := rollIndex(fabric.Rolls, rollID)
		if idx < 0 {
			return fmt.Errorf("roll %s: %w", rollID, shared.ErrNotFound)
		}
		rolls := make([]Roll, 0, len(fabric.Rolls)-1)
		rolls = append(rolls, fabric.Rolls[:idx]...)
		rolls = append(rolls, fabric.Rolls[idx+1:]...)
		return tx.ReplaceRolls(ctx, fabric.ID, rolls, s.now())
	})
	if err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// ReceivePurchase books one roll per purchase item, priced at the item's
// price per meter. Fabrics that do not exist yet are created.
func (s *Service) ReceivePurchase(ctx context.Context, p procurement.Purchase) error {
	byCode := make(map[string][]Roll)
	var codes []string
	now := s.now()
	for _, item := range p.Items {
		if item.Meters <= 0 {
			continue
		}
		if _, ok := byCode[item.FabricCode]; !ok {
			codes = append(codes, item.FabricCode)
		}
		byCode[item.FabricCode] = append(byCode[item.FabricCode], Roll{
			RollID:  uuid.NewString(),
			SubCode: item.SubCode,
			Meters:  item.Meters,
			Price:   item.PricePerMeter,
			AddedAt: now,
		})
	}
	if len(codes) == 0 {
		return nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.ListFabricsByCodes(ctx, codes)
		if err != nil {
			return err
		}
		for _, code := range codes {
			fabric, ok := FindFabric(existing, code)
			if !ok {
				fabric = Fabric{ID: uuid.NewString(), MainCode: code, Rolls: byCode[code], CreatedAt: now, UpdatedAt: now}
				if err := tx.CreateFabric(ctx, fabric); err != nil {
					return err
				}
				continue
			}
			rolls := append(append(make([]Roll, 0, len(fabric.Rolls)+len(byCode[code])), fabric.Rolls...), byCode[code]...)
			if err := tx.ReplaceRolls(ctx, fabric.ID, rolls, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("inventory: receive purchase %s: %w", p.ID, err)
	}
	s.publish(ctx)
	s.logger.Info("purchase received into stock", slog.String("purchase_id", p.ID), slog.Int("fabrics", len(codes)))
	return nil
}

// Deduct applies fulfillment lines to stock and persists every changed
// fabric in one transaction. Unknown fabrics or rolls are skipped and
// reported in the result.
func (s *Service) Deduct(ctx context.Context, lines []DeductionLine) (DeductionResult, error) {
	codes := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.FabricCode]; ok {
			continue
		}
		seen[l.FabricCode] = struct{}{}
		codes = append(codes, l.FabricCode)
	}
	var result DeductionResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fabrics, err := tx.ListFabricsByCodes(ctx, codes)
		if err != nil {
			return err
		}
		result = ApplyDeductions(fabrics, lines)
		now := s.now()
		for _, f := range result.Fabrics {
			if err := tx.ReplaceRolls(ctx, f.ID, f.Rolls, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return DeductionResult{}, fmt.Errorf("inventory: deduct stock: %w", err)
	}
	for _, l := range result.Skipped {
		s.logger.Warn("deduction line skipped",
			slog.String("fabric_code", l.FabricCode),
			slog.String("roll_id", l.RollID),
			slog.Float64("meters", l.Meters))
	}
	if len(result.Fabrics) > 0 {
		s.publish(ctx)
	}
	return result, nil
}

// StockSummary returns the sub-batch breakdown and value of one fabric.
func (s *Service) StockSummary(ctx context.Context, fabricID string) (FabricStock, error) {
	fabric, err := s.repo.GetFabric(ctx, fabricID)
	if err != nil {
		return FabricStock{}, err
	}
	fabrics, purchases, err := s.Snapshot(ctx)
	if err != nil {
		return FabricStock{}, err
	}
	return FabricStock{
		Fabric:    fabric,
		Subcodes:  SummarizeSubcodes(fabric.Rolls, fabric.MainCode, purchases, fabrics),
		AvgCost:   WeightedAverageCost(fabric.MainCode, purchases, fabrics),
		Value:     ValueFabric(s.strategy, fabric, purchases, fabrics),
		Meters:    fabric.TotalMeters(),
		RollCount: len(fabric.Rolls),
	}, nil
}

// Valuation values the whole warehouse. An empty strategy uses the
// configured one.
func (s *Service) Valuation(ctx context.Context, strategy Strategy) (WarehouseValuation, error) {
	if strategy == "" {
		strategy = s.strategy
	}
	fabrics, purchases, err := s.Snapshot(ctx)
	if err != nil {
		return WarehouseValuation{}, err
	}
	return ValueWarehouse(strategy, fabrics, purchases), nil
}

// RecordValuation computes the configured valuation and stores its totals.
func (s *Service) RecordValuation(ctx context.Context) (WarehouseValuation, error) {
	v, err := s.Valuation(ctx, "")
	if err != nil {
		return WarehouseValuation{}, err
	}
	if err := s.repo.RecordSnapshot(ctx, v, s.now()); err != nil {
		return WarehouseValuation{}, err
	}
	s.logger.Info("valuation recorded",
		slog.String("strategy", string(v.Strategy)),
		slog.Int("fabrics", len(v.Fabrics)),
		slog.Float64("total_value", v.TotalValue))
	return v, nil
}

// Snapshot loads every fabric and the full purchase history.
func (s *Service) Snapshot(ctx context.Context) ([]Fabric, []procurement.Purchase, error) {
	fabrics, err := s.repo.ListFabrics(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("inventory: list fabrics: %w", err)
	}
	purchases, err := s.purchases.List(ctx, procurement.ListFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("inventory: list purchases: %w", err)
	}
	return fabrics, purchases, nil
}

// SubscribeFabrics calls fn with the full fabric list after every fabric
// change until ctx is done.
func (s *Service) SubscribeFabrics(ctx context.Context, fn func(context.Context, []Fabric)) error {
	if s.feed == nil {
		return errors.New("inventory: change feed not configured")
	}
	return s.feed.SubscribeAll(ctx, feed.CollectionFabrics, func(ctx context.Context, _ string) {
		fabrics, err := s.repo.ListFabrics(ctx)
		if err != nil {
			s.logger.Error("reload fabrics", slog.Any("error", err))
			return
		}
		fn(ctx, fabrics)
	})
}

func (s *Service) publish(ctx context.Context) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, feed.CollectionFabrics); err != nil {
		s.logger.Warn("publish fabric change", slog.Any("error", err))
	}
}
