package reports

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fabricdesk/fabricdesk/internal/expenses"
	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/sales"
)

// OrderSource lists sales orders.
type OrderSource interface {
	List(ctx context.Context, filter sales.ListFilter) ([]sales.Order, error)
}

// PurchaseSource lists purchases.
type PurchaseSource interface {
	List(ctx context.Context, filter procurement.ListFilter) ([]procurement.Purchase, error)
}

// ExpenseSource lists expenses.
type ExpenseSource interface {
	List(ctx context.Context, filter expenses.ListFilter) ([]expenses.Expense, error)
}

// FabricSource lists fabrics.
type FabricSource interface {
	ListFabrics(ctx context.Context) ([]inventory.Fabric, error)
}

// Subscriber delivers change notifications for every collection.
type Subscriber interface {
	SubscribeAll(ctx context.Context, collection string, fn func(ctx context.Context, collection string)) error
}

// Sources bundles the repositories a summary reads from.
type Sources struct {
	Orders    OrderSource
	Purchases PurchaseSource
	Expenses  ExpenseSource
	Fabrics   FabricSource
}

// Service computes cached financial summaries.
type Service struct {
	src    Sources
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs Service. cache may be nil.
func NewService(src Sources, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, cache: cache, logger: logger}
}

// Summary returns the financial summary for rng.
func (s *Service) Summary(ctx context.Context, rng Range) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "summary", rangeKey(rng))
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return s.compute(ctx, rng)
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.compute(ctx, rng)
	})
	if err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *Service) compute(ctx context.Context, rng Range) (Summary, error) {
	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orders, err := s.src.Orders.List(gctx, sales.ListFilter{From: rng.From, To: rng.To, Status: sales.StatusCompleted})
		if err != nil {
			return fmt.Errorf("reports: load orders: %w", err)
		}
		in.Orders = orders
		return nil
	})
	g.Go(func() error {
		purchases, err := s.src.Purchases.List(gctx, procurement.ListFilter{})
		if err != nil {
			return fmt.Errorf("reports: load purchases: %w", err)
		}
		in.Purchases = purchases
		return nil
	})
	g.Go(func() error {
		items, err := s.src.Expenses.List(gctx, expenses.ListFilter{From: rng.From, To: rng.To})
		if err != nil {
			return fmt.Errorf("reports: load expenses: %w", err)
		}
		in.Expenses = items
		return nil
	})
	g.Go(func() error {
		fabrics, err := s.src.Fabrics.ListFabrics(gctx)
		if err != nil {
			return fmt.Errorf("reports: load fabrics: %w", err)
		}
		in.Fabrics = fabrics
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Compute(rng, in), nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// WatchChanges invalidates the cache whenever any collection changes.
func (s *Service) WatchChanges(ctx context.Context, sub Subscriber) error {
	if sub == nil {
		return nil
	}
	return sub.SubscribeAll(ctx, "", func(ctx context.Context, collection string) {
		if err := s.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate report cache", slog.String("collection", collection), slog.Any("error", err))
		}
	})
}

func rangeKey(rng Range) string {
	from, to := "-", "-"
	if rng.From != nil {
		from = rng.From.Format("20060102")
	}
	if rng.To != nil {
		to = rng.To.Format("20060102")
	}
	return from + "_" + to
}
