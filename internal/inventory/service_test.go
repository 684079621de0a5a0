package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	fabrics   map[string]Fabric
	snapshots []WarehouseValuation
	failWrite error
}

type memoryTx struct {
	fabrics   map[string]Fabric
	failWrite error
}

func newMemoryRepo(fabrics ...Fabric) *memoryRepo {
	repo := &memoryRepo{fabrics: make(map[string]Fabric)}
	for _, f := range fabrics {
		repo.fabrics[f.ID] = f
	}
	return repo
}

func cloneFabric(f Fabric) Fabric {
	f.Rolls = append([]Roll(nil), f.Rolls...)
	return f
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := make(map[string]Fabric, len(r.fabrics))
	for id, f := range r.fabrics {
		staged[id] = cloneFabric(f)
	}
	if err := fn(ctx, &memoryTx{fabrics: staged, failWrite: r.failWrite}); err != nil {
		return err
	}
	r.fabrics = staged
	return nil
}

func (r *memoryRepo) sorted() []Fabric {
	out := make([]Fabric, 0, len(r.fabrics))
	for _, f := range r.fabrics {
		out = append(out, cloneFabric(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MainCode < out[j].MainCode })
	return out
}

func (r *memoryRepo) ListFabrics(ctx context.Context) ([]Fabric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(), nil
}

func (r *memoryRepo) GetFabric(ctx context.Context, id string) (Fabric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fabrics[id]
	if !ok {
		return Fabric{}, fmt.Errorf("fabric %s: %w", id, shared.ErrNotFound)
	}
	return cloneFabric(f), nil
}

func (r *memoryRepo) GetFabricByCode(ctx context.Context, mainCode string) (Fabric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{fabrics: r.fabrics}).GetFabricByCode(ctx, mainCode)
}

func (r *memoryRepo) CreateFabric(ctx context.Context, f Fabric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{fabrics: r.fabrics}).CreateFabric(ctx, f)
}

func (r *memoryRepo) DeleteFabric(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fabrics[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.fabrics, id)
	return nil
}

func (r *memoryRepo) RecordSnapshot(ctx context.Context, v WarehouseValuation, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, v)
	return nil
}

func (tx *memoryTx) GetFabricForUpdate(ctx context.Context, id string) (Fabric, error) {
	f, ok := tx.fabrics[id]
	if !ok {
		return Fabric{}, fmt.Errorf("fabric %s: %w", id, shared.ErrNotFound)
	}
	return cloneFabric(f), nil
}

func (tx *memoryTx) GetFabricByCode(ctx context.Context, mainCode string) (Fabric, error) {
	for _, f := range tx.fabrics {
		if f.MainCode == mainCode {
			return cloneFabric(f), nil
		}
	}
	return Fabric{}, fmt.Errorf("fabric %s: %w", mainCode, shared.ErrNotFound)
}

func (tx *memoryTx) ListFabricsByCodes(ctx context.Context, codes []string) ([]Fabric, error) {
	var out []Fabric
	for _, f := range tx.fabrics {
		for _, c := range codes {
			if f.MainCode == c {
				out = append(out, cloneFabric(f))
			}
		}
	}
	return out, nil
}

func (tx *memoryTx) CreateFabric(ctx context.Context, f Fabric) error {
	for _, existing := range tx.fabrics {
		if existing.MainCode == f.MainCode {
			return ErrDuplicateMainCode
		}
	}
	tx.fabrics[f.ID] = cloneFabric(f)
	return nil
}

func (tx *memoryTx) ReplaceRolls(ctx context.Context, fabricID string, rolls []Roll, updatedAt time.Time) error {
	if tx.failWrite != nil {
		return tx.failWrite
	}
	f, ok := tx.fabrics[fabricID]
	if !ok {
		return shared.ErrNotFound
	}
	f.Rolls = append([]Roll(nil), rolls...)
	f.UpdatedAt = updatedAt
	tx.fabrics[fabricID] = f
	return nil
}

type staticPurchases []procurement.Purchase

func (p staticPurchases) List(ctx context.Context, _ procurement.ListFilter) ([]procurement.Purchase, error) {
	return p, nil
}

type recordingFeed struct {
	mu        sync.Mutex
	published []string
	handler   func(context.Context, string)
}

func (f *recordingFeed) Publish(ctx context.Context, collection string) error {
	f.mu.Lock()
	f.published = append(f.published, collection)
	f.mu.Unlock()
	return nil
}

func (f *recordingFeed) SubscribeAll(ctx context.Context, collection string, fn func(context.Context, string)) error {
	f.handler = fn
	return nil
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func newTestService(repo *memoryRepo, purchases staticPurchases) (*Service, *recordingFeed) {
	feed := &recordingFeed{}
	return NewService(repo, purchases, feed, nil, ServiceConfig{}), feed
}

func TestCreateFabricRejectsDuplicateMainCode(t *testing.T) {
	svc, feed := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()

	fabric, err := svc.CreateFabric(ctx, CreateFabricInput{MainCode: " LIN-01 ", Name: "Linen"})
	require.NoError(t, err)
	require.Equal(t, "LIN-01", fabric.MainCode)
	require.NotEmpty(t, fabric.ID)
	require.Equal(t, 1, feed.count())

	_, err = svc.CreateFabric(ctx, CreateFabricInput{MainCode: "LIN-01"})
	require.ErrorIs(t, err, ErrDuplicateMainCode)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateFabric(ctx, CreateFabricInput{MainCode: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddAndRemoveRoll(t *testing.T) {
	repo := newMemoryRepo(Fabric{ID: "f1", MainCode: "A"})
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	roll, err := svc.AddRoll(ctx, "f1", AddRollInput{SubCode: "x", Meters: 12.5, Price: 4})
	require.NoError(t, err)
	require.NotEmpty(t, roll.RollID)

	fabric, err := svc.GetFabric(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, fabric.Rolls, 1)
	require.Equal(t, 12.5, fabric.Rolls[0].Meters)

	_, err = svc.AddRoll(ctx, "f1", AddRollInput{Meters: 0})
	require.ErrorIs(t, err, ErrInvalidMeters)
	_, err = svc.AddRoll(ctx, "f1", AddRollInput{Meters: 1, Price: -1})
	require.ErrorIs(t, err, ErrInvalidPrice)
	_, err = svc.AddRoll(ctx, "missing", AddRollInput{Meters: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.ErrorIs(t, svc.RemoveRoll(ctx, "f1", "nope"), shared.ErrNotFound)
	require.NoError(t, svc.RemoveRoll(ctx, "f1", roll.RollID))
	fabric, err = svc.GetFabric(ctx, "f1")
	require.NoError(t, err)
	require.Empty(t, fabric.Rolls)
}

func TestReceivePurchaseCreatesMissingFabrics(t *testing.T) {
	repo := newMemoryRepo(Fabric{ID: "f1", MainCode: "A", Rolls: []Roll{{RollID: "old", Meters: 2}}})
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	err := svc.ReceivePurchase(ctx, procurement.Purchase{ID: "p1", Items: []procurement.PurchaseItem{
		{FabricCode: "A", SubCode: "x", Meters: 10, PricePerMeter: 5},
		{FabricCode: "B", SubCode: "y", Meters: 3, PricePerMeter: 8},
		{FabricCode: "B", SubCode: "y", Meters: 0, PricePerMeter: 8},
	}})
	require.NoError(t, err)

	fabrics, err := svc.ListFabrics(ctx)
	require.NoError(t, err)
	require.Len(t, fabrics, 2)
	require.Len(t, fabrics[0].Rolls, 2)
	require.Equal(t, 5.0, fabrics[0].Rolls[1].Price)
	require.Equal(t, "B", fabrics[1].MainCode)
	require.Len(t, fabrics[1].Rolls, 1)
	require.Equal(t, 3.0, fabrics[1].Rolls[0].Meters)
}

func TestDeductPersistsChangedFabrics(t *testing.T) {
	repo := newMemoryRepo(
		Fabric{ID: "f1", MainCode: "A", Rolls: []Roll{{RollID: "r1", Meters: 20}}},
		Fabric{ID: "f2", MainCode: "B", Rolls: []Roll{{RollID: "r2", Meters: 5}}},
	)
	svc, feed := newTestService(repo, nil)
	ctx := context.Background()

	result, err := svc.Deduct(ctx, []DeductionLine{
		{FabricCode: "A", RollID: "r1", Meters: 25},
		{FabricCode: "C", RollID: "r9", Meters: 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, 1, feed.count())

	a, _ := svc.GetFabric(ctx, "f1")
	b, _ := svc.GetFabric(ctx, "f2")
	require.Zero(t, a.Rolls[0].Meters)
	require.Equal(t, 5.0, b.Rolls[0].Meters)
}

func TestDeductRollsBackOnWriteFailure(t *testing.T) {
	repo := newMemoryRepo(Fabric{ID: "f1", MainCode: "A", Rolls: []Roll{{RollID: "r1", Meters: 20}}})
	repo.failWrite = errors.New("disk full")
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, []DeductionLine{{FabricCode: "A", RollID: "r1", Meters: 3}})
	require.Error(t, err)

	a, _ := svc.GetFabric(ctx, "f1")
	require.Equal(t, 20.0, a.Rolls[0].Meters)
}

func TestStockSummaryAndValuation(t *testing.T) {
	repo := newMemoryRepo(Fabric{ID: "f1", MainCode: "A", Rolls: []Roll{
		{RollID: "1", SubCode: "x", Meters: 4},
		{RollID: "2", SubCode: "y", Meters: 6},
	}})
	purchases := staticPurchases{{Items: []procurement.PurchaseItem{
		{FabricCode: "A", SubCode: "x", Meters: 10, PricePerMeter: 2},
		{FabricCode: "A", SubCode: "y", Meters: 10, PricePerMeter: 8},
	}}}
	svc, _ := newTestService(repo, purchases)
	ctx := context.Background()

	stock, err := svc.StockSummary(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, 10.0, stock.Meters)
	require.Equal(t, 2, stock.RollCount)
	require.InDelta(t, 5.0, stock.AvgCost, 1e-9)
	require.InDelta(t, 50.0, stock.Value, 1e-9)
	require.Len(t, stock.Subcodes, 2)

	v, err := svc.Valuation(ctx, StrategySubBatch)
	require.NoError(t, err)
	require.InDelta(t, 4*2+6*8.0, v.TotalValue, 1e-9)

	v, err = svc.RecordValuation(ctx)
	require.NoError(t, err)
	require.Equal(t, StrategyFabricAverage, v.Strategy)
	require.Len(t, repo.snapshots, 1)
}

func TestSubscribeFabricsReloadsOnChange(t *testing.T) {
	repo := newMemoryRepo(Fabric{ID: "f1", MainCode: "A"})
	svc, feed := newTestService(repo, nil)
	ctx := context.Background()

	var got []Fabric
	require.NoError(t, svc.SubscribeFabrics(ctx, func(_ context.Context, fabrics []Fabric) { got = fabrics }))
	require.NotNil(t, feed.handler)

	feed.handler(ctx, "fabrics")
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].MainCode)
}
