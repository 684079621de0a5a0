package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// ============================================================================
// FAKES
// ============================================================================

type memoryRepo struct {
	orders    map[string]Order
	updateErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[string]Order)}
}

func (m *memoryRepo) Get(ctx context.Context, id string) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	o.Items = append([]OrderItem(nil), o.Items...)
	return o, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryRepo) Create(ctx context.Context, o Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, o Order) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	prev, ok := m.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if o.StockDeductedAt == nil {
		o.StockDeductedAt = prev.StockDeductedAt
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

// warehouse applies deductions with the real engine to an in-memory fabric set.
type warehouse struct {
	mu      sync.Mutex
	fabrics []inventory.Fabric
	calls   int
	err     error
}

func (w *warehouse) Deduct(ctx context.Context, lines []inventory.DeductionLine) (inventory.DeductionResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return inventory.DeductionResult{}, w.err
	}
	result := inventory.ApplyDeductions(w.fabrics, lines)
	for _, changed := range result.Fabrics {
		for i := range w.fabrics {
			if w.fabrics[i].MainCode == changed.MainCode {
				w.fabrics[i] = changed
			}
		}
	}
	return result, nil
}

func (w *warehouse) meters(code, rollID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range w.fabrics {
		if f.MainCode != code {
			continue
		}
		for _, r := range f.Rolls {
			if r.RollID == rollID {
				return r.Meters
			}
		}
	}
	return -1
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]string)}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type countingRecorder struct {
	applied, skipped, duplicates int
}

func (c *countingRecorder) ObserveDeduction(applied, skipped int) {
	c.applied += applied
	c.skipped += skipped
}

func (c *countingRecorder) ObserveDuplicateDeduction() { c.duplicates++ }

type fixture struct {
	svc       *Service
	repo      *memoryRepo
	warehouse *warehouse
	idem      *memoryIdempotency
	metrics   *countingRecorder
}

func newFixture() *fixture {
	f := &fixture{
		repo: newMemoryRepo(),
		warehouse: &warehouse{fabrics: []inventory.Fabric{
			{ID: "f1", MainCode: "A", Rolls: []inventory.Roll{{RollID: "r1", Meters: 20}, {RollID: "r2", Meters: 8}}},
		}},
		idem:    newMemoryIdempotency(),
		metrics: &countingRecorder{},
	}
	f.svc = NewService(f.repo, f.warehouse, f.idem, nil, f.metrics, nil)
	return f
}

func threeMeters() []ItemInput {
	return []ItemInput{{FabricCode: "A", RollID: "r1", Meters: 3, PricePerMeter: 10}}
}

// ============================================================================
// TRANSITION TABLE
// ============================================================================

func TestPlanTransition(t *testing.T) {
	cases := []struct {
		from     Status
		to       Status
		deducted bool
		want     StockEffect
	}{
		{"", StatusCompleted, false, StockDeduct},
		{"", StatusPending, false, StockUnchanged},
		{StatusPending, StatusCompleted, false, StockDeduct},
		{StatusCancelled, StatusCompleted, false, StockDeduct},
		{StatusCancelled, StatusCompleted, true, StockUnchanged},
		{StatusCompleted, StatusCompleted, false, StockUnchanged},
		{StatusCompleted, StatusCompleted, true, StockUnchanged},
		{StatusCompleted, StatusCancelled, true, StockUnchanged},
		{StatusCompleted, StatusPending, true, StockUnchanged},
		{StatusPending, StatusCancelled, false, StockUnchanged},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s->%s/%v", tc.from, tc.to, tc.deducted), func(t *testing.T) {
			assert.Equal(t, tc.want, PlanTransition(tc.from, tc.to, tc.deducted))
		})
	}
}

// ============================================================================
// FULFILLMENT
// ============================================================================

func TestCreateCompletedDeductsOnceAndComputesTotals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Customer: "Atelier", VATRate: 24, Status: StatusCompleted, Items: threeMeters()})
	require.NoError(t, err)

	assert.InDelta(t, 30.0, order.Subtotal, 1e-9)
	assert.InDelta(t, 7.2, order.VATAmount, 1e-9)
	assert.InDelta(t, 37.2, order.FinalPrice, 1e-9)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
	assert.True(t, order.Deducted())
	assert.Contains(t, f.idem.keys, DeductionKey(order.ID))
	assert.Equal(t, 1, f.metrics.applied)

	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))

	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
	assert.Equal(t, 1, f.warehouse.calls)
}

func TestPendingToCompletedDeducts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Items: threeMeters()})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 20.0, f.warehouse.meters("A", "r1"))

	order, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, order.Status)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))

	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
}

func TestCancelledBeforeCompletionThenCompletedDeducts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Items: threeMeters()})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 20.0, f.warehouse.meters("A", "r1"))

	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
}

func TestDeductionClampsAtZero(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), CreateInput{
		Status: StatusCompleted,
		Items:  []ItemInput{{FabricCode: "A", RollID: "r1", Meters: 25, PricePerMeter: 1}},
	})
	require.NoError(t, err)
	assert.Zero(t, f.warehouse.meters("A", "r1"))
}

func TestClaimedKeySkipsSecondDeduction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Items: threeMeters()})
	require.NoError(t, err)
	// another request already claimed and deducted this order
	require.NoError(t, f.idem.CheckAndInsert(ctx, DeductionKey(order.ID), idempotencyModule))

	order, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.True(t, order.Deducted())
	assert.Zero(t, f.warehouse.calls)
	assert.Equal(t, 1, f.metrics.duplicates)
}

func TestDeductionFailureReleasesKeyAndKeepsStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Items: threeMeters()})
	require.NoError(t, err)

	f.warehouse.err = errors.New("connection reset")
	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.Error(t, err)
	assert.NotContains(t, f.idem.keys, DeductionKey(order.ID))

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.False(t, stored.Deducted())

	f.warehouse.err = nil
	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
}

func TestStatusWriteFailureDoesNotDeductTwice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Items: threeMeters()})
	require.NoError(t, err)

	f.repo.updateErr = errors.New("timeout")
	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.Error(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))

	f.repo.updateErr = nil
	_, err = f.svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
	assert.Equal(t, 1, f.warehouse.calls)
}

func TestItemEditsDoNotTouchStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Status: StatusCompleted, Items: threeMeters()})
	require.NoError(t, err)

	items := []ItemInput{{FabricCode: "A", RollID: "r1", Meters: 10, PricePerMeter: 10}}
	updated, err := f.svc.Update(ctx, order.ID, UpdateInput{Items: &items})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, updated.Subtotal, 1e-9)
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
}

func TestCreateRejectsCancelledAndInvalidInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{Status: StatusCancelled, Items: threeMeters()})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.Create(ctx, CreateInput{Items: []ItemInput{{FabricCode: "A", Meters: -1}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.UpdateStatus(ctx, "missing", StatusCompleted)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteDoesNotRestock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateInput{Status: StatusCompleted, Items: threeMeters()})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, order.ID))
	assert.Equal(t, 17.0, f.warehouse.meters("A", "r1"))
	_, err = f.svc.Get(ctx, order.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("completed")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.ErrorIs(t, err, shared.ErrValidation)
}
