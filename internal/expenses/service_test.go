package expenses

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricdesk/fabricdesk/internal/shared"
)

type memoryRepo struct {
	items []Expense
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	return append([]Expense(nil), m.items...), nil
}

func (m *memoryRepo) Create(ctx context.Context, e Expense) error {
	m.items = append(m.items, e)
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	for i, e := range m.items {
		if e.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func TestCreateExpenseComputesTotals(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)

	e, err := svc.Create(context.Background(), CreateInput{Description: "Rent", Amount: 500, VATRate: 24})
	require.NoError(t, err)
	assert.InDelta(t, 500.0, e.Subtotal, 1e-9)
	assert.InDelta(t, 120.0, e.VATAmount, 1e-9)
	assert.InDelta(t, 620.0, e.FinalPrice, 1e-9)
	assert.False(t, e.Date.IsZero())
	require.Len(t, repo.items, 1)

	_, err = svc.Create(context.Background(), CreateInput{Amount: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteExpense(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)
	e, err := svc.Create(context.Background(), CreateInput{Description: "Power", Amount: 10})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), e.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), e.ID), shared.ErrNotFound)
}

func TestHandlerCreateExpense(t *testing.T) {
	repo := &memoryRepo{}
	r := chi.NewRouter()
	NewHandler(slog.Default(), NewService(repo, nil, nil)).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"description":"Courier","date":"2024-02-10","amount":"12,5","vatRate":24}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"finalPrice":15.5`)
	require.Len(t, repo.items, 1)
	assert.Equal(t, 12.5, repo.items[0].Amount)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2024-02-10"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
