package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricdesk/fabricdesk/internal/platform/db"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var orderColumns = []string{
	"id::text AS id", "customer", "order_date", "items", "vat_rate", "status",
	"subtotal", "vat_amount", "final_price", "stock_deducted_at", "created_at", "updated_at",
}

// Repository persists orders in PostgreSQL.
type Repository struct {
	db db.Querier
}

// NewRepository creates a new sales repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

type orderRow struct {
	ID              string     `db:"id"`
	Customer        string     `db:"customer"`
	OrderDate       time.Time  `db:"order_date"`
	Items           []byte     `db:"items"`
	VATRate         float64    `db:"vat_rate"`
	Status          string     `db:"status"`
	Subtotal        float64    `db:"subtotal"`
	VATAmount       float64    `db:"vat_amount"`
	FinalPrice      float64    `db:"final_price"`
	StockDeductedAt *time.Time `db:"stock_deducted_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type itemRecord struct {
	FabricCode    string        `json:"fabricCode"`
	RollID        string        `json:"rollId"`
	SubCode       string        `json:"subCode"`
	Meters        shared.Number `json:"meters"`
	PricePerMeter shared.Number `json:"pricePerMeter"`
}

func (r orderRow) toDomain() (Order, error) {
	var records []itemRecord
	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &records); err != nil {
			return Order{}, fmt.Errorf("order %s: decode items: %w", r.ID, err)
		}
	}
	items := make([]OrderItem, 0, len(records))
	for _, rec := range records {
		meters := shared.NonNegative(rec.Meters.Float64())
		price := shared.NonNegative(rec.PricePerMeter.Float64())
		items = append(items, OrderItem{
			FabricCode:    rec.FabricCode,
			RollID:        rec.RollID,
			SubCode:       rec.SubCode,
			Meters:        meters,
			PricePerMeter: price,
			TotalPrice:    meters * price,
		})
	}
	return Order{
		ID:              r.ID,
		Customer:        r.Customer,
		Date:            r.OrderDate,
		Items:           items,
		VATRate:         r.VATRate,
		Status:          Status(r.Status),
		Subtotal:        r.Subtotal,
		VATAmount:       r.VATAmount,
		FinalPrice:      r.FinalPrice,
		StockDeductedAt: r.StockDeductedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func encodeItems(items []OrderItem) ([]byte, error) {
	if items == nil {
		items = []OrderItem{}
	}
	return json.Marshal(items)
}

// Get loads one order.
func (r *Repository) Get(ctx context.Context, id string) (Order, error) {
	query, args, err := psql.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Order{}, err
	}
	var row orderRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return Order{}, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
		}
		return Order{}, err
	}
	return row.toDomain()
}

// List returns orders matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	q := psql.Select(orderColumns...).From("orders").OrderBy("order_date DESC", "created_at DESC")
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"order_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"order_date": *filter.To})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Customer != "" {
		q = q.Where(sq.ILike{"customer": "%" + filter.Customer + "%"})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []orderRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Create inserts an order.
func (r *Repository) Create(ctx context.Context, o Order) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("orders").
		Columns("id", "customer", "order_date", "items", "vat_rate", "status", "subtotal", "vat_amount", "final_price", "stock_deducted_at", "created_at", "updated_at").
		Values(o.ID, o.Customer, o.Date, items, o.VATRate, string(o.Status), o.Subtotal, o.VATAmount, o.FinalPrice, o.StockDeductedAt, o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Update overwrites an order. stock_deducted_at is only ever set, never
// cleared.
func (r *Repository) Update(ctx context.Context, o Order) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}
	query, args, err := psql.Update("orders").SetMap(map[string]any{
		"customer":          o.Customer,
		"order_date":        o.Date,
		"items":             items,
		"vat_rate":          o.VATRate,
		"status":            string(o.Status),
		"subtotal":          o.Subtotal,
		"vat_amount":        o.VATAmount,
		"final_price":       o.FinalPrice,
		"stock_deducted_at": sq.Expr("COALESCE(stock_deducted_at, ?)", o.StockDeductedAt),
		"updated_at":        o.UpdatedAt,
	}).Where(sq.Eq{"id": o.ID}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, shared.ErrNotFound)
	}
	return nil
}

// Delete removes an order.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
