package procurement

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

var purchaseColumns = []string{
	"id::text AS id", "supplier", "purchase_date", "items", "vat_rate",
	"subtotal", "vat_amount", "final_price", "created_at", "updated_at",
}

// Repository persists purchases in PostgreSQL. Items are stored as a JSONB
// document and replaced whole on every update.
type Repository struct {
	db db.Querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

type purchaseRow struct {
	ID           string    `db:"id"`
	Supplier     string    `db:"supplier"`
	PurchaseDate time.Time `db:"purchase_date"`
	Items        []byte    `db:"items"`
	VATRate      float64   `db:"vat_rate"`
	Subtotal     float64   `db:"subtotal"`
	VATAmount    float64   `db:"vat_amount"`
	FinalPrice   float64   `db:"final_price"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// itemRecord is the stored shape of an item; numbers may be strings in
// documents written by older clients.
type itemRecord struct {
	FabricCode    string        `json:"fabricCode"`
	SubCode       string        `json:"subCode"`
	Meters        shared.Number `json:"meters"`
	PricePerMeter shared.Number `json:"pricePerMeter"`
}

func (r purchaseRow) toDomain() (Purchase, error) {
	items, err := decodeItems(r.Items)
	if err != nil {
		return Purchase{}, fmt.Errorf("purchase %s: %w", r.ID, err)
	}
	return Purchase{
		ID:         r.ID,
		Supplier:   r.Supplier,
		Date:       r.PurchaseDate,
		Items:      items,
		VATRate:    r.VATRate,
		Subtotal:   r.Subtotal,
		VATAmount:  r.VATAmount,
		FinalPrice: r.FinalPrice,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func decodeItems(raw []byte) ([]PurchaseItem, error) {
	if len(raw) == 0 {
		return []PurchaseItem{}, nil
	}
	var records []itemRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	items := make([]PurchaseItem, 0, len(records))
	for _, rec := range records {
		meters := shared.NonNegative(rec.Meters.Float64())
		price := shared.NonNegative(rec.PricePerMeter.Float64())
		items = append(items, PurchaseItem{
			FabricCode:    rec.FabricCode,
			SubCode:       rec.SubCode,
			Meters:        meters,
			PricePerMeter: price,
			TotalPrice:    meters * price,
		})
	}
	return items, nil
}

func encodeItems(items []PurchaseItem) ([]byte, error) {
	if items == nil {
		items = []PurchaseItem{}
	}
	return json.Marshal(items)
}

// Get loads one purchase.
func (r *Repository) Get(ctx context.Context, id string) (Purchase, error) {
	query, args, err := psql.Select(purchaseColumns...).From("purchases").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Purchase{}, err
	}
	var row purchaseRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return Purchase{}, fmt.Errorf("purchase %s: %w", id, shared.ErrNotFound)
		}
		return Purchase{}, err
	}
	return row.toDomain()
}

// List returns purchases matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	q := psql.Select(purchaseColumns...).From("purchases").OrderBy("purchase_date DESC", "created_at DESC")
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"purchase_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"purchase_date": *filter.To})
	}
	if filter.Supplier != "" {
		q = q.Where(sq.ILike{"supplier": "%" + filter.Supplier + "%"})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []purchaseRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	purchases := make([]Purchase, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, nil
}

// Create inserts a purchase.
func (r *Repository) Create(ctx context.Context, p Purchase) error {
	items, err := encodeItems(p.Items)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("purchases").
		Columns("id", "supplier", "purchase_date", "items", "vat_rate", "subtotal", "vat_amount", "final_price", "created_at", "updated_at").
		Values(p.ID, p.Supplier, p.Date, items, p.VATRate, p.Subtotal, p.VATAmount, p.FinalPrice, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// Update overwrites a purchase.
func (r *Repository) Update(ctx context.Context, p Purchase) error {
	items, err := encodeItems(p.Items)
	if err != nil {
		return err
	}
	query, args, err := psql.Update("purchases").SetMap(map[string]any{
		"supplier":      p.Supplier,
		"purchase_date": p.Date,
		"items":         items,
		"vat_rate":      p.VATRate,
		"subtotal":      p.Subtotal,
		"vat_amount":    p.VATAmount,
		"final_price":   p.FinalPrice,
		"updated_at":    p.UpdatedAt,
	}).Where(sq.Eq{"id": p.ID}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase %s: %w", p.ID, shared.ErrNotFound)
	}
	return nil
}

// Delete removes a purchase.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
