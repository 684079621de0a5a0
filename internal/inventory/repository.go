package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricdesk/fabricdesk/internal/platform/db"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var fabricColumns = []string{"id::text AS id", "main_code", "name", "color", "rolls", "created_at", "updated_at"}

// Repository persists fabrics in PostgreSQL. Rolls live in a JSONB array
// that is always replaced as a whole.
type Repository struct {
	pool *pgxpool.Pool
	db   db.Querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// TxRepository exposes the operations available inside a transaction.
type TxRepository interface {
	GetFabricForUpdate(ctx context.Context, id string) (Fabric, error)
	GetFabricByCode(ctx context.Context, mainCode string) (Fabric, error)
	ListFabricsByCodes(ctx context.Context, codes []string) ([]Fabric, error)
	CreateFabric(ctx context.Context, f Fabric) error
	ReplaceRolls(ctx context.Context, fabricID string, rolls []Roll, updatedAt time.Time) error
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}

type fabricRow struct {
	ID        string    `db:"id"`
	MainCode  string    `db:"main_code"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	Rolls     []byte    `db:"rolls"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// rollRecord is the stored shape of a roll. Older documents carry meters
// and price as strings, or leave them out.
type rollRecord struct {
	RollID   string        `json:"rollId"`
	SubCode  string        `json:"subCode"`
	Meters   shared.Number `json:"meters"`
	Price    shared.Number `json:"price"`
	Location string        `json:"location"`
	AddedAt  time.Time     `json:"addedAt"`
}

func (r fabricRow) toDomain() (Fabric, error) {
	rolls, err := decodeRolls(r.Rolls)
	if err != nil {
		return Fabric{}, fmt.Errorf("fabric %s: %w", r.MainCode, err)
	}
	return Fabric{
		ID:        r.ID,
		MainCode:  r.MainCode,
		Name:      r.Name,
		Color:     r.Color,
		Rolls:     rolls,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func decodeRolls(raw []byte) ([]Roll, error) {
	if len(raw) == 0 {
		return []Roll{}, nil
	}
	var records []rollRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode rolls: %w", err)
	}
	rolls := make([]Roll, 0, len(records))
	for _, rec := range records {
		rolls = append(rolls, Roll{
			RollID:   rec.RollID,
			SubCode:  rec.SubCode,
			Meters:   shared.NonNegative(rec.Meters.Float64()),
			Price:    shared.NonNegative(rec.Price.Float64()),
			Location: rec.Location,
			AddedAt:  rec.AddedAt,
		})
	}
	return rolls, nil
}

func encodeRolls(rolls []Roll) ([]byte, error) {
	if rolls == nil {
		rolls = []Roll{}
	}
	return json.Marshal(rolls)
}

func (r *Repository) selectFabrics(ctx context.Context, q sq.SelectBuilder) ([]Fabric, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []fabricRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select fabrics: %w", err)
	}
	fabrics := make([]Fabric, 0, len(rows))
	for _, row := range rows {
		f, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		fabrics = append(fabrics, f)
	}
	return fabrics, nil
}

func (r *Repository) getFabric(ctx context.Context, q sq.SelectBuilder, key string) (Fabric, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return Fabric{}, err
	}
	var row fabricRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return Fabric{}, fmt.Errorf("fabric %s: %w", key, shared.ErrNotFound)
		}
		return Fabric{}, err
	}
	return row.toDomain()
}

// ListFabrics returns every fabric ordered by main code.
func (r *Repository) ListFabrics(ctx context.Context) ([]Fabric, error) {
	return r.selectFabrics(ctx, psql.Select(fabricColumns...).From("fabrics").OrderBy("main_code"))
}

// ListFabricsByCodes locks and returns the fabrics with the given main codes.
func (r *Repository) ListFabricsByCodes(ctx context.Context, codes []string) ([]Fabric, error) {
	if len(codes) == 0 {
		return []Fabric{}, nil
	}
	return r.selectFabrics(ctx, psql.Select(fabricColumns...).From("fabrics").
		Where(sq.Eq{"main_code": codes}).
		OrderBy("main_code").
		Suffix("FOR UPDATE"))
}

// GetFabric loads one fabric by id.
func (r *Repository) GetFabric(ctx context.Context, id string) (Fabric, error) {
	return r.getFabric(ctx, psql.Select(fabricColumns...).From("fabrics").Where(sq.Eq{"id": id}), id)
}

// GetFabricForUpdate loads and locks one fabric by id.
func (r *Repository) GetFabricForUpdate(ctx context.Context, id string) (Fabric, error) {
	return r.getFabric(ctx, psql.Select(fabricColumns...).From("fabrics").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"), id)
}

// GetFabricByCode loads one fabric by main code.
func (r *Repository) GetFabricByCode(ctx context.Context, mainCode string) (Fabric, error) {
	return r.getFabric(ctx, psql.Select(fabricColumns...).From("fabrics").Where(sq.Eq{"main_code": mainCode}), mainCode)
}

// CreateFabric inserts a fabric.
func (r *Repository) CreateFabric(ctx context.Context, f Fabric) error {
	rolls, err := encodeRolls(f.Rolls)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("fabrics").
		Columns("id", "main_code", "name", "color", "rolls", "created_at", "updated_at").
		Values(f.ID, f.MainCode, f.Name, f.Color, rolls, f.CreatedAt, f.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateMainCode, f.MainCode)
		}
		return fmt.Errorf("insert fabric: %w", err)
	}
	return nil
}

// ReplaceRolls overwrites the roll array of a fabric.
func (r *Repository) ReplaceRolls(ctx context.Context, fabricID string, rolls []Roll, updatedAt time.Time) error {
	doc, err := encodeRolls(rolls)
	if err != nil {
		return err
	}
	query, args, err := psql.Update("fabrics").
		Set("rolls", doc).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": fabricID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("replace rolls: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fabric %s: %w", fabricID, shared.ErrNotFound)
	}
	return nil
}

// DeleteFabric removes a fabric and its rolls.
func (r *Repository) DeleteFabric(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM fabrics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete fabric: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fabric %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// RecordSnapshot stores the totals of a warehouse valuation.
func (r *Repository) RecordSnapshot(ctx context.Context, v WarehouseValuation, takenAt time.Time) error {
	query, args, err := psql.Insert("valuation_snapshots").
		Columns("taken_at", "strategy", "fabric_count", "total_meters", "total_value").
		Values(takenAt, string(v.Strategy), len(v.Fabrics), v.TotalMeters, v.TotalValue).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert valuation snapshot: %w", err)
	}
	return nil
}
