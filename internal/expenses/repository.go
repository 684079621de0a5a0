package expenses

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricdesk/fabricdesk/internal/platform/db"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists expenses in PostgreSQL.
type Repository struct {
	db db.Querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// List returns expenses matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	q := psql.Select(
		"id::text AS id", "description", "category", "expense_date AS date", "amount",
		"vat_rate", "subtotal", "vat_amount", "final_price", "created_at",
	).From("expenses").OrderBy("expense_date DESC", "created_at DESC")
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"expense_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"expense_date": *filter.To})
	}
	if filter.Category != "" {
		q = q.Where(sq.Eq{"category": filter.Category})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	expenses := make([]Expense, 0)
	if err := pgxscan.Select(ctx, r.db, &expenses, query, args...); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Create inserts an expense.
func (r *Repository) Create(ctx context.Context, e Expense) error {
	query, args, err := psql.Insert("expenses").
		Columns("id", "description", "category", "expense_date", "amount", "vat_rate", "subtotal", "vat_amount", "final_price", "created_at").
		Values(e.ID, e.Description, e.Category, e.Date, e.Amount, e.VATRate, e.Subtotal, e.VATAmount, e.FinalPrice, e.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// Delete removes an expense.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
