package expenses

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
	List(ctx context.Context, filter ListFilter) ([]Expense, error)
	Create(ctx context.Context, e Expense) error
	Delete(ctx context.Context, id string) error
}

// Publisher announces record changes.
type Publisher interface {
	Publish(ctx context.Context, collection string) error
}

// Service manages expenses.
type Service struct {
	repo   RepositoryPort
	feed   Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs Service. feed may be nil.
func NewService(repo RepositoryPort, feed Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, feed: feed, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores an expense with computed totals.
func (s *Service) Create(ctx context.Context, input CreateInput) (Expense, error) {
	if input.Amount < 0 || input.VATRate < 0 {
		return Expense{}, fmt.Errorf("expenses: amount and vat rate must be >= 0: %w", shared.ErrValidation)
	}
	now := s.now()
	expense := Expense{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Date:        input.Date,
		Amount:      input.Amount,
		VATRate:     input.VATRate,
		CreatedAt:   now,
	}
	if expense.Date.IsZero() {
		expense.Date = now
	}
	expense.ApplyTotals()
	if err := s.repo.Create(ctx, expense); err != nil {
		return Expense{}, fmt.Errorf("expenses: create: %w", err)
	}
	s.publish(ctx)
	return expense, nil
}

// List returns expenses matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

func (s *Service) publish(ctx context.Context) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, feed.CollectionExpenses); err != nil {
		s.logger.Warn("publish expense change", slog.Any("error", err))
	}
}
