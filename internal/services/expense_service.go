package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenzoo/internal/cache"
	"expenzoo/internal/storage"
)

var (
	ErrNotFound  = errors.New("expense not found")
	ErrForbidden = errors.New("not authorized")
)

// ExpenseRepository is the storage the expense service needs.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e storage.Expense) error
	ListExpenses(ctx context.Context, userID string) ([]storage.Expense, error)
	GetExpense(ctx context.Context, id string) (*storage.Expense, error)
	UpdateExpense(ctx context.Context, e storage.Expense) error
	DeleteExpense(ctx context.Context, id string) error
}

// ExpenseInput is the body of a create request.
type ExpenseInput struct {
	Title       string     `json:"title" validate:"required,max=100"`
	Category    string     `json:"category" validate:"required"`
	Amount      *float64   `json:"amount" validate:"required,gt=0"`
	PaymentMode string     `json:"paymentMode" validate:"required,oneof=Cash Online Card Other"`
	Notes       string     `json:"notes" validate:"max=500"`
	ExpenseDate *time.Time `json:"expenseDate"`
}

// ExpensePatch is the body of an update request. Nil fields are kept.
type ExpensePatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=100"`
	Category    *string    `json:"category" validate:"omitempty,min=1"`
	Amount      *float64   `json:"amount" validate:"omitempty,gt=0"`
	PaymentMode *string    `json:"paymentMode" validate:"omitempty,oneof=Cash Online Card Other"`
	Notes       *string    `json:"notes" validate:"omitempty,max=500"`
	ExpenseDate *time.Time `json:"expenseDate"`
}

// ExpenseService runs owner-scoped CRUD over the expense repository.
type ExpenseService struct {
	repo  ExpenseRepository
	lists cache.Cache[[]storage.Expense]
	now   func() time.Time
}

// NewExpenseService builds the service. lists may be nil to disable the
// per-user list cache.
func NewExpenseService(repo ExpenseRepository, lists cache.Cache[[]storage.Expense]) *ExpenseService {
	return &ExpenseService{repo: repo, lists: lists, now: time.Now}
}

// List returns the caller's expenses, most recent expense date first.
func (s *ExpenseService) List(ctx context.Context, userID string) ([]storage.Expense, error) {
	if s.lists != nil {
		if list, ok := s.lists.Get(userID); ok {
			return append([]storage.Expense(nil), list...), nil
		}
	}
	list, err := s.repo.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if s.lists != nil {
		s.lists.Set(userID, append([]storage.Expense(nil), list...))
	}
	return list, nil
}

// Get returns one expense owned by userID.
func (s *ExpenseService) Get(ctx context.Context, userID, id string) (*storage.Expense, error) {
	return s.owned(ctx, userID, id)
}

func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput) (*storage.Expense, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := storage.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Category:    in.Category,
		Amount:      *in.Amount,
		PaymentMode: in.PaymentMode,
		Notes:       in.Notes,
		ExpenseDate: now,
		CreatedAt:   now,
	}
	if in.ExpenseDate != nil && !in.ExpenseDate.IsZero() {
		e.ExpenseDate = *in.ExpenseDate
	}

	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	s.invalidate(userID)
	return &e, nil
}

// Update merges the patch onto an owned expense and validates the result.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, p ExpensePatch) (*storage.Expense, error) {
	e, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.PaymentMode != nil {
		e.PaymentMode = *p.PaymentMode
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.ExpenseDate != nil && !p.ExpenseDate.IsZero() {
		e.ExpenseDate = *p.ExpenseDate
	}

	amount := e.Amount
	merged := ExpenseInput{Title: e.Title, Category: e.Category, Amount: &amount, PaymentMode: e.PaymentMode, Notes: e.Notes}
	if err := validateStruct(merged); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateExpense(ctx, *e); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update expense: %w", err)
	}
	s.invalidate(userID)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	s.invalidate(userID)
	slog.InfoContext(ctx, "Expense deleted", "id", id, "user_id", userID)
	return nil
}

func (s *ExpenseService) owned(ctx context.Context, userID, id string) (*storage.Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if e.UserID != userID {
		return nil, ErrForbidden
	}
	return e, nil
}

func (s *ExpenseService) invalidate(userID string) {
	if s.lists != nil {
		s.lists.Delete(userID)
	}
}

// Close closes the repository when it holds resources.
func (s *ExpenseService) Close() error {
	var errs []error
	if c, ok := s.repo.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
