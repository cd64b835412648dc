package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// User is an account of the backend API.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// OTP is a one-time login code. Only the bcrypt hash of the code is stored.
type OTP struct {
	ID        string
	Email     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expense is an owner-scoped expense row of the backend API.
type Expense struct {
	ID          string
	UserID      string
	Title       string
	Category    string
	Amount      float64
	PaymentMode string
	Notes       string
	ExpenseDate time.Time
	CreatedAt   time.Time
}

// SQLiteRepository stores users, OTPs and expenses for the backend API.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Users

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	query, args, err := sq.Select("id", "name", "email", "created_at").
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find user query: %w", err)
	}

	var (
		u       User
		created int64
	)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Name, &u.Email, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) error {
	query, args, err := sq.Insert("users").
		Columns("id", "name", "email", "created_at").
		Values(u.ID, u.Name, u.Email, u.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create user query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email)
	return nil
}

// OTPs

// ReplaceOTP removes every earlier code for the email and stores the new one.
func (r *SQLiteRepository) ReplaceOTP(ctx context.Context, otp OTP) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace otp: %w", err)
	}
	defer tx.Rollback()

	del, delArgs, err := sq.Delete("otps").Where(sq.Eq{"email": otp.Email}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete otp query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("delete previous otps: %w", err)
	}

	ins, insArgs, err := sq.Insert("otps").
		Columns("id", "email", "code_hash", "attempts", "expires_at", "created_at").
		Values(otp.ID, otp.Email, otp.CodeHash, 0, otp.ExpiresAt.UnixMilli(), otp.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert otp query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ins, insArgs...); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace otp: %w", err)
	}
	return nil
}

// LatestOTP returns the newest code issued for the email.
func (r *SQLiteRepository) LatestOTP(ctx context.Context, email string) (*OTP, error) {
	query, args, err := sq.Select("id", "email", "code_hash", "attempts", "expires_at", "created_at").
		From("otps").
		Where(sq.Eq{"email": email}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest otp query: %w", err)
	}

	var (
		o                  OTP
		expires, createdAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&o.ID, &o.Email, &o.CodeHash, &o.Attempts, &expires, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest otp: %w", err)
	}
	o.ExpiresAt = time.UnixMilli(expires).UTC()
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &o, nil
}

// IncrementOTPAttempts records a failed guess and returns the new count.
func (r *SQLiteRepository) IncrementOTPAttempts(ctx context.Context, id string) (int, error) {
	query, args, err := sq.Update("otps").
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment attempts query: %w", err)
	}

	var attempts int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return attempts, nil
}

// ConsumeOTP deletes the code by id and reports whether this call removed it.
// Only one caller can ever observe true for a given code.
func (r *SQLiteRepository) ConsumeOTP(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Delete("otps").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build consume otp query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume otp rows: %w", err)
	}
	return n == 1, nil
}

// DeleteOTPs removes every code issued for the email.
func (r *SQLiteRepository) DeleteOTPs(ctx context.Context, email string) error {
	query, args, err := sq.Delete("otps").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete otps query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete otps: %w", err)
	}
	return nil
}

// PurgeExpiredOTPs removes codes that expired before the given instant.
func (r *SQLiteRepository) PurgeExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := sq.Delete("otps").Where(sq.Lt{"expires_at": before.UnixMilli()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge expired otps: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.InfoContext(ctx, "Expired OTPs purged", "count", n)
	}
	return n, nil
}

// Expenses

var expenseColumns = []string{
	"id", "user_id", "title", "category", "amount", "payment_mode", "notes", "expense_date", "created_at",
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e Expense) error {
	query, args, err := sq.Insert("expenses").
		Columns(expenseColumns...).
		Values(e.ID, e.UserID, e.Title, e.Category, e.Amount, e.PaymentMode, e.Notes,
			e.ExpenseDate.UnixMilli(), e.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create expense query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"title", e.Title,
		"amount", e.Amount,
		"category", e.Category)
	return nil
}

// ListExpenses returns the user's expenses, newest expense date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]Expense, error) {
	query, args, err := sq.Select(expenseColumns...).
		From("expenses").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("expense_date DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list expenses query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (*Expense, error) {
	query, args, err := sq.Select(expenseColumns...).From("expenses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get expense query: %w", err)
	}

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// UpdateExpense overwrites the mutable columns of an existing row.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e Expense) error {
	query, args, err := sq.Update("expenses").
		SetMap(map[string]any{
			"title":        e.Title,
			"category":     e.Category,
			"amount":       e.Amount,
			"payment_mode": e.PaymentMode,
			"notes":        e.Notes,
			"expense_date": e.ExpenseDate.UnixMilli(),
		}).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update expense query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated", "id", e.ID, "user_id", e.UserID)
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	query, args, err := sq.Delete("expenses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete expense query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (Expense, error) {
	var (
		e               Expense
		date, createdAt int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Category, &e.Amount, &e.PaymentMode, &e.Notes, &date, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Expense{}, err
		}
		return Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.ExpenseDate = time.UnixMilli(date).UTC()
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}
