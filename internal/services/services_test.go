package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenzoo/internal/amqp"
	"expenzoo/internal/auth"
	"expenzoo/internal/cache"
	"expenzoo/internal/storage"
)

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	r, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []*amqp.OTPDeliveryMessage
	err  error
}

func (c *captureNotifier) PublishOTP(_ context.Context, msg *amqp.OTPDeliveryMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureNotifier) last() *amqp.OTPDeliveryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

func newAuth(t *testing.T) (*AuthService, *captureNotifier, *auth.TokenService) {
	t.Helper()
	n := &captureNotifier{}
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewAuthService(newRepo(t), tokens, n, AuthConfig{OTPTTL: time.Minute, MaxAttempts: 3}), n, tokens
}

func TestRequestOTPValidatesEmail(t *testing.T) {
	s, _, _ := newAuth(t)
	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := s.RequestOTP(context.Background(), email)
		assert.True(t, IsValidation(err), "email %q", email)
	}
}

func TestOTPLoginFlow(t *testing.T) {
	ctx := context.Background()
	s, n, tokens := newAuth(t)

	email, err := s.RequestOTP(ctx, "  Site.Manager@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "site.manager@example.com", email)
	msg := n.last()
	assert.Len(t, msg.Code, auth.CodeLength)

	res, err := s.VerifyOTP(ctx, email, msg.Code)
	require.NoError(t, err)
	assert.Equal(t, "site.manager", res.User.Name)
	assert.Equal(t, email, res.User.Email)

	userID, err := tokens.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)

	_, err = s.VerifyOTP(ctx, email, msg.Code)
	assert.ErrorIs(t, err, ErrInvalidOTP, "codes are single use")

	// Second login reuses the account.
	_, err = s.RequestOTP(ctx, email)
	require.NoError(t, err)
	again, err := s.VerifyOTP(ctx, email, n.last().Code)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
}

func TestVerifyOTPRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		s, _, _ := newAuth(t)
		_, err := s.VerifyOTP(ctx, "a@b.co", "")
		assert.True(t, IsValidation(err))
	})

	t.Run("no code issued", func(t *testing.T) {
		s, _, _ := newAuth(t)
		_, err := s.VerifyOTP(ctx, "a@b.co", "123456")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("expired", func(t *testing.T) {
		s, n, _ := newAuth(t)
		issued := time.Now()
		s.now = func() time.Time { return issued }
		_, err := s.RequestOTP(ctx, "a@b.co")
		require.NoError(t, err)

		s.now = func() time.Time { return issued.Add(2 * time.Minute) }
		_, err = s.VerifyOTP(ctx, "a@b.co", n.last().Code)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("too many wrong guesses burn the code", func(t *testing.T) {
		s, n, _ := newAuth(t)
		_, err := s.RequestOTP(ctx, "a@b.co")
		require.NoError(t, err)
		good := n.last().Code
		wrong := "000000"
		if good == wrong {
			wrong = "111111"
		}
		for i := 0; i < 3; i++ {
			_, err := s.VerifyOTP(ctx, "a@b.co", wrong)
			assert.ErrorIs(t, err, ErrInvalidOTP)
		}
		_, err = s.VerifyOTP(ctx, "a@b.co", good)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("publish failure", func(t *testing.T) {
		s, n, _ := newAuth(t)
		n.err = errors.New("broker down")
		_, err := s.RequestOTP(ctx, "a@b.co")
		assert.Error(t, err)
	})
}

func amountPtr(v float64) *float64 { return &v }

func TestExpenseServiceOwnership(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for _, id := range []string{"owner", "intruder"} {
		require.NoError(t, repo.CreateUser(ctx, storage.User{ID: id, Name: id, Email: id + "@b.co", CreatedAt: time.Now()}))
	}
	s := NewExpenseService(repo, cache.NewLRUCache[[]storage.Expense](16, time.Minute))

	e, err := s.Create(ctx, "owner", ExpenseInput{
		Title: "  Cement bags ", Category: "Cement", Amount: amountPtr(4500), PaymentMode: "Cash",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cement bags", e.Title)

	_, err = s.Get(ctx, "intruder", e.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = s.Update(ctx, "intruder", e.ID, ExpensePatch{Amount: amountPtr(1)})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, s.Delete(ctx, "intruder", e.ID), ErrForbidden)

	_, err = s.Get(ctx, "owner", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExpenseServiceCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.CreateUser(ctx, storage.User{ID: "u1", Name: "u", Email: "u@b.co", CreatedAt: time.Now()}))
	s := NewExpenseService(repo, cache.NewLRUCache[[]storage.Expense](16, time.Minute))

	older := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{older, newer} {
		d := d
		_, err := s.Create(ctx, "u1", ExpenseInput{
			Title: gofakeit.LetterN(10), Category: "Labour", Amount: amountPtr(gofakeit.Float64Range(1, 1000)),
			PaymentMode: "Online", ExpenseDate: &d,
		})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].ExpenseDate.Equal(newer))

	notes := "paid in advance"
	updated, err := s.Update(ctx, "u1", list[1].ID, ExpensePatch{Notes: &notes, Amount: amountPtr(99)})
	require.NoError(t, err)
	assert.Equal(t, 99.0, updated.Amount)

	// Cached list is invalidated by the update.
	list, err = s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "paid in advance", list[1].Notes)

	require.NoError(t, s.Delete(ctx, "u1", list[0].ID))
	assert.ErrorIs(t, s.Delete(ctx, "u1", list[0].ID), ErrNotFound)
	list, err = s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExpenseServiceValidation(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.CreateUser(ctx, storage.User{ID: "u1", Name: "u", Email: "u@b.co", CreatedAt: time.Now()}))
	s := NewExpenseService(repo, nil)

	tests := []struct {
		name string
		in   ExpenseInput
		msg  string
	}{
		{"missing title", ExpenseInput{Category: "c", Amount: amountPtr(1), PaymentMode: "Cash"}, "Please add a title"},
		{"missing amount", ExpenseInput{Title: "t", Category: "c", PaymentMode: "Cash"}, "Please add an amount"},
		{"zero amount", ExpenseInput{Title: "t", Category: "c", Amount: amountPtr(0), PaymentMode: "Cash"}, "Amount must be greater than 0"},
		{"bad mode", ExpenseInput{Title: "t", Category: "c", Amount: amountPtr(1), PaymentMode: "Cheque"}, "Payment mode must be one of Cash, Online, Card, Other"},
		{"missing category", ExpenseInput{Title: "t", Amount: amountPtr(1), PaymentMode: "Card"}, "Please add a category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, "u1", tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
		})
	}

	e, err := s.Create(ctx, "u1", ExpenseInput{Title: "ok", Category: "c", Amount: amountPtr(1), PaymentMode: "Other"})
	require.NoError(t, err)
	empty := ""
	_, err = s.Update(ctx, "u1", e.ID, ExpensePatch{Title: &empty})
	assert.True(t, IsValidation(err))
}

func TestExpenseServiceClose(t *testing.T) {
	assert.NoError(t, NewExpenseService(nil, nil).Close())
	assert.NoError(t, NewExpenseService(newRepo(t), nil).Close())
}
