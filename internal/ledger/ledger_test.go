package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenzoo/internal/core"
	"expenzoo/internal/storage"
	"expenzoo/internal/storage/memory"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func testOptions() Options {
	n := 0
	return Options{
		Clock: func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
	}
}

func openTestStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, err := Open(context.Background(), kv, testOptions())
	require.NoError(t, err)
	return s
}

func validInput() core.ExpenseInput {
	return core.ExpenseInput{
		Title:       "Cement bags",
		Amount:      4500,
		Category:    "Cement",
		PaymentMode: "Cash",
		Date:        "2024-03-10",
	}
}

func TestLedgerAddPrependsAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openTestStore(t, kv)

	first, err := s.Ledger.Add(ctx, validInput())
	require.NoError(t, err)
	second := validInput()
	second.Title = "Steel rods"
	second.Category = "Steel"
	e2, err := s.Ledger.Add(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, "id-001", first.ID)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Equal(t, core.PaymentCash, first.PaymentMode)

	list := s.Ledger.List()
	require.Len(t, list, 2)
	assert.Equal(t, e2.ID, list[0].ID, "newest insertion first")

	raw, ok, _ := kv.Get(ctx, KeyExpenses)
	require.True(t, ok)
	var stored []core.Expense
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, list, stored)
}

func TestLedgerAddValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*core.ExpenseInput)
		field string
	}{
		{"short title", func(in *core.ExpenseInput) { in.Title = "  ab " }, "title"},
		{"zero amount", func(in *core.ExpenseInput) { in.Amount = 0 }, "amount"},
		{"negative amount", func(in *core.ExpenseInput) { in.Amount = -5 }, "amount"},
		{"bad date", func(in *core.ExpenseInput) { in.Date = "2024-13-01" }, "date"},
		{"loose date", func(in *core.ExpenseInput) { in.Date = "2024-3-1" }, "date"},
		{"bad payment", func(in *core.ExpenseInput) { in.PaymentMode = "Cheque" }, "paymentMode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := memory.New()
			s := openTestStore(t, kv)

			in := validInput()
			tt.edit(&in)
			_, err := s.Ledger.Add(ctx, in)

			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, s.Ledger.List())
			assert.Zero(t, kv.Writes(), "no partial writes")
		})
	}
}

func TestLedgerUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memory.New())

	e, err := s.Ledger.Add(ctx, validInput())
	require.NoError(t, err)

	amount := 5000.0
	notes := "second truck"
	updated, found, err := s.Ledger.Update(ctx, e.ID, core.ExpensePatch{Amount: &amount, Notes: &notes})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5000.0, updated.Amount)
	assert.Equal(t, "second truck", updated.Notes)
	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, e.CreatedAt, updated.CreatedAt)
	assert.Equal(t, e.Title, updated.Title)

	got, ok := s.Ledger.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, updated, got)

	t.Run("unknown id is a no-op", func(t *testing.T) {
		rev := s.Ledger.Revision()
		_, found, err := s.Ledger.Update(ctx, "missing", core.ExpensePatch{Amount: &amount})
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, rev, s.Ledger.Revision())
	})

	t.Run("invalid merge leaves record", func(t *testing.T) {
		bad := -1.0
		_, _, err := s.Ledger.Update(ctx, e.ID, core.ExpensePatch{Amount: &bad})
		assert.True(t, core.IsValidation(err))
		got, _ := s.Ledger.Get(e.ID)
		assert.Equal(t, 5000.0, got.Amount)
	})
}

func TestLedgerDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openTestStore(t, kv)

	e, err := s.Ledger.Add(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, s.Ledger.Delete(ctx, e.ID))
	assert.Empty(t, s.Ledger.List())
	writes := kv.Writes()

	require.NoError(t, s.Ledger.Delete(ctx, e.ID))
	assert.Equal(t, writes, kv.Writes())
}

func TestLedgerClear(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openTestStore(t, kv)

	for i := 0; i < 3; i++ {
		_, err := s.Ledger.Add(ctx, validInput())
		require.NoError(t, err)
	}
	require.NoError(t, s.Ledger.Clear(ctx))
	assert.Empty(t, s.Ledger.List())

	raw, _, _ := kv.Get(ctx, KeyExpenses)
	assert.Equal(t, "[]", raw)
}

func TestLedgerStorageFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openTestStore(t, kv)

	e, err := s.Ledger.Add(ctx, validInput())
	require.NoError(t, err)
	before := s.Ledger.List()

	kv.FailWrites(func(string, []string) bool { return true }, nil)

	_, err = s.Ledger.Add(ctx, validInput())
	assert.True(t, core.IsStorage(err))
	assert.ErrorIs(t, err, storage.ErrInjected)

	amount := 1.0
	_, _, err = s.Ledger.Update(ctx, e.ID, core.ExpensePatch{Amount: &amount})
	assert.True(t, core.IsStorage(err))
	assert.True(t, core.IsStorage(s.Ledger.Delete(ctx, e.ID)))
	assert.True(t, core.IsStorage(s.Ledger.Clear(ctx)))

	assert.Equal(t, before, s.Ledger.List())
}

func TestLedgerUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, memory.New(), Options{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		in := core.ExpenseInput{
			Title:    gofakeit.LetterN(8),
			Amount:   gofakeit.Float64Range(1, 100000),
			Category: "Labour",
			Date:     "2024-01-01",
		}
		e, err := s.Ledger.Add(ctx, in)
		require.NoError(t, err)
		require.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestLedgerLoadAcceptsLegacyRecords(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	legacy := `[{"_id":"abc","title":"Sand load","amount":1200,"category":"Sand","paymentMode":"Online/UPI","date":"2024-02-01T00:00:00.000Z","createdAt":"2024-02-01T09:00:00Z"}]`
	require.NoError(t, kv.Set(ctx, KeyExpenses, legacy))

	s := openTestStore(t, kv)
	list := s.Ledger.List()
	require.Len(t, list, 1)
	assert.Equal(t, "abc", list[0].ID)
	assert.Equal(t, core.NewDate(2024, 2, 1), list[0].Date)
	assert.Equal(t, core.PaymentOnline, list[0].PaymentMode)
}

func TestLedgerFilterByCategory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memory.New())

	for _, c := range []string{"Cement", "Steel", "Cement"} {
		in := validInput()
		in.Category = c
		_, err := s.Ledger.Add(ctx, in)
		require.NoError(t, err)
	}
	assert.Len(t, s.Ledger.FilterByCategory("Cement"), 2)
	assert.Empty(t, s.Ledger.FilterByCategory("Paint"))
	assert.Equal(t, s.Ledger.List(), s.Ledger.FilterByCategory(""), "no category means all records")
}

func TestLedgerLoadKeepsAssignedIDs(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	stored := `[{"title":"Sand load","amount":1200,"category":"Sand","date":"2024-02-01"},` +
		`{"id":"keep-me","title":"Steel rods","amount":800,"category":"Steel","date":"2024-02-02","createdAt":"2024-02-02T09:00:00Z"}]`
	require.NoError(t, kv.Set(ctx, KeyExpenses, stored))

	first, err := Open(ctx, kv, Options{})
	require.NoError(t, err)
	firstList := first.Ledger.List()
	require.Len(t, firstList, 2)
	assert.NotEmpty(t, firstList[0].ID)
	assert.Equal(t, "keep-me", firstList[1].ID)

	second, err := Open(ctx, kv, Options{})
	require.NoError(t, err)
	got, ok := second.Ledger.Get(firstList[0].ID)
	require.True(t, ok, "id assigned on first load must survive a reopen")
	assert.True(t, got.CreatedAt.Equal(firstList[0].CreatedAt))
	assert.Equal(t, "keep-me", second.Ledger.List()[1].ID)
}

func TestLedgerLoadWithoutRepairsDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	stored := `[{"id":"a","title":"Steel rods","amount":800,"category":"Steel","date":"2024-02-02","createdAt":"2024-02-02T09:00:00Z"}]`
	require.NoError(t, kv.Set(ctx, KeyExpenses, stored))
	before := kv.Writes()

	openTestStore(t, kv)
	assert.Equal(t, before, kv.Writes())
}

func TestStoreAddExpenseChecksCategory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memory.New())

	in := validInput()
	in.Category = "Glass"
	_, err := s.AddExpense(ctx, in)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)

	_, err = s.Settings.AddCategory(ctx, "Glass")
	require.NoError(t, err)
	_, err = s.AddExpense(ctx, in)
	require.NoError(t, err)
}
