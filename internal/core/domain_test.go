package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-15", true},
		{"2024-02-29", true},
		{" 2025-12-31 ", true},
		{"2023-02-29", false}, // not a leap year
		{"2024-1-5", false},
		{"15/01/2024", false},
		{"2024-01-15T10:00:00Z", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok {
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != "date" {
				t.Fatalf("%q expected date validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 15))
	if err != nil || string(b) != `"2024-02-15"` {
		t.Fatalf("marshal: %s %v", b, err)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-02-15T18:30:00.000Z"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if d.String() != "2024-02-15" {
		t.Fatalf("expected date part, got %s", d)
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &d); err == nil {
		t.Fatalf("expected error for junk date")
	}
}

func TestDateUnmarshalKeepsTimestampCalendarDay(t *testing.T) {
	// The date part is read in the timestamp's own offset; no local zone
	// is applied.
	tests := []struct {
		in   string
		want string
	}{
		{`"2024-02-19T20:00:00Z"`, "2024-02-19"},
		{`"2024-02-18T23:45:00.000Z"`, "2024-02-18"},
		{`"2024-02-19T01:00:00+05:30"`, "2024-02-19"},
		{`"2024-02-19T23:30:00-08:00"`, "2024-02-19"},
	}
	for _, tt := range tests {
		var d Date
		if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if d.String() != tt.want {
			t.Errorf("%s: got %s, want %s", tt.in, d, tt.want)
		}
	}
}

func TestExpenseInputBuild(t *testing.T) {
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	good := ExpenseInput{
		Title:    "  Cement bags  ",
		Amount:   1250.5,
		Category: "Cement",
		Date:     "2024-02-01",
	}
	e, err := good.Build("id-1", created)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if e.Title != "Cement bags" || e.PaymentMode != PaymentCash || !e.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record: %+v", e)
	}

	tests := []struct {
		name  string
		in    ExpenseInput
		field string
	}{
		{"short title", ExpenseInput{Title: " ab ", Amount: 1, Category: "Sand", Date: "2024-02-01"}, "title"},
		{"long title", ExpenseInput{Title: strings.Repeat("x", 101), Amount: 1, Category: "Sand", Date: "2024-02-01"}, "title"},
		{"zero amount", ExpenseInput{Title: "Sand", Amount: 0, Category: "Sand", Date: "2024-02-01"}, "amount"},
		{"negative amount", ExpenseInput{Title: "Sand", Amount: -3, Category: "Sand", Date: "2024-02-01"}, "amount"},
		{"bad date", ExpenseInput{Title: "Sand", Amount: 1, Category: "Sand", Date: "01-02-2024"}, "date"},
		{"missing category", ExpenseInput{Title: "Sand", Amount: 1, Date: "2024-02-01"}, "category"},
		{"bad payment", ExpenseInput{Title: "Sand", Amount: 1, Category: "Sand", Date: "2024-02-01", PaymentMode: "Cheque"}, "paymentMode"},
		{"long notes", ExpenseInput{Title: "Sand", Amount: 1, Category: "Sand", Date: "2024-02-01", Notes: strings.Repeat("n", 501)}, "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Build("x", created)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestExpensePatchApply(t *testing.T) {
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	orig, err := ExpenseInput{Title: "Steel rods", Amount: 100, Category: "Steel", Date: "2024-02-01"}.Build("id-9", created)
	if err != nil {
		t.Fatal(err)
	}

	amount := 150.0
	mode := "upi"
	merged, err := ExpensePatch{Amount: &amount, PaymentMode: &mode}.Apply(orig)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if merged.ID != "id-9" || !merged.CreatedAt.Equal(created) {
		t.Fatalf("identity changed: %+v", merged)
	}
	if merged.Amount != 150 || merged.PaymentMode != PaymentOnline || merged.Title != "Steel rods" {
		t.Fatalf("unexpected merge: %+v", merged)
	}

	short := "x"
	if _, err := (ExpensePatch{Title: &short}).Apply(orig); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !(ExpensePatch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestParsePaymentMode(t *testing.T) {
	cases := map[string]PaymentMode{
		"":           PaymentCash,
		"cash":       PaymentCash,
		"Online/UPI": PaymentOnline,
		"Online":     PaymentOnline,
		"card":       PaymentCard,
		"Card/Bank":  PaymentCard,
		"OTHER":      PaymentOther,
	}
	for in, want := range cases {
		got, err := ParsePaymentMode(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %q, got %q (err=%v)", in, want, got, err)
		}
	}
}

func TestHealthFor(t *testing.T) {
	cases := []struct {
		pct  float64
		want Health
	}{
		{0, HealthHealthy},
		{70, HealthHealthy},
		{70.1, HealthWarning},
		{90, HealthWarning},
		{90.5, HealthCritical},
		{250, HealthCritical},
	}
	for _, tc := range cases {
		if got := HealthFor(tc.pct); got != tc.want {
			t.Fatalf("HealthFor(%v) = %s, want %s", tc.pct, got, tc.want)
		}
	}
}

func TestCategoryHelpers(t *testing.T) {
	if !IsProtectedCategory("Cement") || IsProtectedCategory("Painting") {
		t.Fatalf("unexpected protected set")
	}
	got := DedupeCategories([]string{" Sand ", "Steel", "Sand", "", "sand"})
	if strings.Join(got, "|") != "Sand|Steel|sand" {
		t.Fatalf("unexpected dedupe: %v", got)
	}
	defaults := DefaultCategories()
	defaults[0] = "mutated"
	if DefaultCategories()[0] != "Cement" {
		t.Fatalf("defaults must be copied")
	}
	if err := ValidateBudget(0); !IsValidation(err) {
		t.Fatalf("expected validation error for zero budget")
	}
}
