package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the only accepted input format for an expense date.
const DateLayout = "2006-01-02"

const (
	PaymentCash   PaymentMode = "Cash"
	PaymentOnline PaymentMode = "Online/UPI"
	PaymentCard   PaymentMode = "Card/Bank"
	PaymentOther  PaymentMode = "Other"
)

const (
	MinTitleLength = 3
	MaxTitleLength = 100
	MaxNotesLength = 500
)

type (
	PaymentMode string

	// Date is a calendar date without a time of day. It is stored at UTC midnight.
	Date struct {
		time.Time
	}

	// Expense is a single ledger record. Records are replaced whole by id;
	// ID and CreatedAt never change after creation.
	Expense struct {
		ID          string      `json:"id"`
		Title       string      `json:"title"`
		Amount      float64     `json:"amount"`
		Category    string      `json:"category"`
		PaymentMode PaymentMode `json:"paymentMode"`
		Notes       string      `json:"notes"`
		Date        Date        `json:"date"`
		CreatedAt   time.Time   `json:"createdAt"`
	}

	// ExpenseInput carries user supplied fields for a new expense.
	ExpenseInput struct {
		Title       string
		Amount      float64
		Category    string
		PaymentMode string
		Notes       string
		Date        string
	}

	// ExpensePatch carries the fields to merge onto an existing expense.
	// Nil fields keep their current value.
	ExpensePatch struct {
		Title       *string
		Amount      *float64
		Category    *string
		PaymentMode *string
		Notes       *string
		Date        *string
	}
)

var paymentAliases = map[string]PaymentMode{
	"cash":       PaymentCash,
	"online/upi": PaymentOnline,
	"online":     PaymentOnline,
	"upi":        PaymentOnline,
	"card/bank":  PaymentCard,
	"card":       PaymentCard,
	"bank":       PaymentCard,
	"other":      PaymentOther,
}

// PaymentModes returns the accepted payment modes in display order.
func PaymentModes() []PaymentMode {
	return []PaymentMode{PaymentCash, PaymentOnline, PaymentCard, PaymentOther}
}

// ParsePaymentMode maps user input onto a PaymentMode. Empty input means cash.
func ParsePaymentMode(s string) (PaymentMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentCash, nil
	}
	if m, ok := paymentAliases[strings.ToLower(s)]; ok {
		return m, nil
	}
	return "", &ValidationError{Field: "paymentMode", Reason: "must be one of Cash, Online/UPI, Card/Bank, Other"}
}

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentOnline, PaymentCard, PaymentOther:
		return true
	default:
		return false
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts strictly YYYY-MM-DD with a real calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return Date{}, &ValidationError{Field: "date", Reason: "must use the YYYY-MM-DD format"}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: "must be a valid YYYY-MM-DD calendar date"}
	}
	return Date{Time: t}, nil
}

// DateOf truncates a timestamp to its calendar date in the timestamp's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// SameMonth reports whether d falls in the calendar month and year of t.
func (d Date) SameMonth(t time.Time) bool {
	return d.Year() == t.Year() && d.Month() == t.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD and, for older backups, a full RFC 3339
// timestamp whose date part is kept as written, in the timestamp's own
// offset. A "Z" timestamp therefore yields the UTC calendar day.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return &ValidationError{Field: "date", Reason: "unrecognised date " + s}
	}
	*d = NewDate(t.Year(), int(t.Month()), t.Day())
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < MinTitleLength {
		return &ValidationError{Field: "title", Reason: "must be at least 3 characters"}
	}
	if n > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: "must be at most 100 characters"}
	}
	return nil
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be a positive number"}
	}
	return nil
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return &ValidationError{Field: "notes", Reason: "must be at most 500 characters"}
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateTitle(e.Title); err != nil {
		return err
	}
	if err := validateAmount(e.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	if !e.PaymentMode.Valid() {
		return &ValidationError{Field: "paymentMode", Reason: "must be one of Cash, Online/UPI, Card/Bank, Other"}
	}
	if err := validateNotes(e.Notes); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	return nil
}

// Build validates the input and produces a record with the given identity.
func (in ExpenseInput) Build(id string, createdAt time.Time) (Expense, error) {
	date, err := ParseDate(in.Date)
	if err != nil {
		return Expense{}, err
	}
	mode, err := ParsePaymentMode(in.PaymentMode)
	if err != nil {
		return Expense{}, err
	}
	e := Expense{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		PaymentMode: mode,
		Notes:       strings.TrimSpace(in.Notes),
		Date:        date,
		CreatedAt:   createdAt,
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Apply merges the patch onto e and validates the result. ID and CreatedAt
// are carried over from e.
func (p ExpensePatch) Apply(e Expense) (Expense, error) {
	out := e
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Category != nil {
		out.Category = strings.TrimSpace(*p.Category)
	}
	if p.PaymentMode != nil {
		mode, err := ParsePaymentMode(*p.PaymentMode)
		if err != nil {
			return Expense{}, err
		}
		out.PaymentMode = mode
	}
	if p.Notes != nil {
		out.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Date != nil {
		date, err := ParseDate(*p.Date)
		if err != nil {
			return Expense{}, err
		}
		out.Date = date
	}
	if err := out.Validate(); err != nil {
		return Expense{}, err
	}
	return out, nil
}

// Empty reports whether the patch changes nothing.
func (p ExpensePatch) Empty() bool {
	return p.Title == nil && p.Amount == nil && p.Category == nil &&
		p.PaymentMode == nil && p.Notes == nil && p.Date == nil
}
