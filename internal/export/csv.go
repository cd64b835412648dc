// Package export renders the ledger into spreadsheet friendly formats.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"expenzoo/internal/core"
)

// DefaultDateLayout renders dates the way an en-IN short date does.
const DefaultDateLayout = "2/1/2006"

// ErrNoExpenses is returned when there is nothing to export.
var ErrNoExpenses = errors.New("no expenses to export")

// Header is the column row shared by every exporter.
var Header = []string{"Date", "Category", "Title", "Amount", "Description"}

type Options struct {
	// DateLayout is a time layout for the Date column.
	DateLayout string
}

func (o Options) layout() string {
	if o.DateLayout == "" {
		return DefaultDateLayout
	}
	return o.DateLayout
}

// WriteCSV writes the header and one row per expense, rows separated by a
// newline with none after the last. Text columns are always quoted.
func WriteCSV(w io.Writer, expenses []core.Expense, opts Options) error {
	if len(expenses) == 0 {
		return ErrNoExpenses
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range expenses {
		if i > 0 {
			if err := bw.WriteByte('\n'); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}
		row := strings.Join([]string{
			e.Date.Format(opts.layout()),
			quote(e.Category),
			quote(e.Title),
			core.FormatAmount(e.Amount),
			quote(e.Notes),
		}, ",")
		if _, err := bw.WriteString(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// FileName returns the conventional export name for the given instant.
func FileName(kind string, at time.Time) string {
	ext := map[string]string{"data": "csv", "backup": "json", "sheet": "xlsx"}[kind]
	if ext == "" {
		ext = "txt"
	}
	return fmt.Sprintf("expenzoo_%s_%d.%s", kind, at.UnixMilli(), ext)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func rows(expenses []core.Expense, opts Options) [][]any {
	out := make([][]any, 0, len(expenses)+1)
	head := make([]any, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	out = append(out, head)
	for _, e := range expenses {
		out = append(out, []any{e.Date.Format(opts.layout()), e.Category, e.Title, e.Amount, e.Notes})
	}
	return out
}
