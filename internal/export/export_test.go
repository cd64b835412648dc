package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenzoo/internal/core"
)

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{ID: "1", Title: `Bricks, "red"`, Amount: 1500.5, Category: "Bricks", PaymentMode: core.PaymentCash,
			Notes: "two loads", Date: core.NewDate(2024, 3, 5)},
		{ID: "2", Title: "Mason wages", Amount: 8000, Category: "Labour", PaymentMode: core.PaymentOnline,
			Date: core.NewDate(2024, 11, 20)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleExpenses(), Options{}))

	want := "Date,Category,Title,Amount,Description\n" +
		`5/3/2024,"Bricks","Bricks, ""red""",1500.5,"two loads"` + "\n" +
		`20/11/2024,"Labour","Mason wages",8000,""`
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVLayoutAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleExpenses()[:1], Options{DateLayout: core.DateLayout}))
	assert.True(t, strings.HasPrefix(strings.Split(buf.String(), "\n")[1], "2024-03-05,"))

	assert.ErrorIs(t, WriteCSV(&buf, nil, Options{}), ErrNoExpenses)
}

func TestFileName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "expenzoo_data_1700000000123.csv", FileName("data", at))
	assert.Equal(t, "expenzoo_backup_1700000000123.json", FileName("backup", at))
	assert.Equal(t, "expenzoo_sheet_1700000000123.xlsx", FileName("sheet", at))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleExpenses(), Options{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Header, got[0])
	assert.Equal(t, []string{"5/3/2024", "Bricks", `Bricks, "red"`, "1500.5", "two loads"}, got[1])
	assert.Equal(t, "Mason wages", got[2][2])

	assert.ErrorIs(t, WriteXLSX(&buf, nil, Options{}), ErrNoExpenses)
}

func TestSheetsExporterPush(t *testing.T) {
	var (
		cleared bool
		pushed  gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
			cleared = true
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
			assert.Contains(t, r.URL.Path, "sheet-123")
			_ = json.NewDecoder(r.Body).Decode(&pushed)
			_, _ = w.Write([]byte(`{"updatedRows": 3}`))
		default:
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	x, err := NewSheetsExporter(ctx, SheetsConfig{SpreadsheetID: "sheet-123"},
		goption.WithEndpoint(srv.URL+"/"), goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, x.Push(ctx, sampleExpenses()))
	assert.True(t, cleared)
	require.Len(t, pushed.Values, 3)
	assert.Equal(t, "Date", pushed.Values[0][0])
	assert.Equal(t, "Labour", pushed.Values[2][1])

	assert.True(t, errors.Is(x.Push(ctx, nil), ErrNoExpenses))
}

func TestNewSheetsExporterRequiresConfig(t *testing.T) {
	_, err := NewSheetsExporter(context.Background(), SheetsConfig{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())

	_, err = NewSheetsExporter(context.Background(), SheetsConfig{SpreadsheetID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account")
}
