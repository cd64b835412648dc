package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenzoo/internal/core"
)

// SheetsConfig locates the target spreadsheet and the credentials to reach it.
type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	DateLayout         string
}

// SheetsConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME and the
// service account variables.
func SheetsConfigFromEnv() SheetsConfig {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return SheetsConfig{
		SpreadsheetID:      strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:          strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		ServiceAccountJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		ServiceAccountFile: file,
		DateLayout:         strings.TrimSpace(os.Getenv("CSV_DATE_LAYOUT")),
	}
}

// SheetsExporter overwrites one sheet of a Google spreadsheet with the ledger.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	opts          Options
}

// NewSheetsExporter authenticates with a service account and builds the
// exporter. Extra client options are appended after the credentials.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, extra ...goption.ClientOption) (*SheetsExporter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var clientOpts []goption.ClientOption
	switch {
	case cfg.ServiceAccountJSON != "":
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case cfg.ServiceAccountFile != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(data))
	case len(extra) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	clientOpts = append(clientOpts, goption.WithScopes(gsheet.SpreadsheetsScope))
	clientOpts = append(clientOpts, extra...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	name := cfg.SheetName
	if name == "" {
		name = SheetName
	}
	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     name,
		opts:          Options{DateLayout: cfg.DateLayout},
	}, nil
}

// Push clears the sheet and writes the header plus one row per expense.
func (x *SheetsExporter) Push(ctx context.Context, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return ErrNoExpenses
	}

	rng := fmt.Sprintf("%s!A:E", x.sheetName)
	if _, err := x.svc.Spreadsheets.Values.Clear(x.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	target := fmt.Sprintf("%s!A1", x.sheetName)
	vr := &gsheet.ValueRange{Values: rows(expenses, x.opts)}
	resp, err := x.svc.Spreadsheets.Values.Update(x.spreadsheetID, target, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", target, err)
	}

	slog.InfoContext(ctx, "Expenses pushed to sheet",
		"spreadsheet_id", x.spreadsheetID,
		"sheet", x.sheetName,
		"rows", resp.UpdatedRows)
	return nil
}
