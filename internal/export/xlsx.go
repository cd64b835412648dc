package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"expenzoo/internal/core"
)

// SheetName is the worksheet that holds exported rows.
const SheetName = "Expenses"

// WriteXLSX writes the same columns as WriteCSV into a single worksheet.
func WriteXLSX(w io.Writer, expenses []core.Expense, opts Options) error {
	if len(expenses) == 0 {
		return ErrNoExpenses
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, row := range rows(expenses, opts) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.SetColWidth(SheetName, "B", "C", 24); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
