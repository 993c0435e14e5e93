package history

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "History"

// ExportXLSX renders history entries into an Excel workbook, one row per
// entry in the order given (callers pass most-recent-first listings).
func ExportXLSX(entries []Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create export sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []any{"Date", "Name", "Quantity", "Unit Price", "Total Price", "Currency", "Manual"}
	if err := f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write export header: %w", err)
	}

	for i, e := range entries {
		manual := ""
		if e.Manual {
			manual = "yes"
		}
		row := []any{e.CreatedAt, e.Name, e.Quantity, e.UnitPrice, e.TotalPrice, e.Currency, manual}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write export row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize export workbook: %w", err)
	}
	return buf.Bytes(), nil
}
