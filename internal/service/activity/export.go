// internal/service/activity/export.go
package activity

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domainactivity "boda-service/internal/domain/activity"

	"github.com/xuri/excelize/v2"
)

// exportColumns is the fixed flat projection used by the CSV and XLSX
// exports.
var exportColumns = []string{
	"id", "timestamp", "rider_id", "type", "order_id",
	"description", "amount", "commission", "net_earning", "location",
}

func exportRow(e *domainactivity.Entry) []string {
	row := make([]string, len(exportColumns))
	row[0] = strconv.FormatInt(e.ID, 10)
	row[1] = e.Timestamp.Format(time.RFC3339)
	if e.RiderID.Valid {
		row[2] = strconv.FormatInt(e.RiderID.Int64, 10)
	}
	row[3] = string(e.Type)
	if e.OrderID.Valid {
		row[4] = e.OrderID.String
	}
	row[5] = e.Description
	if e.Amount.Valid {
		row[6] = e.Amount.Decimal.StringFixed(2)
	}
	if e.Commission.Valid {
		row[7] = e.Commission.Decimal.StringFixed(2)
	}
	if e.NetEarning.Valid {
		row[8] = e.NetEarning.Decimal.StringFixed(2)
	}
	if e.Location.Valid {
		row[9] = e.Location.String
	}
	return row
}

// ExportJSON renders entries as an indented JSON array.
func ExportJSON(entries []domainactivity.Entry) ([]byte, error) {
	if entries == nil {
		entries = []domainactivity.Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// ExportCSV renders entries as a flat CSV with the fixed column set.
func ExportCSV(entries []domainactivity.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportColumns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range entries {
		if err := w.Write(exportRow(&entries[i])); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders entries as a single-sheet spreadsheet.
func ExportXLSX(entries []domainactivity.Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Activities"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
	}

	for rowIdx := range entries {
		row := exportRow(&entries[rowIdx])
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
