package receipt

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportFormat is a supported export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat validates a format name; empty means CSV
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType is the MIME type of the format
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Column is an exportable field of a bill
type Column string

const (
	ColumnDate        Column = "Date"
	ColumnVendor      Column = "Vendor"
	ColumnAmount      Column = "Amount"
	ColumnCategory    Column = "Category"
	ColumnDescription Column = "Description"
	ColumnFile        Column = "File"
)

var allColumns = []Column{ColumnDate, ColumnVendor, ColumnAmount, ColumnCategory, ColumnDescription, ColumnFile}

// DefaultColumns are exported when none are requested
var DefaultColumns = []Column{ColumnDate, ColumnVendor, ColumnAmount, ColumnCategory, ColumnDescription}

// ParseColumns parses a comma-separated column list, matching names ignoring case
func ParseColumns(s string) ([]Column, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultColumns, nil
	}
	var columns []Column
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		col, ok := lookupColumn(name)
		if !ok {
			return nil, fmt.Errorf("unknown export column %q", name)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return DefaultColumns, nil
	}
	return columns, nil
}

func lookupColumn(name string) (Column, bool) {
	for _, c := range allColumns {
		if strings.EqualFold(name, string(c)) {
			return c, true
		}
	}
	return "", false
}

// value returns the typed value of a column for one bill
func (c Column) value(b *BillView) any {
	switch c {
	case ColumnDate:
		return b.TransactionDate.String()
	case ColumnVendor:
		return b.VendorName
	case ColumnAmount:
		return b.Amount
	case ColumnCategory:
		if b.Category == nil {
			return nil
		}
		return string(*b.Category)
	case ColumnDescription:
		return b.Description
	case ColumnFile:
		return b.FileReference
	}
	return nil
}

// Export writes bills to w in the given format, restricted to columns
func Export(w io.Writer, format ExportFormat, bills []*BillView, columns []Column) error {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	switch format {
	case FormatCSV:
		return WriteCSV(w, bills, columns)
	case FormatJSON:
		return WriteJSON(w, bills, columns)
	case FormatXLSX:
		return WriteXLSX(w, bills, columns)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteCSV writes a header row followed by one row per bill
func WriteCSV(w io.Writer, bills []*BillView, columns []Column) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = string(c)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	row := make([]string, len(columns))
	for _, b := range bills {
		for i, c := range columns {
			switch v := c.value(b).(type) {
			case nil:
				row[i] = ""
			case float64:
				row[i] = strconv.FormatFloat(v, 'f', 2, 64)
			default:
				row[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// jsonRecord marshals one bill as an object whose keys follow the column order
type jsonRecord struct {
	columns []Column
	bill    *BillView
}

func (r jsonRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(c.value(r.bill))
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSON writes an indented array of objects keyed by column name
func WriteJSON(w io.Writer, bills []*BillView, columns []Column) error {
	records := make([]jsonRecord, 0, len(bills))
	for _, b := range bills {
		records = append(records, jsonRecord{columns: columns, bill: b})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook named Receipts
func WriteXLSX(w io.Writer, bills []*BillView, columns []Column) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Receipts"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = string(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing xlsx header: %w", err)
	}

	for r, b := range bills {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = c.value(b)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing xlsx row: %w", err)
		}
	}

	for i, c := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := 14.0
		switch c {
		case ColumnVendor, ColumnCategory:
			width = 24
		case ColumnDescription, ColumnFile:
			width = 48
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
