package source

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/prodocs/harvest-cli/internal/model"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int             // default 0
	SheetName  string          // if set, overrides SheetIndex
	SkipRows   int             // number of header rows to skip
	HeaderCh   chan<- []string // optional: receives the first row
}

// ReadXLSX reads an XLSX file and returns all rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)

		if i == 0 && opts.HeaderCh != nil {
			opts.HeaderCh <- cells
		}

		if i < opts.SkipRows {
			continue
		}

		rows = append(rows, cells)
	}

	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// readXLSXItems parses a spreadsheet into WorkItems. Legacy .xls files that
// are not zip-based will fail at open with a wrapped parse error.
func readXLSXItems(ctx context.Context, path, defaultLabel string) ([]model.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "xlsx: context cancelled")
	}

	headerCh := make(chan []string, 1)
	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
	if err != nil {
		return nil, err
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, nil
	}

	return itemsFromTable(header, rows, defaultLabel)
}
