package source

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/xlsb"
	"github.com/xuri/excelize/v2"
)

// xlsxBook reads OOXML workbooks through excelize.
type xlsxBook struct {
	f        *excelize.File
	format   Format
	opts     Options
	date1904 bool
	dateXF   map[int]bool
}

func openXLSX(path string, opts Options, format Format) (Workbook, error) {
	f, err := excelize.OpenFile(path, excelize.Options{Password: opts.Password})
	if err != nil {
		if errors.Is(err, excelize.ErrWorkbookPassword) {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	b := &xlsxBook{f: f, format: format, opts: opts, dateXF: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		b.date1904 = *props.Date1904
	}
	return b, nil
}

func (b *xlsxBook) Format() Format { return b.format }

func (b *xlsxBook) SheetNames() []string { return b.f.GetSheetList() }

func (b *xlsxBook) Close() error { return b.f.Close() }

func (b *xlsxBook) Rows(sheet string) iter.Seq2[Row, error] {
	name, err := resolveSheet(b.f.GetSheetList(), sheet)
	if err != nil {
		return failed(err)
	}
	return func(yield func(Row, error) bool) {
		rows, err := b.f.Rows(name)
		if err != nil {
			yield(Row{}, fmt.Errorf("read sheet %q: %w", name, err))
			return
		}
		defer rows.Close()

		for idx := 0; rows.Next(); idx++ {
			cols, err := rows.Columns(excelize.Options{RawCellValue: true})
			if err != nil {
				yield(Row{}, fmt.Errorf("read sheet %q row %d: %w", name, idx+1, err))
				return
			}
			row := Row{Index: idx, Cells: make([]Cell, len(cols))}
			for c, raw := range cols {
				row.Cells[c] = b.cell(name, c, idx, raw)
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(Row{}, fmt.Errorf("read sheet %q: %w", name, err))
		}
	}
}

// cell types the raw string excelize returns using the stored cell type.
// The per-cell lookups go through excelize's parsed worksheet, which it
// loads whole on the first call for a sheet and caches on the File, so an
// xlsx sheet is held in memory once while its rows stream.
func (b *xlsxBook) cell(sheet string, col, row int, raw string) Cell {
	ref, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Cell{Value: nilIfEmpty(raw)}
	}
	var c Cell
	if formula, err := b.f.GetCellFormula(sheet, ref); err == nil {
		c.Formula = formula
	}
	if raw == "" {
		return c
	}

	typ, err := b.f.GetCellType(sheet, ref)
	if err != nil {
		c.Value = raw
		return c
	}
	switch typ {
	case excelize.CellTypeBool:
		c.Value = raw == "1" || raw == "TRUE" || raw == "true"
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError, excelize.CellTypeDate:
		c.Value = raw
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.Value = raw
			return c
		}
		c.Value = b.maybeDate(sheet, ref, v)
	}
	return c
}

// maybeDate converts v to time.Time when date conversion is on and the
// cell's number format is a date or time format.
func (b *xlsxBook) maybeDate(sheet, ref string, v float64) any {
	if !b.opts.ConvertDates {
		return v
	}
	styleID, err := b.f.GetCellStyle(sheet, ref)
	if err != nil || !b.isDateStyle(styleID) {
		return v
	}
	t, err := excelize.ExcelDateToTime(v, b.date1904)
	if err != nil {
		b.opts.logger().Warn("date conversion failed",
			slog.String("sheet", sheet), slog.String("cell", ref), slog.Any("error", err))
		return v
	}
	return t
}

func (b *xlsxBook) isDateStyle(styleID int) bool {
	if isDate, ok := b.dateXF[styleID]; ok {
		return isDate
	}
	isDate := false
	if st, err := b.f.GetStyle(styleID); err == nil && st != nil {
		custom := ""
		if st.CustomNumFmt != nil {
			custom = *st.CustomNumFmt
		}
		isDate = xlsb.IsDateFormat(st.NumFmt, custom)
	}
	b.dateXF[styleID] = isDate
	return isDate
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
