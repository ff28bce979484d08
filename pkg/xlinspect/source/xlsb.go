package source

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/cellref"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/xlsb"
	"github.com/xuri/excelize/v2"
)

// xlsbBook adapts xlsb.Workbook to Workbook.
type xlsbBook struct {
	wb   *xlsb.Workbook
	opts Options
}

func openXLSB(path string, opts Options) (Workbook, error) {
	wb, err := xlsb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	log := opts.logger()
	for _, s := range wb.Sheets() {
		if s.Visibility != xlsb.Visible {
			log.Debug("sheet is not visible",
				slog.String("sheet", s.Name), slog.String("visibility", s.Visibility.String()))
		}
	}
	return &xlsbBook{wb: wb, opts: opts}, nil
}

func (b *xlsbBook) Format() Format { return FormatXLSB }

func (b *xlsbBook) SheetNames() []string { return b.wb.SheetNames() }

func (b *xlsbBook) Close() error { return b.wb.Close() }

func (b *xlsbBook) Rows(sheet string) iter.Seq2[Row, error] {
	name, err := resolveSheet(b.wb.SheetNames(), sheet)
	if err != nil {
		return failed(err)
	}
	ws, err := b.wb.Sheet(name)
	if err != nil {
		return failed(err)
	}
	log := b.opts.logger()
	ws.OnSkip = func(row int, err error) {
		log.Warn("skipped malformed cell record",
			slog.String("sheet", name), slog.Int("row", row+1), slog.Any("error", err))
	}
	return func(yield func(Row, error) bool) {
		for r, err := range ws.Rows() {
			if err != nil {
				yield(Row{}, err)
				return
			}
			row := Row{Index: r.Index, Cells: make([]Cell, len(r.Cells))}
			for i, c := range r.Cells {
				if c.FormulaErr != nil {
					log.Warn("formula not fully decoded",
						slog.String("sheet", name),
						slog.String("cell", cellref.CellName(c.Col, r.Index)),
						slog.Any("error", c.FormulaErr))
				}
				row.Cells[i] = Cell{Value: b.value(c), Formula: c.Formula}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (b *xlsbBook) value(c xlsb.Cell) any {
	v, ok := c.Value.(float64)
	if !ok || !b.opts.ConvertDates || !b.wb.Styles.IsDate(c.Style) {
		return c.Value
	}
	t, err := excelize.ExcelDateToTime(v, b.wb.Date1904)
	if err != nil {
		return c.Value
	}
	return t
}
