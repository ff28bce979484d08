package xlsb

import (
	"fmt"
	"iter"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/cellref"
)

// Excel's largest row and column indices (0-based).
const (
	maxRow = 0xFFFFF
	maxCol = 0x3FFF
)

// Dimension is the used range declared by BrtWsDim.
type Dimension struct {
	R int // first row, 0-based
	C int // first column, 0-based
	H int // number of rows
	W int // number of columns
}

// Cell is a single worksheet cell.
//
// Value is nil for a blank cell, or one of string, float64 and bool. Error
// cells hold the Excel error text (e.g. "#DIV/0!"). Formula is the decompiled
// formula text without the leading "=", empty for constant cells. FormulaErr
// is set when the formula could not be decoded; Formula is then "#UNKNOWN!".
type Cell struct {
	Col        int
	Value      any
	Formula    string
	FormulaErr error
	Style      int
}

// Row is one worksheet row. Cells is dense from column 0.
type Row struct {
	Index int
	Cells []Cell
}

// sharedFormula is a BrtShrFmla or BrtArrFmla body with its anchor range.
type sharedFormula struct {
	rowFirst, rowLast int
	colFirst, colLast int
	rgce             []byte
	rgcb             []byte
}

func (sf *sharedFormula) contains(row, col int) bool {
	return row >= sf.rowFirst && row <= sf.rowLast && col >= sf.colFirst && col <= sf.colLast
}

// Worksheet is one parsed worksheet part.
type Worksheet struct {
	// Name is the sheet tab name.
	Name string
	// Dimension is nil when the part has no BrtWsDim record.
	Dimension *Dimension
	// OnSkip, when set, is called for every cell record Rows drops as
	// malformed. row is 0-based.
	OnSkip func(row int, err error)

	data         []byte
	dataOffset   int
	hasSheetData bool
	shared       []*sharedFormula
	wb           *Workbook
}

// newWorksheet pre-scans data for the dimension, the start of the sheet data
// and the shared and array formula bodies that formula cells point at. The
// pre-scan stops quietly at a corrupt record; Rows reports it.
func newWorksheet(name string, data []byte, wb *Workbook) *Worksheet {
	ws := &Worksheet{Name: name, data: data, wb: wb}
	rs := newRecordStream(data)
	for {
		id, rec, err := rs.next()
		if err != nil {
			return ws
		}
		switch id {
		case recDimension:
			if dim, err := parseDimension(rec); err == nil {
				ws.Dimension = &dim
			}
		case recSheetData:
			if !ws.hasSheetData {
				ws.dataOffset = rs.pos
				ws.hasSheetData = true
			}
		case recShrFmla:
			if sf, err := parseSharedFormula(rec, false); err == nil {
				ws.shared = append(ws.shared, sf)
			}
		case recArrFmla:
			if sf, err := parseSharedFormula(rec, true); err == nil {
				ws.shared = append(ws.shared, sf)
			}
		}
	}
}

// Rows yields the sheet's rows in order. Rows missing from the stream
// between the first and last stored row are yielded with their cells blank,
// so Index always increases by one. Cells under a row header lower than the
// current row are reported to OnSkip and dropped. A corrupt record stream ends the
// sequence with a non-nil error.
func (ws *Worksheet) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if !ws.hasSheetData {
			return
		}
		rs := newRecordStream(ws.data)
		rs.pos = ws.dataOffset

		width := 1
		if ws.Dimension != nil {
			width = max(ws.Dimension.C+ws.Dimension.W, 1)
		}
		var cur *Row
		stale := -1
		for {
			id, rec, err := rs.next()
			if err != nil {
				if cur != nil && !yield(*cur, nil) {
					return
				}
				if !isEOF(err) {
					yield(Row{}, fmt.Errorf("xlsb: sheet %q: %w", ws.Name, err))
				}
				return
			}
			switch {
			case id == recRow:
				r, err := newFieldReader(rec).uint32()
				if err != nil || r > maxRow {
					continue
				}
				idx := int(r)
				if cur != nil && idx < cur.Index {
					// Rows already yielded cannot be reopened; drop this header's cells.
					stale = idx
					continue
				}
				stale = -1
				if cur != nil && idx == cur.Index {
					continue
				}
				next := 0
				if cur != nil {
					if !yield(*cur, nil) {
						return
					}
					next = cur.Index + 1
				}
				for ; next < idx; next++ {
					if !yield(emptyRow(next, width), nil) {
						return
					}
				}
				row := emptyRow(idx, width)
				cur = &row

			case isCellRecord(id):
				if cur == nil {
					continue
				}
				if stale >= 0 {
					if ws.OnSkip != nil {
						ws.OnSkip(stale, fmt.Errorf("cell record 0x%04X: row %d follows row %d", id, stale, cur.Index))
					}
					continue
				}
				c, err := ws.parseCell(id, rec, cur.Index)
				if err == nil && c.Col > maxCol {
					err = fmt.Errorf("column %d out of range", c.Col)
				}
				if err != nil {
					if ws.OnSkip != nil {
						ws.OnSkip(cur.Index, fmt.Errorf("cell record 0x%04X: %w", id, err))
					}
					continue
				}
				for len(cur.Cells) <= c.Col {
					cur.Cells = append(cur.Cells, Cell{Col: len(cur.Cells)})
				}
				cur.Cells[c.Col] = c

			case id == recSheetDataEnd:
				if cur != nil {
					yield(*cur, nil)
				}
				return
			}
		}
	}
}

func emptyRow(idx, width int) Row {
	cells := make([]Cell, width)
	for i := range cells {
		cells[i].Col = i
	}
	return Row{Index: idx, Cells: cells}
}

func isCellRecord(id int) bool {
	return (id >= recBlank && id <= recFmlaError) || id == recRichString
}

// parseCell decodes one cell record. Every cell record starts with the
// column and the style index; the value layout depends on the record type.
func (ws *Worksheet) parseCell(id int, rec []byte, row int) (Cell, error) {
	fr := newFieldReader(rec)
	col, err := fr.uint32()
	if err != nil {
		return Cell{}, err
	}
	style, err := fr.uint32()
	if err != nil {
		return Cell{}, err
	}
	c := Cell{Col: int(col), Style: int(style & 0xFFFFFF)}

	switch id {
	case recBlank:
	case recRK:
		c.Value, err = fr.rk()
	case recError:
		var b uint8
		if b, err = fr.uint8(); err == nil {
			c.Value = errorString(b)
		}
	case recBool:
		var b uint8
		if b, err = fr.uint8(); err == nil {
			c.Value = b != 0
		}
	case recReal:
		c.Value, err = fr.float64()
	case recInlineString:
		c.Value, err = fr.wideString()
	case recRichString:
		if err = fr.skip(1); err == nil {
			c.Value, err = fr.wideString()
		}
	case recSharedString:
		var idx uint32
		if idx, err = fr.uint32(); err == nil {
			c.Value = ws.wb.sharedString(idx)
		}
	case recFmlaString:
		c.Value, err = fr.wideString()
	case recFmlaNum:
		c.Value, err = fr.float64()
	case recFmlaBool:
		var b uint8
		if b, err = fr.uint8(); err == nil {
			c.Value = b != 0
		}
	case recFmlaError:
		var b uint8
		if b, err = fr.uint8(); err == nil {
			c.Value = errorString(b)
		}
	}
	if err != nil {
		return Cell{}, err
	}
	if id >= recFmlaString && id <= recFmlaError {
		ws.readFormula(fr, &c, row)
	}
	return c, nil
}

// readFormula decodes the CellParsedFormula that follows the cached value
// of a formula cell. A truncated formula leaves the cached value intact.
func (ws *Worksheet) readFormula(fr *fieldReader, c *Cell, row int) {
	if err := fr.skip(2); err != nil { // grbitFlags
		c.Formula, c.FormulaErr = unknownToken, err
		return
	}
	rgce, rgcb, err := readParsedFormula(fr)
	if err != nil {
		c.Formula, c.FormulaErr = unknownToken, err
		return
	}
	if len(rgce) == 5 && rgce[0] == ptgExp {
		expRow := int(uint32(rgce[1]) | uint32(rgce[2])<<8 | uint32(rgce[3])<<16 | uint32(rgce[4])<<24)
		if sf := ws.sharedFor(expRow, row, c.Col); sf != nil {
			c.Formula, c.FormulaErr = ws.wb.decompile(sf.rgce, sf.rgcb, row, c.Col)
			return
		}
		c.Formula = unknownToken
		c.FormulaErr = fmt.Errorf("xlsb: no shared formula anchored at row %d for %s", expRow+1, cellref.CellName(c.Col, row))
		return
	}
	c.Formula, c.FormulaErr = ws.wb.decompile(rgce, rgcb, row, c.Col)
}

// sharedFor finds the shared or array formula anchored at anchorRow that
// covers the cell at (row, col).
func (ws *Worksheet) sharedFor(anchorRow, row, col int) *sharedFormula {
	for _, sf := range ws.shared {
		if sf.rowFirst == anchorRow && sf.contains(row, col) {
			return sf
		}
	}
	return nil
}

// readParsedFormula reads cce, rgce, cb and rgcb.
func readParsedFormula(fr *fieldReader) (rgce, rgcb []byte, err error) {
	cce, err := fr.uint32()
	if err != nil {
		return nil, nil, err
	}
	if rgce, err = fr.bytes(int(cce)); err != nil {
		return nil, nil, err
	}
	cb, err := fr.uint32()
	if err != nil {
		// Some writers omit an empty rgcb entirely.
		return rgce, nil, nil
	}
	if rgcb, err = fr.bytes(int(cb)); err != nil {
		return nil, nil, err
	}
	return rgce, rgcb, nil
}

// parseSharedFormula decodes BrtShrFmla (RfX + formula) or BrtArrFmla
// (RfX + flags + formula).
func parseSharedFormula(rec []byte, array bool) (*sharedFormula, error) {
	fr := newFieldReader(rec)
	var rfx [4]uint32
	for i := range rfx {
		v, err := fr.uint32()
		if err != nil {
			return nil, err
		}
		rfx[i] = v
	}
	if array {
		if err := fr.skip(1); err != nil {
			return nil, err
		}
	}
	rgce, rgcb, err := readParsedFormula(fr)
	if err != nil {
		return nil, err
	}
	return &sharedFormula{
		rowFirst: int(rfx[0]),
		rowLast:  int(rfx[1]),
		colFirst: int(rfx[2]),
		colLast:  int(rfx[3]),
		rgce:     rgce,
		rgcb:     rgcb,
	}, nil
}

// parseDimension decodes BrtWsDim: rwFirst, rwLast, colFirst, colLast.
func parseDimension(rec []byte) (Dimension, error) {
	fr := newFieldReader(rec)
	var v [4]uint32
	for i := range v {
		x, err := fr.uint32()
		if err != nil {
			return Dimension{}, err
		}
		v[i] = x
	}
	r1, r2, c1, c2 := v[0], v[1], v[2], v[3]
	if r2 < r1 || c2 < c1 {
		return Dimension{}, fmt.Errorf("xlsb: inverted dimension %d:%d x %d:%d", r1, r2, c1, c2)
	}
	if r2 > maxRow || c2 > maxCol {
		return Dimension{}, fmt.Errorf("xlsb: dimension beyond sheet limits")
	}
	return Dimension{R: int(r1), C: int(c1), H: int(r2-r1) + 1, W: int(c2-c1) + 1}, nil
}
