package xlsb

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/cellref"
)

// unknownToken replaces a formula that could not be decoded.
const unknownToken = "#UNKNOWN!"

// Parsed-expression token ids. Operand tokens come in reference, value and
// array classes (0x2X, 0x4X, 0x6X); they are looked up by their 0x2X form.
const (
	ptgExp      = 0x01
	ptgAdd      = 0x03
	ptgRange    = 0x11
	ptgUplus    = 0x12
	ptgUminus   = 0x13
	ptgPercent  = 0x14
	ptgParen    = 0x15
	ptgMissArg  = 0x16
	ptgStr      = 0x17
	ptgAttr     = 0x19
	ptgErr      = 0x1C
	ptgBool     = 0x1D
	ptgInt      = 0x1E
	ptgNum      = 0x1F
	ptgArray    = 0x20
	ptgFunc     = 0x21
	ptgFuncVar  = 0x22
	ptgName     = 0x23
	ptgRef      = 0x24
	ptgArea     = 0x25
	ptgMemArea  = 0x26
	ptgMemErr   = 0x27
	ptgMemNoMem = 0x28
	ptgMemFunc  = 0x29
	ptgRefErr   = 0x2A
	ptgAreaErr  = 0x2B
	ptgRefN     = 0x2C
	ptgAreaN    = 0x2D
	ptgNameX    = 0x39
	ptgRef3d    = 0x3A
	ptgArea3d   = 0x3B
	ptgRefErr3d = 0x3C
	ptgAreaEr3d = 0x3D
)

// PtgAttr sub-types.
const (
	attrSemi   = 0x01
	attrIf     = 0x02
	attrChoose = 0x04
	attrGoto   = 0x08
	attrSum    = 0x10
	attrBaxcel = 0x20
	attrSpace  = 0x40
	attrSpaceS = 0x41
)

// Operator precedence ranks; an operand whose rank is below its operator's
// is parenthesized. Leaves and function calls bind tightest.
const (
	rankCompare = 10
	rankConcat  = 20
	rankAdd     = 30
	rankMul     = 40
	rankPower   = 50
	rankPercent = 60
	rankUnary   = 70
	rankUnion   = 76
	rankIsect   = 78
	rankRange   = 80
	rankLeaf    = 90
)

type binaryOp struct {
	sym  string
	rank int
}

// binaryOps is indexed by token id - ptgAdd.
var binaryOps = [...]binaryOp{
	{"+", rankAdd},
	{"-", rankAdd},
	{"*", rankMul},
	{"/", rankMul},
	{"^", rankPower},
	{"&", rankConcat},
	{"<", rankCompare},
	{"<=", rankCompare},
	{"=", rankCompare},
	{">=", rankCompare},
	{">", rankCompare},
	{"<>", rankCompare},
	{" ", rankIsect},
	{",", rankUnion},
	{":", rankRange},
}

var errFormulaStack = errors.New("xlsb: formula stack underflow")

type operand struct {
	text string
	rank int
}

func wrap(o operand, rank int) string {
	if o.rank < rank {
		return "(" + o.text + ")"
	}
	return o.text
}

// formulaDecoder turns one rgce/rgcb pair into formula text. Relative
// references (PtgRefN/PtgAreaN) are resolved against the cell at (row, col).
type formulaDecoder struct {
	wb       *Workbook
	rgce     *fieldReader
	rgcb     *fieldReader
	row, col int
	stack    []operand
}

// decompile renders rgce as formula text without the leading "=" for the
// cell at (row, col).
func (wb *Workbook) decompile(rgce, rgcb []byte, row, col int) (string, error) {
	d := &formulaDecoder{
		wb:   wb,
		rgce: newFieldReader(rgce),
		rgcb: newFieldReader(rgcb),
		row:  row,
		col:  col,
	}
	text, err := d.run()
	if err != nil {
		return unknownToken, fmt.Errorf("xlsb: formula at %s: %w", cellref.CellName(col, row), err)
	}
	return text, nil
}

func (d *formulaDecoder) push(text string, rank int) {
	d.stack = append(d.stack, operand{text: text, rank: rank})
}

func (d *formulaDecoder) pop() (operand, error) {
	if len(d.stack) == 0 {
		return operand{}, errFormulaStack
	}
	o := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return o, nil
}

// popN pops n operands and returns them in push order.
func (d *formulaDecoder) popN(n int) ([]operand, error) {
	if n > len(d.stack) {
		return nil, errFormulaStack
	}
	args := make([]operand, n)
	copy(args, d.stack[len(d.stack)-n:])
	d.stack = d.stack[:len(d.stack)-n]
	return args, nil
}

func (d *formulaDecoder) run() (string, error) {
	if d.rgce.remaining() == 0 {
		return "", errors.New("xlsb: empty formula")
	}
	for d.rgce.remaining() > 0 {
		op, _ := d.rgce.uint8()
		if err := d.step(op); err != nil {
			return "", err
		}
	}
	if len(d.stack) != 1 {
		return "", fmt.Errorf("xlsb: formula left %d operands", len(d.stack))
	}
	return d.stack[0].text, nil
}

func (d *formulaDecoder) step(op byte) error {
	switch {
	case op >= ptgAdd && op <= ptgRange:
		return d.binary(binaryOps[op-ptgAdd])
	case op < 0x20:
		return d.control(op)
	default:
		return d.operandToken(0x20 | op&0x1F)
	}
}

func (d *formulaDecoder) binary(bop binaryOp) error {
	args, err := d.popN(2)
	if err != nil {
		return err
	}
	left, right := args[0], args[1]
	// Operators are left-associative, so an equal-rank right operand keeps
	// its grouping only inside parentheses.
	rtext := right.text
	if right.rank <= bop.rank && right.rank < rankLeaf {
		rtext = "(" + rtext + ")"
	}
	d.push(wrap(left, bop.rank)+bop.sym+rtext, bop.rank)
	return nil
}

// control handles operator, constant and attribute tokens (ids below 0x20).
func (d *formulaDecoder) control(op byte) error {
	r := d.rgce
	switch op {
	case ptgUplus, ptgUminus:
		o, err := d.pop()
		if err != nil {
			return err
		}
		sym := "+"
		if op == ptgUminus {
			sym = "-"
		}
		d.push(sym+wrap(o, rankUnary), rankUnary)
	case ptgPercent:
		o, err := d.pop()
		if err != nil {
			return err
		}
		d.push(wrap(o, rankPercent)+"%", rankPercent)
	case ptgParen:
		o, err := d.pop()
		if err != nil {
			return err
		}
		d.push("("+o.text+")", rankLeaf)
	case ptgMissArg:
		d.push("", rankLeaf)
	case ptgStr:
		s, err := r.shortString()
		if err != nil {
			return err
		}
		d.push(`"`+strings.ReplaceAll(s, `"`, `""`)+`"`, rankLeaf)
	case ptgAttr:
		return d.attr()
	case ptgErr:
		b, err := r.uint8()
		if err != nil {
			return err
		}
		d.push(errorString(b), rankLeaf)
	case ptgBool:
		b, err := r.uint8()
		if err != nil {
			return err
		}
		text := "FALSE"
		if b != 0 {
			text = "TRUE"
		}
		d.push(text, rankLeaf)
	case ptgInt:
		v, err := r.uint16()
		if err != nil {
			return err
		}
		d.push(strconv.Itoa(int(v)), rankLeaf)
	case ptgNum:
		v, err := r.float64()
		if err != nil {
			return err
		}
		d.push(formatNumber(v), rankLeaf)
	case ptgExp:
		return errors.New("xlsb: nested shared-formula reference")
	default:
		return fmt.Errorf("xlsb: unsupported token 0x%02X", op)
	}
	return nil
}

func (d *formulaDecoder) attr() error {
	r := d.rgce
	kind, err := r.uint8()
	if err != nil {
		return err
	}
	data, err := r.uint16()
	if err != nil {
		return err
	}
	switch kind {
	case attrSum:
		o, err := d.pop()
		if err != nil {
			return err
		}
		d.push("SUM("+o.text+")", rankLeaf)
	case attrChoose:
		// The jump table holds data+1 offsets.
		return r.skip((int(data) + 1) * 2)
	case attrSemi, attrIf, attrGoto, attrBaxcel, attrSpace, attrSpaceS:
	default:
		return fmt.Errorf("xlsb: unsupported attribute 0x%02X", kind)
	}
	return nil
}

// operandToken handles class tokens, given in their reference-class form.
func (d *formulaDecoder) operandToken(base byte) error {
	r := d.rgce
	switch base {
	case ptgArray:
		if err := r.skip(14); err != nil {
			return err
		}
		text, err := d.arrayConstant()
		if err != nil {
			return err
		}
		d.push(text, rankLeaf)
	case ptgFunc:
		id, err := r.uint16()
		if err != nil {
			return err
		}
		fn, ok := functions[int(id)]
		if !ok || fn.argc < 0 {
			return fmt.Errorf("xlsb: fixed-arity call to unknown function %d", id)
		}
		return d.call(fn.name, fn.argc)
	case ptgFuncVar:
		argc, err := r.uint8()
		if err != nil {
			return err
		}
		tab, err := r.uint16()
		if err != nil {
			return err
		}
		tab &= 0x7FFF
		if tab == 255 {
			// User-defined: the first argument is the function name.
			args, err := d.popN(int(argc))
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return errFormulaStack
			}
			d.stack = append(d.stack, args[1:]...)
			return d.call(args[0].text, len(args)-1)
		}
		name := fmt.Sprintf("_xlfn.FUNC%d", tab)
		if fn, ok := functions[int(tab)]; ok {
			name = fn.name
		}
		return d.call(name, int(argc))
	case ptgName:
		idx, err := r.uint32()
		if err != nil {
			return err
		}
		d.push(d.wb.definedName(int(idx)), rankLeaf)
	case ptgRef, ptgRefN:
		row, col, err := d.cellAddress(base == ptgRefN)
		if err != nil {
			return err
		}
		d.push(row.cell(col), rankLeaf)
	case ptgArea, ptgAreaN:
		text, err := d.areaAddress(base == ptgAreaN)
		if err != nil {
			return err
		}
		d.push(text, rankLeaf)
	case ptgMemArea, ptgMemErr, ptgMemNoMem:
		if err := r.skip(6); err != nil {
			return err
		}
		if base == ptgMemArea {
			return d.skipExtraMem()
		}
	case ptgMemFunc:
		return r.skip(2)
	case ptgRefErr:
		if err := r.skip(6); err != nil {
			return err
		}
		d.push("#REF!", rankLeaf)
	case ptgAreaErr:
		if err := r.skip(12); err != nil {
			return err
		}
		d.push("#REF!", rankLeaf)
	case ptgNameX:
		if _, err := r.uint16(); err != nil {
			return err
		}
		idx, err := r.uint32()
		if err != nil {
			return err
		}
		d.push(d.wb.definedName(int(idx)), rankLeaf)
	case ptgRef3d:
		prefix, err := d.sheet()
		if err != nil {
			return err
		}
		row, col, err := d.cellAddress(false)
		if err != nil {
			return err
		}
		d.push(prefix+row.cell(col), rankLeaf)
	case ptgArea3d:
		prefix, err := d.sheet()
		if err != nil {
			return err
		}
		text, err := d.areaAddress(false)
		if err != nil {
			return err
		}
		d.push(prefix+text, rankLeaf)
	case ptgRefErr3d, ptgAreaEr3d:
		prefix, err := d.sheet()
		if err != nil {
			return err
		}
		n := 6
		if base == ptgAreaEr3d {
			n = 12
		}
		if err := r.skip(n); err != nil {
			return err
		}
		d.push(prefix+"#REF!", rankLeaf)
	default:
		return fmt.Errorf("xlsb: unsupported token 0x%02X", base)
	}
	return nil
}

func (d *formulaDecoder) call(name string, argc int) error {
	args, err := d.popN(argc)
	if err != nil {
		return err
	}
	parts := make([]string, len(args))
	for i, a := range args {
		// A union inside an argument list needs its own parentheses.
		parts[i] = a.text
		if a.rank == rankUnion {
			parts[i] = "(" + a.text + ")"
		}
	}
	d.push(name+"("+strings.Join(parts, ",")+")", rankLeaf)
	return nil
}

func (d *formulaDecoder) sheet() (string, error) {
	ixti, err := d.rgce.uint16()
	if err != nil {
		return "", err
	}
	return d.wb.sheetPrefix(int(ixti)), nil
}

// rowRef is a resolved row together with its absolute flag.
type rowRef struct {
	row int
	abs bool
}

type colRef struct {
	col int
	abs bool
}

func (r rowRef) cell(c colRef) string {
	return cellref.AbsCellName(c.col, r.row, c.abs, r.abs)
}

// cellAddress reads a row (4 bytes) and a column word whose top two bits
// flag a relative column (0x4000) and a relative row (0x8000).
func (d *formulaDecoder) cellAddress(offset bool) (rowRef, colRef, error) {
	rw, err := d.rgce.int32()
	if err != nil {
		return rowRef{}, colRef{}, err
	}
	cw, err := d.rgce.uint16()
	if err != nil {
		return rowRef{}, colRef{}, err
	}
	r, c := d.resolve(rw, cw, cw&0x8000 != 0, cw&0x4000 != 0, offset)
	return r, c, nil
}

// areaAddress reads rwFirst, rwLast, colFirst, colLast and renders the
// range, collapsing whole-column and whole-row areas to "A:B" and "1:2".
func (d *formulaDecoder) areaAddress(offset bool) (string, error) {
	var rows [2]int32
	var cols [2]uint16
	for i := range rows {
		v, err := d.rgce.int32()
		if err != nil {
			return "", err
		}
		rows[i] = v
	}
	for i := range cols {
		v, err := d.rgce.uint16()
		if err != nil {
			return "", err
		}
		cols[i] = v
	}
	r1, c1 := d.resolve(rows[0], cols[0], cols[0]&0x8000 != 0, cols[0]&0x4000 != 0, offset)
	r2, c2 := d.resolve(rows[1], cols[1], cols[1]&0x8000 != 0, cols[1]&0x4000 != 0, offset)

	switch {
	case r1.row == 0 && r2.row == maxRow:
		return colName(c1) + ":" + colName(c2), nil
	case c1.col == 0 && c2.col == maxCol:
		return rowName(r1) + ":" + rowName(r2), nil
	}
	return r1.cell(c1) + ":" + r2.cell(c2), nil
}

// resolve applies the relative flags. With offset set, relative parts are
// signed distances from the formula's own cell and wrap around the sheet.
func (d *formulaDecoder) resolve(rw int32, cw uint16, rowRel, colRel, offset bool) (rowRef, colRef) {
	row := int(uint32(rw) & maxRow)
	col := int(cw & maxCol)
	if offset {
		if rowRel {
			row = wrapIndex(d.row+int(rw), maxRow+1)
		}
		if colRel {
			delta := col
			if delta&0x2000 != 0 {
				delta -= 0x4000
			}
			col = wrapIndex(d.col+delta, maxCol+1)
		}
	}
	return rowRef{row: row, abs: !rowRel}, colRef{col: col, abs: !colRel}
}

func wrapIndex(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func colName(c colRef) string {
	if c.abs {
		return "$" + cellref.ColumnLetter(c.col)
	}
	return cellref.ColumnLetter(c.col)
}

func rowName(r rowRef) string {
	if r.abs {
		return "$" + strconv.Itoa(r.row+1)
	}
	return strconv.Itoa(r.row + 1)
}

// arrayConstant reads a PtgExtraArray from rgcb: rows, columns, then the
// values row by row. Columns are joined with "," and rows with ";".
func (d *formulaDecoder) arrayConstant() (string, error) {
	r := d.rgcb
	rows, err := r.uint32()
	if err != nil {
		return "", err
	}
	cols, err := r.uint32()
	if err != nil {
		return "", err
	}
	if uint64(rows)*uint64(cols) > uint64(r.remaining()) {
		return "", errShort
	}
	var b strings.Builder
	b.WriteByte('{')
	for i := range rows {
		if i > 0 {
			b.WriteByte(';')
		}
		for j := range cols {
			if j > 0 {
				b.WriteByte(',')
			}
			v, err := d.arrayValue()
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		}
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (d *formulaDecoder) arrayValue() (string, error) {
	r := d.rgcb
	kind, err := r.uint8()
	if err != nil {
		return "", err
	}
	switch kind {
	case 0x00:
		v, err := r.float64()
		return formatNumber(v), err
	case 0x01:
		s, err := r.shortString()
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`, err
	case 0x02:
		v, err := r.uint8()
		if v != 0 {
			return "TRUE", err
		}
		return "FALSE", err
	case 0x04:
		v, err := r.uint8()
		if err != nil {
			return "", err
		}
		return errorString(v), r.skip(3)
	}
	return "", fmt.Errorf("xlsb: unsupported array value type 0x%02X", kind)
}

// skipExtraMem consumes the PtgExtraMem that a PtgMemArea owns in rgcb.
func (d *formulaDecoder) skipExtraMem() error {
	n, err := d.rgcb.uint32()
	if err != nil {
		// Writers may leave rgcb empty when nothing later depends on it.
		return nil
	}
	return d.rgcb.skip(int(n) * 16)
}

// formatNumber prints a numeric constant the way formula text shows it:
// plain decimals, switching to exponent form for very large or small values.
func formatNumber(v float64) string {
	if a := math.Abs(v); a != 0 && (a >= 1e15 || a < 1e-4) {
		return strconv.FormatFloat(v, 'E', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
