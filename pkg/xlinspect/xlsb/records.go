// Package xlsb reads Excel Binary Workbook (.xlsb) files: the sheet list,
// shared strings, cell styles and worksheet cells together with the formula
// text of formula cells.
//
// Record ids below are in their raw on-disk form: the bytes of the
// variable-length id accumulated little-endian with the continuation bit
// left in place. BrtBundleSh (record type 156) is therefore 0x019C.
package xlsb

import "fmt"

// Workbook part.
const (
	recName         = 0x0027
	recWorkbookPr   = 0x0199
	recSheet        = 0x019C
	recSupSelf      = 0x02E5
	recSupSame      = 0x02E6
	recSupBookSrc   = 0x02E8
	recSupAddin     = 0x02E9
	recExternSheet  = 0x02EA
	recWorkbookEnd  = 0x0184
	recExternalsEnd = 0x02E2
)

// Worksheet part.
const (
	recRow          = 0x0000
	recBlank        = 0x0001
	recRK           = 0x0002
	recError        = 0x0003
	recBool         = 0x0004
	recReal         = 0x0005
	recInlineString = 0x0006
	recSharedString = 0x0007
	recFmlaString   = 0x0008
	recFmlaNum      = 0x0009
	recFmlaBool     = 0x000A
	recFmlaError    = 0x000B
	recRichString   = 0x003E
	recDimension    = 0x0194
	recSheetData    = 0x0191
	recSheetDataEnd = 0x0192
	recShrFmla      = 0x03AB
	recArrFmla      = 0x03AA
)

// Shared strings and styles parts.
const (
	recSI         = 0x0013
	recSSTEnd     = 0x01A0
	recNumFmt     = 0x002C
	recXF         = 0x002F
	recCellXFs    = 0x04E9
	recCellXFsEnd = 0x04EA
)

// errorStrings maps BErr codes to the text Excel shows in the cell.
var errorStrings = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
	0x2B: "#GETTING_DATA",
}

// errorString returns the Excel error text for code b, or "0xNN" when unknown.
func errorString(b byte) string {
	if s, ok := errorStrings[b]; ok {
		return s
	}
	return fmt.Sprintf("0x%02x", b)
}
