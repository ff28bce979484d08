// Package cellref converts between 0-based cell coordinates and A1 notation.
package cellref

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnLetter converts a 0-based column index to its Excel column letters.
// 0 is "A", 25 is "Z", 26 is "AA". Negative indices return "".
// Unlike excelize.ColumnNumberToName it is not capped at Excel's 16384 columns.
func ColumnLetter(idx int) string {
	var buf []byte
	for idx >= 0 {
		buf = append(buf, byte('A'+idx%26))
		idx = idx/26 - 1
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// CellName returns the A1 name of the cell at 0-based (col, row).
func CellName(col, row int) string {
	return ColumnLetter(col) + strconv.Itoa(row+1)
}

// AbsCellName is CellName with optional "$" markers, as used in formula text.
func AbsCellName(col, row int, colAbs, rowAbs bool) string {
	var sb strings.Builder
	if colAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(ColumnLetter(col))
	if rowAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.Itoa(row + 1))
	return sb.String()
}

// ParseCellName parses a name like "B3" or "$B$3" into 0-based (col, row).
func ParseCellName(name string) (col, row int, err error) {
	s := strings.ToUpper(strings.ReplaceAll(name, "$", ""))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, 0, fmt.Errorf("invalid cell reference %q", name)
	}
	col = -1
	for _, c := range s[:i] {
		col = (col+1)*26 + int(c-'A')
	}
	r, err := strconv.Atoi(s[i:])
	if err != nil || r < 1 {
		return 0, 0, fmt.Errorf("invalid cell reference %q", name)
	}
	return col, r - 1, nil
}
