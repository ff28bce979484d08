package parser

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// dataBounds accumulates the bounding box of non-empty cells while rows
// stream past, together with the number of cells inside it.
type dataBounds struct {
	minRow, maxRow int
	minCol, maxCol int
	nonEmpty       int
}

func (b *dataBounds) add(row, col int) {
	if b.nonEmpty == 0 {
		b.minRow, b.maxRow = row, row
		b.minCol, b.maxCol = col, col
	} else {
		b.minRow = min(b.minRow, row)
		b.maxRow = max(b.maxRow, row)
		b.minCol = min(b.minCol, col)
		b.maxCol = max(b.maxCol, col)
	}
	b.nonEmpty++
}

// summary returns the bounds in A1 range notation and the fill density of
// the range. ok is false when no cell was added.
func (b *dataBounds) summary() (rng string, density float64, ok bool) {
	if b.nonEmpty == 0 {
		return "", 0, false
	}
	startCell, err := excelize.CoordinatesToCellName(b.minCol+1, b.minRow+1)
	if err != nil {
		return "", 0, false
	}
	endCell, err := excelize.CoordinatesToCellName(b.maxCol+1, b.maxRow+1)
	if err != nil {
		return "", 0, false
	}
	totalCells := (b.maxRow - b.minRow + 1) * (b.maxCol - b.minCol + 1)
	return fmt.Sprintf("%s:%s", startCell, endCell), float64(b.nonEmpty) / float64(totalCells), true
}
