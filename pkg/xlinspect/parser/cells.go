package parser

import (
	"fmt"
	"iter"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/source"
	"github.com/xuri/excelize/v2"
)

// ScanSheet runs the full analysis over every row of a sheet.
//
// A row has data when any cell holds a value or a formula. Data rows are
// kept, each cut to the running column count: the largest col+1 of any
// data-bearing cell seen so far. Every formula cell is recorded with its
// cached result.
func ScanSheet(name string, rows iter.Seq2[source.Row, error]) (models.SheetAnalysis, error) {
	result := models.SheetAnalysis{
		Name:     name,
		Data:     [][]models.CellData{},
		Formulas: []models.FormulaCell{},
	}
	var bounds dataBounds

	for row, err := range rows {
		if err != nil {
			return result, err
		}
		result.Summary.TotalRows++

		rowData := make([]models.CellData, len(row.Cells))
		hasData := false
		for colIdx, cell := range row.Cells {
			rowData[colIdx] = models.NewCellData(cell.Value, cell.Formula)
			if cell.Empty() {
				continue
			}
			hasData = true
			bounds.add(row.Index, colIdx)
			result.Summary.MaxColumns = max(result.Summary.MaxColumns, colIdx+1)

			if cell.Formula != "" {
				ref, err := excelize.CoordinatesToCellName(colIdx+1, row.Index+1)
				if err != nil {
					return result, fmt.Errorf("row %d col %d: %w", row.Index+1, colIdx+1, err)
				}
				result.Formulas = append(result.Formulas, models.FormulaCell{
					Cell:    ref,
					Formula: cell.Formula,
					Value:   cell.Value,
				})
			}
		}

		if hasData {
			result.Summary.NonEmptyRows++
			result.Data = append(result.Data, truncateRow(rowData, result.Summary.MaxColumns))
		}
	}

	result.Summary.FormulasCount = len(result.Formulas)
	if rng, density, ok := bounds.summary(); ok {
		result.Summary.DataRange = rng
		result.Summary.Density = &density
	}
	return result, nil
}

// truncateRow cuts row to at most n cells.
func truncateRow(row []models.CellData, n int) []models.CellData {
	if len(row) > n {
		return row[:n:n]
	}
	return row
}
