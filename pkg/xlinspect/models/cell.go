// Package models defines the JSON result shapes of workbook inspection.
package models

// CellData is one cell of a data row in the full analysis.
type CellData struct {
	// Value is nil, string, float64, bool or time.Time.
	Value any `json:"value"`
	// Formula is the formula text, or nil for a constant cell.
	Formula *string `json:"formula"`
}

// NewCellData builds a CellData, mapping an empty formula to null.
func NewCellData(value any, formula string) CellData {
	c := CellData{Value: value}
	if formula != "" {
		c.Formula = &formula
	}
	return c
}

// FormulaCell is a formula found during the full analysis.
type FormulaCell struct {
	// Cell is the A1 reference, e.g. "B3".
	Cell    string `json:"cell"`
	Formula string `json:"formula"`
	// Value is the cached result, nil when the file stores none.
	Value any `json:"value"`
}
