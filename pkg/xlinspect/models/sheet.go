package models

// SheetAnalysis is the full analysis of one sheet.
type SheetAnalysis struct {
	Name string `json:"name"`
	// Data holds the rows that carry a value or formula, each cut to the
	// running column count at the time it was read.
	Data     [][]CellData  `json:"data"`
	Formulas []FormulaCell `json:"formulas"`
	Summary  SheetSummary  `json:"summary"`
}

// Empty reports whether the sheet has no rows at all.
func (s SheetAnalysis) Empty() bool {
	return s.Summary.TotalRows == 0
}

// SheetSummary holds the counts of a full sheet analysis.
type SheetSummary struct {
	TotalRows     int `json:"total_rows"`
	NonEmptyRows  int `json:"non_empty_rows"`
	MaxColumns    int `json:"max_columns"`
	FormulasCount int `json:"formulas_count"`
	// DataRange is the bounding range of non-empty cells, e.g. "A1:D20".
	DataRange string `json:"data_range,omitempty"`
	// Density is the share of cells inside DataRange that are non-empty.
	Density *float64 `json:"density,omitempty"`
}

// SheetStructure is the quick structure scan of one sheet.
type SheetStructure struct {
	Name string `json:"name"`
	// Headers is the first scanned row holding a non-blank string, with
	// blank cells as "".
	Headers []any `json:"headers"`
	// SampleData holds the rows after the header within the sample window.
	SampleData [][]any `json:"sample_data"`
	RowCount   int     `json:"row_count"`
	// HeaderRowIndex is the 1-based row of Headers, nil when none was found.
	HeaderRowIndex *int `json:"header_row_index,omitempty"`
}
