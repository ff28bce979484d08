package models

// Analysis is the full analysis of a workbook.
type Analysis struct {
	Sheets  []SheetAnalysis `json:"sheets"`
	Summary WorkbookSummary `json:"summary"`
}

// Structure is the quick structure scan of a workbook.
type Structure struct {
	Sheets  []SheetStructure `json:"sheets"`
	Summary WorkbookSummary  `json:"summary"`
}

// WorkbookSummary describes the workbook as a whole.
type WorkbookSummary struct {
	TotalSheets int      `json:"total_sheets"`
	SheetNames  []string `json:"sheet_names"`
	// File is the input path as given.
	File string `json:"file"`
	// Format is the container format: xlsx, xlsm or xlsb.
	Format string `json:"format"`
}
