package parser

import (
	"iter"
	"strings"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/source"
)

// QuickLimits caps the quick structure scan.
type QuickLimits struct {
	// ScanRows is how many leading rows are inspected at all.
	ScanRows int
	// SampleWindow is the row index (0-based, exclusive) below which rows
	// after the header become samples.
	SampleWindow int
	// SampleKeep is how many samples are kept.
	SampleKeep int
}

// DefaultQuickLimits returns the limits of the quick scan: 20 rows
// inspected, samples below row 15, 5 samples kept.
func DefaultQuickLimits() QuickLimits {
	return QuickLimits{
		ScanRows:     20,
		SampleWindow: 15,
		SampleKeep:   5,
	}
}

// QuickScanSheet scans the leading rows of a sheet for a header row and a
// few sample rows, and counts every row of the sheet.
//
// Only the first ScanRows rows are inspected; nil cells read as "". The
// first inspected row holding a non-blank string is the header. Rows after
// it with an index below SampleWindow are samples, of which the first
// SampleKeep are kept. Samples require a header.
func QuickScanSheet(name string, rows iter.Seq2[source.Row, error], limits QuickLimits) (models.SheetStructure, error) {
	result := models.SheetStructure{
		Name:       name,
		Headers:    []any{},
		SampleData: [][]any{},
	}
	haveHeader := false

	for row, err := range rows {
		if err != nil {
			return result, err
		}
		result.RowCount++
		idx := result.RowCount - 1
		if idx >= limits.ScanRows {
			continue
		}

		values := rowValues(row)
		if !haveHeader && hasLabel(values) {
			haveHeader = true
			result.Headers = values
			headerRow := idx + 1
			result.HeaderRowIndex = &headerRow
			continue
		}
		if haveHeader && idx < limits.SampleWindow && len(result.SampleData) < limits.SampleKeep {
			result.SampleData = append(result.SampleData, values)
		}
	}
	return result, nil
}

func rowValues(row source.Row) []any {
	values := make([]any, len(row.Cells))
	for i, c := range row.Cells {
		if c.Value == nil {
			values[i] = ""
			continue
		}
		values[i] = c.Value
	}
	return values
}

// hasLabel reports whether any value is a string with non-space content.
func hasLabel(values []any) bool {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
