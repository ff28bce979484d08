package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/cellref"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
)

// Full writes the full analysis report of a.
func Full(w io.Writer, a *models.Analysis, limits Limits) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, a.Summary)
	fmt.Fprint(bw, "\n\n")
	for _, sheet := range a.Sheets {
		writeSheetBanner(bw, sheet.Name)
		if sheet.Empty() {
			fmt.Fprintln(bw, "  (Empty sheet)")
			continue
		}
		writeSheet(bw, sheet, limits)
	}
	return bw.Flush()
}

// FullTrailer writes the closing banner naming the JSON file.
func FullTrailer(w io.Writer, outputPath string) error {
	return writeTrailer(w, "Analysis complete! Full data saved to "+outputPath)
}

func writeSheet(w *bufio.Writer, sheet models.SheetAnalysis, limits Limits) {
	s := sheet.Summary
	fmt.Fprintf(w, "\n  Total Rows: %d\n", s.TotalRows)
	fmt.Fprintf(w, "  Non-Empty Rows: %d\n", s.NonEmptyRows)
	fmt.Fprintf(w, "  Max Columns: %d\n", s.MaxColumns)
	fmt.Fprintf(w, "  Formulas Found: %d\n", s.FormulasCount)

	if len(sheet.Data) > 0 {
		fmt.Fprint(w, "\n  --- Header Row ---\n")
		for col, cell := range sheet.Data[0] {
			if cell.Value == nil {
				continue
			}
			fmt.Fprintf(w, "    Column %s: %s\n", cellref.ColumnLetter(col), FormatValue(cell.Value))
		}
	}

	fmt.Fprintf(w, "\n  --- Sample Data (First %d rows) ---\n", limits.SampleRows)
	for i, row := range sheet.Data[:min(len(sheet.Data), limits.SampleRows)] {
		values := make([]string, len(row))
		for j, cell := range row {
			if cell.Value != nil {
				values[j] = truncate(FormatValue(cell.Value), limits.FullTruncate)
			}
		}
		fmt.Fprintf(w, "    Row %d: %s\n", i+1, strings.Join(values, " | "))
	}

	if len(sheet.Formulas) > 0 {
		fmt.Fprint(w, "\n  --- Formulas Found ---\n")
		for _, f := range sheet.Formulas {
			fmt.Fprintf(w, "    %s: %s\n", f.Cell, f.Formula)
			if f.Value != nil {
				fmt.Fprintf(w, "      -> Result: %s\n", FormatValue(f.Value))
			}
		}
	}
}
