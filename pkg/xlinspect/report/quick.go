package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/cellref"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
)

// Quick writes the quick structure report of s.
func Quick(w io.Writer, s *models.Structure, limits Limits) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, s.Summary)
	for _, sheet := range s.Sheets {
		writeSheetBanner(bw, sheet.Name)
		writeStructure(bw, sheet, limits)
	}
	return bw.Flush()
}

// QuickTrailer writes the closing banner naming the JSON file.
func QuickTrailer(w io.Writer, outputPath string) error {
	return writeTrailer(w, "Quick analysis complete! Structure saved to "+outputPath)
}

func writeStructure(w *bufio.Writer, sheet models.SheetStructure, limits Limits) {
	fmt.Fprintf(w, "\n  Approx Row Count: %d\n", sheet.RowCount)

	if sheet.HeaderRowIndex != nil {
		fmt.Fprintf(w, "\n  --- Headers (Row %d) ---\n", *sheet.HeaderRowIndex)
		for col, h := range sheet.Headers {
			if truthy(h) {
				fmt.Fprintf(w, "    %s: %s\n", cellref.ColumnLetter(col), FormatValue(h))
			}
		}
	}

	if len(sheet.SampleData) == 0 {
		return
	}
	fmt.Fprint(w, "\n  --- Sample Data ---\n")
	for _, row := range sheet.SampleData[:min(len(sheet.SampleData), limits.PrintRows)] {
		row = row[:min(len(row), limits.PrintColumns)]
		values := make([]string, len(row))
		for i, v := range row {
			if truthy(v) {
				values[i] = truncate(FormatValue(v), limits.QuickTruncate)
			}
		}
		fmt.Fprintf(w, "    Row: %s\n", strings.Join(values, " | "))
	}
}
