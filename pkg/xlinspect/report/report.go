// Package report renders inspection results as the console text report.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
)

const bannerWidth = 80

var banner = strings.Repeat("=", bannerWidth)

// Limits caps how much of each sheet the report prints.
type Limits struct {
	// SampleRows is the number of data rows printed per sheet in the full
	// report.
	SampleRows int
	// PrintRows is the number of sample rows printed per sheet in the quick
	// report.
	PrintRows int
	// PrintColumns is the number of values printed per quick sample row.
	PrintColumns int
	// FullTruncate is the maximum characters printed per full-report value.
	FullTruncate int
	// QuickTruncate is the maximum characters printed per quick-report value.
	QuickTruncate int
}

// DefaultLimits returns the report limits: 10 sample rows in the full
// report, 3 rows of 12 values in the quick report, values cut to 30 and
// 25 characters.
func DefaultLimits() Limits {
	return Limits{
		SampleRows:    10,
		PrintRows:     3,
		PrintColumns:  12,
		FullTruncate:  30,
		QuickTruncate: 25,
	}
}

// writeHeader prints the workbook banner shared by both reports.
func writeHeader(w *bufio.Writer, s models.WorkbookSummary) {
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "Excel File Analysis: %s\n", s.File)
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "\nTotal Sheets: %d\n", s.TotalSheets)
	fmt.Fprintf(w, "Sheet Names: %s\n", strings.Join(s.SheetNames, ", "))
}

func writeSheetBanner(w *bufio.Writer, name string) {
	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintf(w, "Sheet: %s\n", name)
	fmt.Fprintln(w, banner)
}

func writeTrailer(w io.Writer, msg string) error {
	_, err := fmt.Fprintf(w, "\n\n%s\n%s\n%s\n", banner, msg, banner)
	return err
}

// FormatValue renders a cell value the way the report prints it: floats
// keep a decimal point ("45000.0"), booleans are "True" or "False", times
// use "2006-01-02 15:04:05" and nil is "None".
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}

// formatFloat writes the shortest round-trip form, in plain notation for
// decimal exponents in [-4, 16) and scientific notation otherwise.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	_, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n < 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// truthy reports whether a value counts as present in the quick report:
// nil, false, zero numbers and empty strings do not.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return true
}
