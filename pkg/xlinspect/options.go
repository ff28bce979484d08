// Package xlinspect inspects spreadsheet workbooks: it walks every sheet
// and summarizes rows, columns, header guesses, sample rows and formulas.
package xlinspect

import (
	"log/slog"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/parser"
)

// Mode represents the inspection mode.
type Mode string

const (
	// ModeFull reads every cell and records all data rows and formulas.
	ModeFull Mode = "full"
	// ModeQuick samples the leading rows for a header and a few data rows.
	ModeQuick Mode = "quick"
)

// Limits caps the quick structure scan.
type Limits struct {
	// ScanRows is how many leading rows the quick scan inspects.
	ScanRows int
	// SampleWindow is the 0-based row index below which rows after the
	// header become samples.
	SampleWindow int
	// SampleKeep is how many sample rows are kept.
	SampleKeep int
}

// DefaultLimits returns the default scan limits.
func DefaultLimits() Limits {
	q := parser.DefaultQuickLimits()
	return Limits{
		ScanRows:     q.ScanRows,
		SampleWindow: q.SampleWindow,
		SampleKeep:   q.SampleKeep,
	}
}

func (l Limits) quick() parser.QuickLimits {
	return parser.QuickLimits{
		ScanRows:     l.ScanRows,
		SampleWindow: l.SampleWindow,
		SampleKeep:   l.SampleKeep,
	}
}

// Options configures inspection behavior.
type Options struct {
	// Mode specifies the inspection mode (full, quick).
	Mode Mode
	// Limits caps the quick scan. Zero values use DefaultLimits.
	Limits Limits
	// Password opens encrypted OOXML workbooks.
	Password string
	// ConvertDates turns date-formatted numbers into time values.
	ConvertDates bool
	// Sheets restricts inspection to the named sheets, matched
	// case-insensitively. Empty means every sheet.
	Sheets []string
	// Logger receives progress and decode warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns default inspection options.
func DefaultOptions() Options {
	return Options{
		Mode:   ModeFull,
		Limits: DefaultLimits(),
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// limits fills zero fields from DefaultLimits.
func (o Options) limits() Limits {
	l, d := o.Limits, DefaultLimits()
	if l.ScanRows <= 0 {
		l.ScanRows = d.ScanRows
	}
	if l.SampleWindow <= 0 {
		l.SampleWindow = d.SampleWindow
	}
	if l.SampleKeep <= 0 {
		l.SampleKeep = d.SampleKeep
	}
	return l
}
