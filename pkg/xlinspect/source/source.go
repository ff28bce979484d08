// Package source opens spreadsheet workbooks behind one format-neutral,
// row-streaming view. Binary workbooks (.xlsb) are read with the xlsb
// package; OOXML workbooks (.xlsx, .xlsm, and password-protected packages)
// are read with excelize.
package source

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

var (
	// ErrFileNotFound indicates the input file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidFormat indicates the input is not a workbook at all.
	ErrInvalidFormat = errors.New("invalid workbook format")
	// ErrUnsupportedFormat indicates a workbook format that cannot be read,
	// such as legacy BIFF8 .xls.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
	// ErrEncrypted indicates a password-protected workbook that could not be
	// opened with the configured password.
	ErrEncrypted = errors.New("workbook is encrypted")
	// ErrSheetNotFound indicates a sheet name that is not in the workbook.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Format identifies the container format of a workbook.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLSM Format = "xlsm"
	FormatXLSB Format = "xlsb"
)

// Cell is one cell value. Value is nil, string, float64, bool, or
// time.Time when date conversion is enabled. Formula is the formula text
// without the leading "=", empty for constant cells.
type Cell struct {
	Value   any
	Formula string
}

// Empty reports whether the cell carries neither a value nor a formula.
func (c Cell) Empty() bool {
	return c.Value == nil && c.Formula == ""
}

// Row is one sheet row. Index is 0-based and increases by one from row to
// row: rows the file does not store are yielded with no cells.
type Row struct {
	Index int
	Cells []Cell
}

// Workbook is an open workbook.
type Workbook interface {
	// Format returns the container format the workbook was read from.
	Format() Format
	// SheetNames returns the sheet names in workbook order.
	SheetNames() []string
	// Rows streams the rows of the named sheet. An unknown sheet yields a
	// single ErrSheetNotFound error.
	Rows(sheet string) iter.Seq2[Row, error]
	// Close releases the underlying file.
	Close() error
}

// Options configures how workbooks are opened and cell values typed.
type Options struct {
	// Password opens encrypted OOXML packages.
	Password string
	// ConvertDates turns numbers formatted as dates or times into time.Time.
	ConvertDates bool
	// Logger receives backend selection and decode warnings. Nil uses
	// slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Open detects the format of the file at path and opens it.
func Open(path string, opts Options) (Workbook, error) {
	kind, err := sniff(path)
	if err != nil {
		return nil, err
	}
	log := opts.logger()
	log.Debug("opening workbook", slog.String("file", path), slog.String("container", kind.String()))

	switch kind {
	case containerXLSB:
		return openXLSB(path, opts)
	case containerOOXML:
		return openXLSX(path, opts, formatFromExt(path))
	case containerEncrypted:
		if opts.Password == "" {
			return nil, fmt.Errorf("%w: %s (no password configured)", ErrEncrypted, path)
		}
		return openXLSX(path, opts, formatFromExt(path))
	case containerLegacyXLS:
		return nil, fmt.Errorf("%w: %s is a legacy BIFF8 .xls workbook", ErrUnsupportedFormat, path)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, path)
}

func formatFromExt(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".xlsm") {
		return FormatXLSM
	}
	return FormatXLSX
}

// resolveSheet matches name against names case-insensitively and returns
// the workbook's spelling.
func resolveSheet(names []string, name string) (string, error) {
	for _, n := range names {
		if n == name {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

// SelectSheets resolves filter against names and returns the matching
// sheets in filter order without duplicates. An empty filter selects every
// sheet.
func SelectSheets(names, filter []string) ([]string, error) {
	if len(filter) == 0 {
		return names, nil
	}
	selected := make([]string, 0, len(filter))
	seen := make(map[string]bool, len(filter))
	for _, want := range filter {
		name, err := resolveSheet(names, want)
		if err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			selected = append(selected, name)
		}
	}
	return selected, nil
}

// failed yields a single error.
func failed(err error) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		yield(Row{}, err)
	}
}
