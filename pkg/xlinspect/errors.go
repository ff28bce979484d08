package xlinspect

import (
	"fmt"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/source"
)

var (
	// ErrFileNotFound indicates the input file does not exist.
	ErrFileNotFound = source.ErrFileNotFound
	// ErrInvalidFormat indicates the input file is not a workbook.
	ErrInvalidFormat = source.ErrInvalidFormat
	// ErrUnsupportedFormat indicates a workbook format that cannot be read.
	ErrUnsupportedFormat = source.ErrUnsupportedFormat
	// ErrEncrypted indicates an encrypted workbook that could not be opened.
	ErrEncrypted = source.ErrEncrypted
	// ErrSheetNotFound indicates a requested sheet is not in the workbook.
	ErrSheetNotFound = source.ErrSheetNotFound
)

// Stages reported by AnalysisError.
const (
	StageScan      = "scan"
	StageQuickScan = "quick_scan"
)

// AnalysisError represents a failure while inspecting one sheet.
type AnalysisError struct {
	SheetName string
	Stage     string // "scan", "quick_scan"
	Err       error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error in sheet %q (%s): %v", e.SheetName, e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError creates a new AnalysisError.
func NewAnalysisError(sheetName, stage string, err error) *AnalysisError {
	return &AnalysisError{
		SheetName: sheetName,
		Stage:     stage,
		Err:       err,
	}
}
