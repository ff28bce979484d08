package xlinspect

import (
	"fmt"
	"log/slog"

	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/parser"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/source"
)

// Run inspects the workbook at path in opts.Mode and returns either a
// *models.Analysis or a *models.Structure.
func Run(path string, opts Options) (any, error) {
	switch opts.Mode {
	case ModeFull, "":
		return Analyze(path, opts)
	case ModeQuick:
		return Quick(path, opts)
	}
	return nil, fmt.Errorf("invalid mode: %s (must be full or quick)", opts.Mode)
}

// Analyze runs the full analysis over every selected sheet of the workbook
// at path.
func Analyze(path string, opts Options) (*models.Analysis, error) {
	wb, sheets, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	log := opts.logger()
	result := &models.Analysis{
		Sheets:  make([]models.SheetAnalysis, 0, len(sheets)),
		Summary: summarize(path, wb, sheets),
	}
	for _, name := range sheets {
		log.Debug("analyzing sheet", slog.String("sheet", name))
		sheet, err := parser.ScanSheet(name, wb.Rows(name))
		if err != nil {
			return nil, NewAnalysisError(name, StageScan, err)
		}
		log.Debug("sheet analyzed",
			slog.String("sheet", name),
			slog.Int("rows", sheet.Summary.TotalRows),
			slog.Int("formulas", sheet.Summary.FormulasCount))
		result.Sheets = append(result.Sheets, sheet)
	}
	return result, nil
}

// Quick runs the quick structure scan over every selected sheet of the
// workbook at path.
func Quick(path string, opts Options) (*models.Structure, error) {
	wb, sheets, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	log := opts.logger()
	limits := opts.limits().quick()
	result := &models.Structure{
		Sheets:  make([]models.SheetStructure, 0, len(sheets)),
		Summary: summarize(path, wb, sheets),
	}
	for _, name := range sheets {
		log.Debug("scanning sheet", slog.String("sheet", name))
		sheet, err := parser.QuickScanSheet(name, wb.Rows(name), limits)
		if err != nil {
			return nil, NewAnalysisError(name, StageQuickScan, err)
		}
		log.Debug("sheet scanned",
			slog.String("sheet", name),
			slog.Int("rows", sheet.RowCount),
			slog.Int("samples", len(sheet.SampleData)))
		result.Sheets = append(result.Sheets, sheet)
	}
	return result, nil
}

// open opens the workbook and resolves the sheet filter.
func open(path string, opts Options) (source.Workbook, []string, error) {
	wb, err := source.Open(path, source.Options{
		Password:     opts.Password,
		ConvertDates: opts.ConvertDates,
		Logger:       opts.logger(),
	})
	if err != nil {
		return nil, nil, err
	}
	sheets, err := source.SelectSheets(wb.SheetNames(), opts.Sheets)
	if err != nil {
		wb.Close()
		return nil, nil, err
	}
	return wb, sheets, nil
}

func summarize(path string, wb source.Workbook, sheets []string) models.WorkbookSummary {
	if sheets == nil {
		sheets = []string{}
	}
	return models.WorkbookSummary{
		TotalSheets: len(sheets),
		SheetNames:  sheets,
		File:        path,
		Format:      string(wb.Format()),
	}
}
