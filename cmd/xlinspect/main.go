// Package main provides the CLI entry point for xlinspect.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/ukaji3/xlinspect/internal/config"
	"github.com/ukaji3/xlinspect/internal/logging"
	"github.com/ukaji3/xlinspect/pkg/xlinspect"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/models"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/output"
	"github.com/ukaji3/xlinspect/pkg/xlinspect/report"
)

// version is set at build time via -ldflags.
var version = "dev"

// stdoutPath as the output path writes the JSON to stdout instead of a file.
const stdoutPath = "-"

var errNoInput = errors.New("no input workbook: pass a path or set input in the config file")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the flags that are not part of the configuration.
type app struct {
	stdout, stderr io.Writer
	configPath     string
	outputPath     string
	noReport       bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "xlinspect",
		Short: "Inspect the structure and content of Excel workbooks",
		Long: `xlinspect walks every sheet of an .xlsb, .xlsx or .xlsm workbook, prints
a text report (row and column counts, header guesses, sample rows, formulas)
and saves the results as JSON.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file (env: "+config.ConfigFileEnv+")")
	pf.StringVarP(&a.outputPath, "output", "o", "", `JSON output path, "-" for stdout`)
	pf.BoolVar(&a.noReport, "no-report", false, "Do not print the text report")
	config.RegisterFlags(pf)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "analyze [input]",
			Short: "Full analysis: every row, header, sample data and formulas",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.run(xlinspect.ModeFull),
		},
		&cobra.Command{
			Use:   "quick [input]",
			Short: "Quick structure scan: header row and sample rows",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.run(xlinspect.ModeQuick),
		},
	)
	return rootCmd
}

func (a *app) run(mode xlinspect.Mode) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
			return err
		}
		logger, err := logging.Setup(cfg.Logging, a.stderr)
		if err != nil {
			return err
		}

		inputPath := cfg.Input
		if len(args) == 1 {
			inputPath = args[0]
		}
		if inputPath == "" {
			return errNoInput
		}

		outputPath := cfg.Output.Analysis
		if mode == xlinspect.ModeQuick {
			outputPath = cfg.Output.Structure
		}
		if a.outputPath != "" {
			outputPath = a.outputPath
		}
		showReport := !a.noReport && outputPath != stdoutPath

		opts := xlinspect.Options{
			Mode: mode,
			Limits: xlinspect.Limits{
				ScanRows:     cfg.Limits.ScanRows,
				SampleWindow: cfg.Limits.SampleWindow,
				SampleKeep:   cfg.Limits.SampleKeep,
			},
			Password:     cfg.Password,
			ConvertDates: cfg.ConvertDates,
			Sheets:       cfg.Sheets,
			Logger:       logger,
		}
		limits := report.Limits{
			SampleRows:    cfg.Limits.SampleRows,
			PrintRows:     cfg.Limits.PrintRows,
			PrintColumns:  cfg.Limits.PrintColumns,
			FullTruncate:  cfg.Limits.FullTruncate,
			QuickTruncate: cfg.Limits.QuickTruncate,
		}

		// Inspect workbook
		result, err := xlinspect.Run(inputPath, opts)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		// Serialize to JSON
		jsonData, err := output.ToJSON(result, cfg.Output.Pretty)
		if err != nil {
			return fmt.Errorf("serialization failed: %w", err)
		}

		if showReport {
			if err := writeReport(a.stdout, result, limits); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}

		// Write output
		if outputPath == stdoutPath {
			if _, err := fmt.Fprintln(a.stdout, string(jsonData)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		}
		if err := output.WriteFile(outputPath, jsonData); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		logger.Debug("results saved", slog.String("file", outputPath))

		if showReport {
			return writeTrailer(a.stdout, result, outputPath)
		}
		return nil
	}
}

func writeReport(w io.Writer, result any, limits report.Limits) error {
	switch r := result.(type) {
	case *models.Analysis:
		return report.Full(w, r, limits)
	case *models.Structure:
		return report.Quick(w, r, limits)
	}
	return fmt.Errorf("unexpected result type %T", result)
}

func writeTrailer(w io.Writer, result any, outputPath string) error {
	if _, ok := result.(*models.Structure); ok {
		return report.QuickTrailer(w, outputPath)
	}
	return report.FullTrailer(w, outputPath)
}
