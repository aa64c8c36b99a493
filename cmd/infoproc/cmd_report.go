// Package main implements the infoproc CLI commands.
// This file contains the report command.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"infoproc/internal/archive"
	"infoproc/internal/report"
	"infoproc/internal/trace"

	"github.com/spf13/cobra"
)

var (
	reportOutput      string
	reportPretty      bool
	reportSummaryOnly bool
)

var reportCmd = &cobra.Command{
	Use:   "report [inputs...]",
	Short: "Summarize tracefiles or archives into a JSON report",
	Long: `Aggregates DA and BRDA entries of the inputs into a nested JSON report
grouped by dataset, coverage type, source file and line. Inputs are
.info files named coverage_{type}_{dataset}.info or .zip archives whose
config.json assigns members to datasets (members of an archive without
a configuration fall back to the naming convention).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Location of the generated report (required)")
	_ = reportCmd.MarkFlagRequired("output")
	reportCmd.Flags().BoolVar(&reportPretty, "pretty-print", false, "Pretty print the report")
	reportCmd.Flags().BoolVar(&reportSummaryOnly, "file-summary-only", false,
		"Generate report containing summaries only for files")
}

func runReport(cmd *cobra.Command, args []string) error {
	rep := report.New()
	counter := rep.Counter()

	for _, path := range args {
		switch {
		case strings.HasSuffix(path, ".info"):
			coverageType, dataset, ok := archive.ExtractTypeAndDataset(path)
			if !ok {
				return fmt.Errorf("could not establish dataset and coverage type for input file: %s", path)
			}
			rep.SetCurrent(coverageType, dataset)
			if err := countFile(counter, path); err != nil {
				return err
			}
		case strings.HasSuffix(path, ".zip"):
			if err := countArchive(rep, counter, path); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown file type for generating report: %s", path)
		}
	}

	rep.UpdateSummaries()
	if reportSummaryOnly {
		rep.StripLineStats()
	}

	var buf bytes.Buffer
	if err := rep.Write(&buf, reportPretty || cfg.Report.Pretty); err != nil {
		return err
	}
	if err := os.WriteFile(reportOutput, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// countStream feeds one tracefile through the report counter. Each input
// gets a fresh stream so the same source file may legitimately appear in
// several inputs; only the counter's side effects are kept.
func countStream(counter trace.EntryHandler, r io.Reader, name string) error {
	s := trace.NewStream(trace.WithLogger(logger))
	s.InstallHandler([]trace.Prefix{trace.PrefixDA, trace.PrefixBRDA}, counter)
	if err := s.Load(r); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

func countFile(counter trace.EntryHandler, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return countStream(counter, f, path)
}

func countArchive(rep *report.Report, counter trace.EntryHandler, path string) error {
	a, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()

	var datasets *archive.Datasets
	if a.Config() != nil {
		datasets = a.Config().Datasets()
	}

	for _, member := range a.Members() {
		if !strings.HasSuffix(member, ".info") {
			continue
		}
		coverageType, dataset, ok := memberTypeAndDataset(datasets, member)
		if !ok {
			return fmt.Errorf("could not establish dataset and coverage type for input file: %s from archive: %s", member, path)
		}
		rep.SetCurrent(coverageType, dataset)
		data, err := a.ReadMember(member)
		if err != nil {
			return err
		}
		if err := countStream(counter, bytes.NewReader(data), member); err != nil {
			return err
		}
	}
	return nil
}

// memberTypeAndDataset resolves an archive member against the dataset
// listing when there is one; only unconfigured archives fall back to the
// file naming convention.
func memberTypeAndDataset(datasets *archive.Datasets, member string) (string, string, bool) {
	if datasets == nil {
		return archive.ExtractTypeAndDataset(member)
	}
	return datasets.TypeAndDataset(member)
}
