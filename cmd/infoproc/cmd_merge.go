// Package main implements the infoproc CLI commands.
// This file contains the merge command.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"infoproc/internal/handlers"
	"infoproc/internal/inputs"
	"infoproc/internal/trace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mergeOutput        string
	mergeTestList      string
	mergeTestListStrip string
	mergeTestListRegex string
	mergeFullPath      bool
	mergeSortNames     bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge [inputs...]",
	Short: "Merge coverage from independent test runs into one tracefile",
	Long: `Merges .info files record by record: DA hit counts for the same line
sum up, BRDA entries accumulate per (line, name) pair, and the BRF, BRH,
LF and LH counters are recomputed from the merged entries. Single-valued
entries such as SF must agree across all inputs.

With --test-list the command also writes a file attributing each covered
line to the inputs that covered it, named after the input paths.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Output file's path (required)")
	_ = mergeCmd.MarkFlagRequired("output")
	mergeCmd.Flags().StringVar(&mergeTestList, "test-list", "",
		"Output path for an optional file with names of tests which provided hits for each line during merging")
	mergeCmd.Flags().StringVar(&mergeTestListStrip, "test-list-strip", ".info",
		`Comma-separated literals removed from paths before using them in a test list, e.g. "coverage-,-all.info"`)
	mergeCmd.Flags().StringVar(&mergeTestListRegex, "test-list-strip-regex", "",
		"Regex removed from paths before using them in a test list; capture groups remove only their spans")
	mergeCmd.Flags().BoolVar(&mergeFullPath, "test-list-full-path", false,
		"Keep the inputs' common directory prefix in test list names")
	mergeCmd.Flags().BoolVar(&mergeSortNames, "sort-brda-names", false,
		"Sort BRDA entries using their names instead of block ids")
}

func runMerge(cmd *cobra.Command, args []string) error {
	paths, err := inputs.Expand(args)
	if err != nil {
		return err
	}
	sort.Strings(paths)

	stream := trace.NewStream(trace.WithLogger(logger))
	handlers.InstallMergeHandlers(stream, mergeSortNames || cfg.Merge.SortBRDANames)

	var labeler *inputs.Labeler
	if mergeTestList != "" {
		labeler, err = inputs.NewLabeler(paths, mergeFullPath, mergeTestListStrip, mergeTestListRegex)
		if err != nil {
			return err
		}
	}

	logger.Info("Merging input files", zap.Int("inputs", len(paths)))
	files, err := inputs.ReadAll(paths)
	if err != nil {
		return err
	}
	for _, f := range files {
		var label string
		if labeler != nil {
			label = labeler.Label(f.Path)
		}
		logger.Debug("Merging input", zap.String("input", f.Path), zap.String("test", label))
		if err := stream.Merge(bytes.NewReader(f.Data), label); err != nil {
			return fmt.Errorf("merge %s: %w", f.Path, err)
		}
	}

	logger.Info("Saving merge output", zap.String("output", mergeOutput))
	if err := saveStream(stream, mergeOutput); err != nil {
		return err
	}

	if mergeTestList != "" {
		logger.Info("Saving test list", zap.String("output", mergeTestList))
		var buf bytes.Buffer
		if err := stream.WriteTestList(&buf); err != nil {
			return err
		}
		if err := os.WriteFile(mergeTestList, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write test list: %w", err)
		}
	}
	return nil
}
