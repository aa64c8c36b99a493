// Package main implements the infoproc CLI commands.
// This file contains the transform command.
package main

import (
	"infoproc/internal/handlers"
	"infoproc/internal/trace"

	"github.com/spf13/cobra"
)

var (
	transformOutput       string
	transformTwoWay       bool
	transformMissingBRDA  bool
	transformFilters      []string
	transformFilterOuts   []string
	transformStripPrefix  []string
	transformNormalize    bool
	transformSetBlockIDs  bool
	transformBlockIDsStep int
)

var transformCmd = &cobra.Command{
	Use:   "transform [input]",
	Short: "Rewrite entries of a tracefile in place or into a new file",
	Long: `Applies structural transformations to a .info file: record filtering by
source path, path prefix stripping, toggle splitting, synthesizing BRDA
entries for uncovered lines, hit count normalization and block id
renumbering. The BRF, BRH, LF and LH counters are always recomputed.

Without --output the input file is modified in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.Flags().StringVarP(&transformOutput, "output", "o", "",
		"Optional output path; default modifies the input file in place")
	transformCmd.Flags().BoolVar(&transformTwoWay, "add-two-way-toggles", false,
		"Duplicate BRDA entries for toggles which have 0->1 and 1->0 toggles combined")
	transformCmd.Flags().BoolVar(&transformMissingBRDA, "add-missing-brda-entries", false,
		"Generate BRDA entries for lines which only have DA entries")
	transformCmd.Flags().StringArrayVar(&transformFilters, "filter", nil,
		"Only keep entries for files matching the provided regular expression")
	transformCmd.Flags().StringArrayVar(&transformFilterOuts, "filter-out", nil,
		"Only keep entries for files not matching the provided regular expression; evaluated after --filter")
	transformCmd.Flags().StringArrayVar(&transformStripPrefix, "strip-file-prefix", nil,
		"Remove the provided pattern from file paths in SF entries")
	transformCmd.Flags().BoolVar(&transformNormalize, "normalize-hit-counts", false,
		"Replace hit counts greater than 1 in BRDA and DA entries with 1")
	transformCmd.Flags().BoolVar(&transformSetBlockIDs, "set-block-ids", false,
		"Replace group number in BRDA with consecutive numbers for entries on the same line")
	transformCmd.Flags().IntVar(&transformBlockIDsStep, "set-block-ids-step", 1,
		"Block ID will be incremented after encountering the provided amount of matching entries")
}

func runTransform(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := transformOutput
	if output == "" {
		output = input
	}

	stream := trace.NewStream(trace.WithLogger(logger))

	for _, pattern := range transformStripPrefix {
		h, err := handlers.NewPathStrip(pattern)
		if err != nil {
			return err
		}
		stream.InstallHandler([]trace.Prefix{trace.PrefixSF}, h)
	}
	for _, pattern := range transformFilters {
		h, err := handlers.NewRecordFilter(pattern, false)
		if err != nil {
			return err
		}
		stream.InstallHandler([]trace.Prefix{trace.PrefixSF}, h)
	}
	for _, pattern := range transformFilterOuts {
		h, err := handlers.NewRecordFilter(pattern, true)
		if err != nil {
			return err
		}
		stream.InstallHandler([]trace.Prefix{trace.PrefixSF}, h)
	}

	if transformSetBlockIDs {
		h, err := handlers.NewBlockIDs(transformBlockIDsStep)
		if err != nil {
			return err
		}
		stream.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, h)
	}
	if transformTwoWay {
		stream.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, handlers.TwoWayToggles)
	}
	if transformMissingBRDA {
		stream.InstallHandler([]trace.Prefix{trace.PrefixDA}, handlers.MissingBRDA)
	}
	if transformNormalize {
		stream.InstallHandler([]trace.Prefix{trace.PrefixDA, trace.PrefixBRDA}, handlers.NormalizeHits)
	}

	handlers.InstallRestores(stream)

	return processFile(stream, input, output)
}
