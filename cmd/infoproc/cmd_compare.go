// Package main implements the infoproc CLI commands.
// This file contains the compare command.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"infoproc/internal/archive"
	"infoproc/internal/compare"
	"infoproc/internal/trace"

	"github.com/spf13/cobra"
)

var (
	compareTable     bool
	compareColour    bool
	compareOutputAll bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [base] [other]",
	Short: "Compare coverage between two tracefiles or archives",
	Long: `Counts covered and total DA and BRDA entries per source file in both
snapshots and reports the per-file deltas, followed by a per-category
summary when archives carry more than one dataset. Two .info files
compare directly; two .zip archives pair their datasets by member name,
treating datasets present on one side only as new or removed coverage.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&compareTable, "table", false, "Use table in report")
	compareCmd.Flags().BoolVar(&compareColour, "colour", false, "Use colours in report")
	compareCmd.Flags().BoolVar(&compareOutputAll, "output-all", false, "Add unchanged files to the report")
}

func runCompare(cmd *cobra.Command, args []string) error {
	base, other := args[0], args[1]
	fmt.Printf("Comparing %s against %s\n", base, other)

	renderer := compare.Renderer{
		Table:            compareTable || cfg.Display.Table,
		IncludeUnchanged: compareOutputAll,
		Styles:           compare.NewStyles(compareColour || cfg.ColorEnabled(stdoutIsTerminal())),
	}

	results := make(map[string][]compare.FileDelta)
	var names []string

	switch {
	case strings.HasSuffix(base, ".info") && strings.HasSuffix(other, ".info"):
		baseStream, err := loadStreamFile(base, trace.WithLogger(logger))
		if err != nil {
			return err
		}
		otherStream, err := loadStreamFile(other, trace.WithLogger(logger))
		if err != nil {
			return err
		}
		deltas, err := compare.Streams(baseStream, otherStream)
		if err != nil {
			return err
		}
		name := stem(base) + ".." + stem(other)
		results[name] = deltas
		names = append(names, name)

	case strings.HasSuffix(base, ".zip") && strings.HasSuffix(other, ".zip"):
		baseArchive, err := archive.Open(base)
		if err != nil {
			return err
		}
		defer baseArchive.Close()
		otherArchive, err := archive.Open(other)
		if err != nil {
			return err
		}
		defer otherArchive.Close()

		pairs, err := archive.PairStreams(baseArchive, otherArchive, trace.WithLogger(logger))
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			deltas, err := compare.Streams(pair.Base, pair.Other)
			if err != nil {
				return fmt.Errorf("compare dataset %s: %w", pair.Name, err)
			}
			results[pair.Name] = deltas
			names = append(names, pair.Name)
		}

	default:
		return errors.New("both inputs must share an extension, either .info or .zip")
	}

	for _, name := range names {
		if err := renderer.WriteChanges(os.Stdout, name, results[name]); err != nil {
			return err
		}
	}

	if len(results) > 1 {
		summary, err := compare.Summarize(results)
		if err != nil {
			return err
		}
		if err := renderer.WriteSummary(os.Stdout, summary); err != nil {
			return err
		}
	}
	return nil
}
