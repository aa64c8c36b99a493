// Package main implements the infoproc CLI commands.
// This file contains the extract command.
package main

import (
	"fmt"

	"infoproc/internal/handlers"
	"infoproc/internal/trace"

	"github.com/spf13/cobra"
)

var (
	extractOutput string
	extractType   string
)

var extractCmd = &cobra.Command{
	Use:   "extract [input]",
	Short: "Extract one coverage type from a tracefile",
	Long: fmt.Sprintf(`Extracts a single coverage type into a new .info file. "line" keeps SF
and DA entries only. "cond" keeps BRDA entries whose name starts with
one of the prefixes %v plus the DA entries on the same lines; "branch"
keeps the complement. Function counters never survive extraction.`, handlers.CondPrefixes),
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output file's path (required)")
	_ = extractCmd.MarkFlagRequired("output")
	extractCmd.Flags().StringVar(&extractType, "coverage-type", "",
		"Coverage type to be extracted: line, branch or cond")
}

func runExtract(cmd *cobra.Command, args []string) error {
	stream := trace.NewStream(trace.WithLogger(logger))

	switch extractType {
	case "line":
		stream.InstallGenericCategoryHandler(handlers.NewPrefixFilter(trace.PrefixSF, trace.PrefixDA))
	case "branch":
		handlers.InstallBranchFilters(stream, handlers.CondPrefixes, true)
	case "cond":
		handlers.InstallBranchFilters(stream, handlers.CondPrefixes, false)
	default:
		return fmt.Errorf("extracting coverage type %q is not supported", extractType)
	}

	handlers.InstallRestores(stream)

	return processFile(stream, args[0], extractOutput)
}
