// Package main implements the infoproc CLI commands.
// This file contains the waive command.
package main

import (
	"infoproc/internal/handlers"
	"infoproc/internal/trace"
	"infoproc/internal/waiver"

	"github.com/spf13/cobra"
)

var (
	waiveOutput  string
	waiveWaivers string
)

var waiveCmd = &cobra.Command{
	Use:   "waive [input]",
	Short: "Drop waived entries from a tracefile",
	Long: `Removes DA and BRDA entries matched by a CSV waiver list. A row names a
source file, an inclusive line range and optionally a branch group
range; a 0,0 line range waives the whole file and a 0,0 group range
waives every group on the matched lines. Counters are recomputed.

Without --output the input file is modified in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runWaive,
}

func init() {
	rootCmd.AddCommand(waiveCmd)
	waiveCmd.Flags().StringVarP(&waiveOutput, "output", "o", "",
		"Optional output path; default modifies the input file in place")
	waiveCmd.Flags().StringVarP(&waiveWaivers, "waivers", "w", "", "Waivers in CSV format (required)")
	_ = waiveCmd.MarkFlagRequired("waivers")
}

func runWaive(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := waiveOutput
	if output == "" {
		output = input
	}

	waivers, err := waiver.LoadFile(waiveWaivers)
	if err != nil {
		return err
	}

	stream := trace.NewStream(trace.WithLogger(logger))
	stream.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA, trace.PrefixDA}, waiver.NewFilter(waivers))
	handlers.InstallRestores(stream)

	return processFile(stream, input, output)
}
