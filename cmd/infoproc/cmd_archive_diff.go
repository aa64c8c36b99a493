// Package main implements the infoproc CLI commands.
// This file contains the archive-diff command.
package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"

	"infoproc/internal/archive"
	"infoproc/internal/handlers"
	"infoproc/internal/trace"

	"github.com/spf13/cobra"
)

var archiveDiffOutput string

var archiveDiffCmd = &cobra.Command{
	Use:   "archive-diff [base.zip] [other.zip]",
	Short: "Diff two coverage archives into a new archive",
	Long: `Pairs the datasets of two coverage archives and writes an archive
holding only what changed: per dataset, the entries of the second
archive that are new or flipped their covered state. The configuration
and sources.txt are carried over from the second archive; test
description members are filtered down to the files and lines the diff
still mentions.`,
	Args: cobra.ExactArgs(2),
	RunE: runArchiveDiff,
}

func init() {
	rootCmd.AddCommand(archiveDiffCmd)
	archiveDiffCmd.Flags().StringVarP(&archiveDiffOutput, "output", "o", "", "Output archive path (required)")
	_ = archiveDiffCmd.MarkFlagRequired("output")
}

func runArchiveDiff(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if !strings.HasSuffix(path, ".zip") {
			return fmt.Errorf("only .zip archives can be diffed, got %s", path)
		}
	}

	base, err := archive.Open(args[0])
	if err != nil {
		return err
	}
	defer base.Close()
	other, err := archive.Open(args[1])
	if err != nil {
		return err
	}
	defer other.Close()

	pairs, err := archive.PairStreams(base, other, trace.WithLogger(logger))
	if err != nil {
		return err
	}

	diffed := make(map[string]*trace.Stream, len(pairs))
	for _, pair := range pairs {
		out, err := trace.Diff(pair.Base, pair.Other)
		if err != nil {
			return fmt.Errorf("diff dataset %s: %w", pair.Name, err)
		}
		diffed[pair.Name] = out
	}

	// The whole archive is assembled in memory and written in one go, so
	// a failing dataset never leaves a truncated output behind.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, member := range []string{"config.json", "sources.txt"} {
		data, err := other.ReadMember(member)
		if err != nil {
			return err
		}
		w, err := zw.Create(member)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	memberPairs, err := other.PairedFiles()
	if err != nil {
		return err
	}
	for _, pair := range memberPairs {
		if pair.Desc == "" {
			continue
		}
		cov := diffed[strings.TrimSuffix(pair.Info, ".info")]

		desc := trace.NewStream(trace.WithLogger(logger), trace.WithSourceKey(trace.PrefixSN))
		handlers.InstallDescriptionFilter(desc, cov)
		data, err := other.ReadMember(pair.Desc)
		if err != nil {
			return err
		}
		if err := desc.Load(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("filter %s: %w", pair.Desc, err)
		}
		w, err := zw.Create(pair.Desc)
		if err != nil {
			return err
		}
		if err := desc.Save(w); err != nil {
			return err
		}
	}

	for _, pair := range pairs {
		w, err := zw.Create(pair.Name + ".info")
		if err != nil {
			return err
		}
		if err := diffed[pair.Name].Save(w); err != nil {
			return fmt.Errorf("save dataset %s: %w", pair.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}
	if err := os.WriteFile(archiveDiffOutput, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output archive: %w", err)
	}
	return nil
}
