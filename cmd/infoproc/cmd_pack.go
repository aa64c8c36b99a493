// Package main implements the infoproc CLI commands.
// This file contains the pack command.
package main

import (
	"fmt"
	"os"
	"strings"

	"infoproc/internal/archive"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	packOutput      string
	packConfigPath  string
	packCoverage    []string
	packDescs       []string
	packSourcesRoot string
	packExtras      []string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack coverage files into a coverage archive",
	Long: `Builds a coverage archive: the configuration, a sources.txt holding
every file the packed tracefiles reference, and the coverage and
description files listed in the configuration's datasets. When the
configuration has no "datasets" property it is generated from the
coverage_{type}_{dataset}.info / tests_{type}_{dataset}.desc naming of
the provided files. An --output ending in .zip packs a zip archive,
anything else packs a directory.`,
	Args: cobra.NoArgs,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "Output archive's path (required)")
	_ = packCmd.MarkFlagRequired("output")
	packCmd.Flags().StringVarP(&packConfigPath, "config", "c", "", "Path to the archive's .json configuration file (required)")
	_ = packCmd.MarkFlagRequired("config")
	packCmd.Flags().StringSliceVar(&packCoverage, "coverage-files", nil,
		"Paths to coverage .info files to be included in the archive")
	packCmd.Flags().StringSliceVar(&packDescs, "description-files", nil,
		"Paths to .desc files to be included in the archive")
	packCmd.Flags().StringVar(&packSourcesRoot, "sources-root", "",
		"Optional root directory where files from SF entries can be found; default: current directory")
	packCmd.Flags().StringSliceVar(&packExtras, "extra-files", nil,
		"Additional files to be included in the archive")
}

func runPack(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(packConfigPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	archiveConfig, err := archive.ParseConfig(data)
	if err != nil {
		return err
	}

	if archiveConfig.Datasets() == nil {
		logger.Info("No datasets in the configuration, generating them from file names",
			zap.String("config", packConfigPath))
		datasets, err := archive.GenerateDatasets(packCoverage, packDescs, logger)
		if err != nil {
			return err
		}
		archiveConfig.SetDatasets(datasets)
	} else {
		logger.Info("Using datasets from the configuration", zap.String("config", packConfigPath))
	}

	pairs, err := archive.PairedFiles(archiveConfig.Datasets(), packCoverage, packDescs)
	if err != nil {
		return err
	}
	var coverageFiles, descFiles []string
	for _, pair := range pairs {
		coverageFiles = append(coverageFiles, pair.Info)
		if pair.Desc != "" {
			descFiles = append(descFiles, pair.Desc)
		}
	}

	sources, err := archive.CollectSources(coverageFiles, packSourcesRoot)
	if err != nil {
		return err
	}

	files := make([]string, 0, len(coverageFiles)+len(descFiles)+len(packExtras))
	files = append(files, coverageFiles...)
	files = append(files, descFiles...)
	files = append(files, packExtras...)

	if strings.HasSuffix(strings.ToLower(packOutput), ".zip") {
		logger.Info("Creating an output archive", zap.String("output", packOutput))
		return archive.PackZip(packOutput, archiveConfig, sources, files)
	}
	logger.Info("Creating an output directory", zap.String("output", packOutput))
	return archive.PackDirectory(packOutput, archiveConfig, sources, files)
}
