// Package main implements the infoproc CLI commands.
// This file contains file helpers shared by the commands.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"infoproc/internal/trace"
)

// saveStream serializes the stream into memory first, so an in-place run
// that fails mid-save never truncates the file it was reading from.
func saveStream(s *trace.Stream, path string) error {
	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// processFile runs one tracefile through the stream's installed handlers
// and saves the result. Output may equal input.
func processFile(s *trace.Stream, input, output string) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	loadErr := s.Load(f)
	closeErr := f.Close()
	if loadErr != nil {
		return fmt.Errorf("load %s: %w", input, loadErr)
	}
	if closeErr != nil {
		return closeErr
	}
	return saveStream(s, output)
}

// loadStreamFile parses one tracefile into a fresh stream.
func loadStreamFile(path string, opts ...trace.StreamOption) (*trace.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := trace.NewStream(opts...)
	if err := s.Load(f); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// stem is the file name without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
