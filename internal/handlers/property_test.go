//go:build property
// +build property

// Property-based tests for the merge pipeline's ordering guarantees.
package handlers_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"infoproc/internal/handlers"
	"infoproc/internal/trace"
)

func coverageFile(lines []int, hitFor func(line int) int) string {
	var sb strings.Builder
	sb.WriteString("SF:gen/a.c\n")
	for _, line := range lines {
		fmt.Fprintf(&sb, "DA:%d,%d\n", line, hitFor(line))
	}
	sb.WriteString("end_of_record\n")
	return sb.String()
}

func mergeFiles(files ...string) (string, error) {
	s := trace.NewStream()
	handlers.InstallMergeHandlers(s, false)
	for _, file := range files {
		if err := s.Merge(strings.NewReader(file), ""); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TestMergeOrderIndependence verifies that merging the same two inputs in
// either order produces identical bytes: hit counts add commutatively and
// the canonical sorts fix the entry order.
func TestMergeOrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merge output does not depend on input order", prop.ForAll(
		func(linesA, linesB []int) bool {
			fileA := coverageFile(linesA, func(line int) int { return (line * 3) % 7 })
			fileB := coverageFile(linesB, func(line int) int { return (line * 5) % 11 })

			ab, err := mergeFiles(fileA, fileB)
			if err != nil {
				return false
			}
			ba, err := mergeFiles(fileB, fileA)
			if err != nil {
				return false
			}
			return ab == ba
		},
		gen.SliceOf(gen.IntRange(1, 500)),
		gen.SliceOf(gen.IntRange(1, 500)),
	))

	properties.TestingRun(t)
}

// TestMergeAccumulatesTotals verifies that a line's merged hit count is the
// sum of its hit counts across all inputs, duplicates included.
func TestMergeAccumulatesTotals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("hit counts sum across inputs", prop.ForAll(
		func(lines []int) bool {
			hitFor := func(line int) int { return line % 4 }
			file := coverageFile(lines, hitFor)

			wantTotals := make(map[int]int)
			for _, line := range lines {
				wantTotals[line] += 2 * hitFor(line) // merged twice
			}

			s := trace.NewStream()
			handlers.InstallMergeHandlers(s, false)
			for i := 0; i < 2; i++ {
				if err := s.Merge(strings.NewReader(file), ""); err != nil {
					return false
				}
			}

			rec := s.RecordFor("gen/a.c")
			if rec == nil {
				return false
			}
			got := make(map[int]int)
			for _, payload := range rec.Entries(trace.PrefixDA) {
				entry, err := trace.ParseDA(payload)
				if err != nil {
					return false
				}
				got[entry.Line] = entry.Hits
			}
			if len(got) != len(wantTotals) {
				return false
			}
			for line, want := range wantTotals {
				if got[line] != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 500)),
	))

	properties.TestingRun(t)
}
