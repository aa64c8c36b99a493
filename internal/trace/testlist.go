package trace

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteTestList writes the per-line test attribution accumulated during
// merging. The output is itself a tracefile: a TN header naming the list,
// then one record per source file keyed by SN, holding one TEST entry per
// covered line with the attributed labels sorted and ';'-joined. Lines that
// no labelled input covered are left out.
func (s *Stream) WriteTestList(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s:test_coverage\n", PrefixTN); err != nil {
		return err
	}
	for _, rec := range s.records {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", PrefixSN, rec.sourceFile); err != nil {
			return err
		}
		byLine := make(map[int]lineTests)
		for _, prefixLines := range rec.lineInfo {
			for line, tests := range prefixLines {
				merged := byLine[line]
				if merged == nil {
					merged = make(lineTests)
					byLine[line] = merged
				}
				merged.union(tests)
			}
		}
		lines := make([]int, 0, len(byLine))
		for line := range byLine {
			lines = append(lines, line)
		}
		sort.Ints(lines)
		for _, line := range lines {
			tests := byLine[line]
			if len(tests) == 0 {
				continue
			}
			labels := make([]string, 0, len(tests))
			for label := range tests {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			if _, err := fmt.Fprintf(bw, "%s:%d,%s\n", PrefixTEST, line, strings.Join(labels, ";")); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(Terminator + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
