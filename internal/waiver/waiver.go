// Package waiver drops coverage entries matched by a CSV exclusion list.
// A row names a source file and optionally a line range and a branch group
// range; zero ranges widen the waiver to the whole file or the whole line.
package waiver

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"infoproc/internal/trace"
)

// A waiver row uses zero for both ends of a range to mean "everything":
// lines 0..0 waive the whole file, groups 0..0 waive the whole line.
const (
	wholeFileMarker = 0
	wholeLineMarker = 0
)

type exclusion struct {
	lineStart  int
	lineEnd    int
	groupStart int
	groupEnd   int
}

// Waivers holds the parsed exclusion list, keyed by source-file path. The
// zero value excludes nothing.
type Waivers struct {
	excluded map[string][]exclusion
}

// Load parses a CSV waiver list. Each row is
//
//	file[,line_start,line_end[,group_start,group_end]]
//
// with inclusive ranges. A range column only counts when the row carries its
// closing column too; partial ranges fall back to the whole-file or
// whole-line markers.
func Load(r io.Reader) (*Waivers, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	w := &Waivers{excluded: make(map[string][]exclusion)}
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			return w, nil
		}
		if err != nil {
			return nil, fmt.Errorf("waiver row %d: %w", rowNum, err)
		}

		var e exclusion
		if e.lineStart, err = fieldOrZero(row, 1, 3); err != nil {
			return nil, fmt.Errorf("waiver row %d: %w", rowNum, err)
		}
		if e.lineEnd, err = fieldOrZero(row, 2, 3); err != nil {
			return nil, fmt.Errorf("waiver row %d: %w", rowNum, err)
		}
		if e.groupStart, err = fieldOrZero(row, 3, 5); err != nil {
			return nil, fmt.Errorf("waiver row %d: %w", rowNum, err)
		}
		if e.groupEnd, err = fieldOrZero(row, 4, 5); err != nil {
			return nil, fmt.Errorf("waiver row %d: %w", rowNum, err)
		}
		file := row[0]
		w.excluded[file] = append(w.excluded[file], e)
	}
}

// LoadFile parses the CSV waiver list at path.
func LoadFile(path string) (*Waivers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func fieldOrZero(row []string, index, minLen int) (int, error) {
	if len(row) < minLen {
		return 0, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(row[index]))
	if err != nil {
		return 0, fmt.Errorf("column %d: %w", index+1, err)
	}
	return value, nil
}

// IsExcluded reports whether an entry for file at line falls under a
// waiver. Pass a negative group for entries without one; branch entries
// pass their block id and only match waivers whose group range covers it.
func (w *Waivers) IsExcluded(file string, line, group int) bool {
	for _, e := range w.excluded[file] {
		lineExcluded := (e.lineStart == wholeFileMarker && e.lineEnd == wholeFileMarker) ||
			(e.lineStart <= line && line <= e.lineEnd)
		groupExcluded := group < 0 ||
			(e.groupStart == wholeLineMarker && e.groupEnd == wholeLineMarker) ||
			(e.groupStart <= group && group <= e.groupEnd)
		if lineExcluded && groupExcluded {
			return true
		}
	}
	return false
}

// NewFilter returns a category handler dropping the DA and BRDA entries the
// waiver list excludes. Install it on exactly those two prefixes.
func NewFilter(w *Waivers) trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		out := make([]string, 0, len(payloads))
		for _, payload := range payloads {
			var line, group int
			switch prefix {
			case trace.PrefixBRDA:
				entry, err := trace.ParseBRDA(payload)
				if err != nil {
					return nil, err
				}
				line, group = entry.Line, entry.Block
			case trace.PrefixDA:
				entry, err := trace.ParseDA(payload)
				if err != nil {
					return nil, err
				}
				line, group = entry.Line, -1
			default:
				return nil, fmt.Errorf("waivers cannot filter %s entries", prefix)
			}
			if !w.IsExcluded(rec.SourceFile(), line, group) {
				out = append(out, payload)
			}
		}
		return out, nil
	}
}
