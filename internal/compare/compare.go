// Package compare computes per-file coverage deltas between two
// tracefile streams and renders them for review, either as aligned
// tables or as CSV lines.
package compare

import (
	"fmt"
	"sort"
	"strings"

	"infoproc/internal/trace"
)

// Categories lists the coverage dataset categories a summary groups by,
// in render order.
var Categories = []string{"line", "cond", "branch", "toggle"}

// FileDelta holds one source file's countable coverage entries (line and
// branch records combined) on the base and other sides of a comparison.
type FileDelta struct {
	Name         string
	BaseTotal    int
	BaseCovered  int
	OtherTotal   int
	OtherCovered int
}

// TotalDelta returns the change in countable entries.
func (d FileDelta) TotalDelta() int { return d.OtherTotal - d.BaseTotal }

// CoveredDelta returns the change in covered entries.
func (d FileDelta) CoveredDelta() int { return d.OtherCovered - d.BaseCovered }

// BaseCoverage returns the base side coverage percentage, zero when the
// base side has nothing countable.
func (d FileDelta) BaseCoverage() float64 { return percentage(d.BaseCovered, d.BaseTotal) }

// OtherCoverage returns the other side coverage percentage, zero when
// the other side has nothing countable.
func (d FileDelta) OtherCoverage() float64 { return percentage(d.OtherCovered, d.OtherTotal) }

// CoverageDelta returns the coverage percentage change.
func (d FileDelta) CoverageDelta() float64 { return d.OtherCoverage() - d.BaseCoverage() }

// Different reports whether the two sides disagree on any count.
func (d FileDelta) Different() bool { return d.TotalDelta() != 0 || d.CoveredDelta() != 0 }

// merge sums the counts of both deltas. The name is left to the caller.
func (d FileDelta) merge(other FileDelta) FileDelta {
	d.BaseTotal += other.BaseTotal
	d.BaseCovered += other.BaseCovered
	d.OtherTotal += other.OtherTotal
	d.OtherCovered += other.OtherCovered
	return d
}

func percentage(covered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total) * 100
}

// Streams compares the per-file coverage of two streams. Every source
// file of other yields one delta, sorted by path. Files only the base
// side knows are dropped, they have no coverage left worth reporting.
// Unless one side is empty the streams must share at least one source
// file.
func Streams(base, other *trace.Stream) ([]FileDelta, error) {
	baseEntries := countableEntries(base)
	otherEntries := countableEntries(other)

	if len(baseEntries) > 0 && len(otherEntries) > 0 && !shareFile(baseEntries, otherEntries) {
		return nil, fmt.Errorf("streams share no source file, nothing to compare")
	}

	deltas := make([]FileDelta, 0, len(otherEntries))
	for path, entries := range otherEntries {
		d := FileDelta{Name: path}
		var err error
		if d.OtherTotal, d.OtherCovered, err = countCovered(entries); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if baseSide, ok := baseEntries[path]; ok {
			if d.BaseTotal, d.BaseCovered, err = countCovered(baseSide); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Name < deltas[j].Name })
	return deltas, nil
}

// Summarize folds every dataset's file deltas into one aggregate row per
// coverage category, in Categories order. A dataset picks its category by
// substring match on its name and must match exactly one. Every category
// gets a row, zero-valued when no dataset fed it.
func Summarize(results map[string][]FileDelta) ([]FileDelta, error) {
	totals := make(map[string]FileDelta, len(Categories))
	for name, deltas := range results {
		category, err := categoryOf(name)
		if err != nil {
			return nil, err
		}
		total := totals[category]
		for _, d := range deltas {
			total = total.merge(d)
		}
		totals[category] = total
	}

	summary := make([]FileDelta, 0, len(Categories))
	for _, category := range Categories {
		total := totals[category]
		total.Name = category
		summary = append(summary, total)
	}
	return summary, nil
}

func categoryOf(name string) (string, error) {
	matched := ""
	for _, category := range Categories {
		if !strings.Contains(name, category) {
			continue
		}
		if matched != "" {
			return "", fmt.Errorf("dataset %q matches both the %q and %q coverage categories", name, matched, category)
		}
		matched = category
	}
	if matched == "" {
		return "", fmt.Errorf("dataset %q matches no coverage category", name)
	}
	return matched, nil
}

// countableEntries flattens each record into its line and branch
// payloads, keyed by source file.
func countableEntries(s *trace.Stream) map[string][]string {
	byFile := make(map[string][]string)
	for _, rec := range s.Records() {
		entries := append([]string{}, rec.Entries(trace.PrefixDA)...)
		entries = append(entries, rec.Entries(trace.PrefixBRDA)...)
		byFile[rec.SourceFile()] = entries
	}
	return byFile
}

func countCovered(entries []string) (total, covered int, err error) {
	for _, payload := range entries {
		hits, err := trace.Hits(payload)
		if err != nil {
			return 0, 0, err
		}
		if hits > 0 {
			covered++
		}
	}
	return len(entries), covered, nil
}

func shareFile(base, other map[string][]string) bool {
	for path := range other {
		if _, ok := base[path]; ok {
			return true
		}
	}
	return false
}
