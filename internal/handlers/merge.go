// Package handlers provides the stock entry and category handlers the
// command-line tools install on a trace.Stream: merge accumulators,
// canonical sorts, counter restores, structural transforms and
// coverage-type extraction filters. Each tool is a thin composition of
// these.
package handlers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"infoproc/internal/trace"
)

// NewDAAccumulator returns an entry handler folding repeated DA lines into
// the entry that first introduced them, summing hit counts. It caches entry
// positions per record, so it must be installed after every other DA entry
// handler: anything dropping or synthesizing DA entries behind it would
// invalidate the cached positions.
func NewDAAccumulator() trace.EntryHandler {
	type key struct {
		rec  *trace.Record
		line int
	}
	cache := make(map[key]int)
	return func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		entry, err := trace.ParseDA(payload)
		if err != nil {
			return trace.EntryResult{}, err
		}
		i, seen := cache[key{rec: rec, line: entry.Line}]
		if !seen {
			cache[key{rec: rec, line: entry.Line}] = rec.EntryCount(prefix)
			return trace.Keep(payload), nil
		}
		stored, err := trace.ParseDA(rec.Entries(prefix)[i])
		if err != nil {
			return trace.EntryResult{}, err
		}
		if stored.Line != entry.Line {
			return trace.EntryResult{}, fmt.Errorf("DA entries moved under the accumulator: slot %d holds line %d, expected %d", i, stored.Line, entry.Line)
		}
		stored.Hits += entry.Hits
		rec.ReplaceEntry(prefix, i, stored.String())
		return trace.Keep(), nil
	}
}

// NewBRDAAccumulator returns an entry handler folding repeated branches
// into one entry per (line, name), summing hit counts and keeping the
// larger block id. The same install-order constraint as NewDAAccumulator
// applies.
func NewBRDAAccumulator() trace.EntryHandler {
	type key struct {
		rec  *trace.Record
		line int
		name string
	}
	cache := make(map[key]int)
	return func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		entry, err := trace.ParseBRDA(payload)
		if err != nil {
			return trace.EntryResult{}, err
		}
		k := key{rec: rec, line: entry.Line, name: entry.Name}
		i, seen := cache[k]
		if !seen {
			cache[k] = rec.EntryCount(prefix)
			return trace.Keep(payload), nil
		}
		stored, err := trace.ParseBRDA(rec.Entries(prefix)[i])
		if err != nil {
			return trace.EntryResult{}, err
		}
		if stored.Line != entry.Line || stored.Name != entry.Name {
			return trace.EntryResult{}, fmt.Errorf("BRDA entries moved under the accumulator: slot %d holds %d,%s, expected %d,%s", i, stored.Line, stored.Name, entry.Line, entry.Name)
		}
		stored.Hits += entry.Hits
		if entry.Block > stored.Block {
			stored.Block = entry.Block
		}
		rec.ReplaceEntry(prefix, i, stored.String())
		return trace.Keep(), nil
	}
}

// NewDASort returns a category handler ordering DA entries by line number.
func NewDASort() trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		type keyed struct {
			payload string
			line    int
		}
		entries := make([]keyed, len(payloads))
		for i, payload := range payloads {
			entry, err := trace.ParseDA(payload)
			if err != nil {
				return nil, err
			}
			entries[i] = keyed{payload: payload, line: entry.Line}
		}
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].line < entries[b].line
		})
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.payload
		}
		return out, nil
	}
}

// NewBRDASort returns a category handler ordering BRDA entries by line
// number, then block id.
func NewBRDASort() trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		type keyed struct {
			payload string
			line    int
			block   int
		}
		entries := make([]keyed, len(payloads))
		for i, payload := range payloads {
			entry, err := trace.ParseBRDA(payload)
			if err != nil {
				return nil, err
			}
			entries[i] = keyed{payload: payload, line: entry.Line, block: entry.Block}
		}
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].line != entries[b].line {
				return entries[a].line < entries[b].line
			}
			return entries[a].block < entries[b].block
		})
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.payload
		}
		return out, nil
	}
}

// nameNumberWidth is how many digits a padded number run occupies in a
// branch-name sort key. Wider runs cannot be ordered and fail the sort.
const nameNumberWidth = 20

var digitRun = regexp.MustCompile(`[0-9]+`)

// padNumbers widens every digit run in a branch name with leading zeros so
// that lexicographic comparison orders embedded numbers numerically:
// toggle_10_1 sorts after toggle_2_0 instead of before it.
func padNumbers(name string) (string, error) {
	var overflow error
	padded := digitRun.ReplaceAllStringFunc(name, func(run string) string {
		if len(run) > nameNumberWidth {
			overflow = fmt.Errorf("%w: %q in branch name %q", trace.ErrNumberOverflow, run, name)
			return run
		}
		return strings.Repeat("0", nameNumberWidth-len(run)) + run
	})
	if overflow != nil {
		return "", overflow
	}
	return padded, nil
}

// NewBRDANameSort returns a category handler ordering BRDA entries by line
// number, then branch name, comparing numbers inside names numerically.
func NewBRDANameSort() trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		type keyed struct {
			payload string
			line    int
			name    string
		}
		entries := make([]keyed, len(payloads))
		for i, payload := range payloads {
			entry, err := trace.ParseBRDA(payload)
			if err != nil {
				return nil, err
			}
			name, err := padNumbers(entry.Name)
			if err != nil {
				return nil, err
			}
			entries[i] = keyed{payload: payload, line: entry.Line, name: name}
		}
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].line != entries[b].line {
				return entries[a].line < entries[b].line
			}
			return entries[a].name < entries[b].name
		})
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.payload
		}
		return out, nil
	}
}

// NewSquash returns a category handler collapsing a repeated entry into a
// single copy. The merge appends one copy per input file for entries that
// are constant within a record; copies that do not match byte-for-byte mean
// the inputs disagree about the record's identity or structure.
func NewSquash() trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		if len(payloads) == 0 {
			return payloads, nil
		}
		for _, payload := range payloads[1:] {
			if payload != payloads[0] {
				return nil, fmt.Errorf("%w: %s entries %q and %q in record %q cannot be squashed",
					trace.ErrStructuralMismatch, prefix, payloads[0], payload, rec.SourceFile())
			}
		}
		return payloads[:1], nil
	}
}

// InstallMergeHandlers wires the full merge pipeline onto a stream:
// accumulators folding repeated DA and BRDA entries, canonical sorts,
// counter restores, and squashing of the per-record constants every merged
// input repeats. Install any additional entry handlers before calling this;
// the accumulators must come last in their chains.
func InstallMergeHandlers(s *trace.Stream, sortNames bool) {
	s.InstallHandler([]trace.Prefix{trace.PrefixBRDA}, NewBRDAAccumulator())
	s.InstallHandler([]trace.Prefix{trace.PrefixDA}, NewDAAccumulator())

	if sortNames {
		s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, NewBRDANameSort())
	} else {
		s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, NewBRDASort())
	}
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixDA}, NewDASort())
	InstallRestores(s)
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixSF, trace.PrefixFNF, trace.PrefixFNH}, NewSquash())
}
