package handlers

import (
	"fmt"
	"regexp"

	"infoproc/internal/trace"
)

// TwoWayToggles is a category handler fanning every BRDA entry out into its
// two toggle directions, for inputs that report the 0->1 and 1->0
// transitions of a signal as one combined branch.
func TwoWayToggles(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
	out := make([]string, 0, 2*len(payloads))
	for _, payload := range payloads {
		entry, err := trace.ParseBRDA(payload)
		if err != nil {
			return nil, err
		}
		out = append(out,
			fmt.Sprintf("%d,%d,%s_0->1,%d", entry.Line, entry.Block, entry.Name, entry.Hits),
			fmt.Sprintf("%d,%d,%s_1->0,%d", entry.Line, entry.Block, entry.Name, entry.Hits))
	}
	return out, nil
}

// MissingBRDA is a DA entry handler synthesizing a toggle branch for lines
// that have line coverage but no branch coverage on them, mirroring the
// line's hit count. The whole block is indexed before handlers run, so a
// BRDA entry appearing later in the record still suppresses the synthetic
// one.
func MissingBRDA(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
	entry, err := trace.ParseDA(payload)
	if err != nil {
		return trace.EntryResult{}, err
	}
	if !rec.HasEntryForLine(trace.PrefixBRDA, entry.Line) {
		if err := rec.Add(trace.PrefixBRDA, fmt.Sprintf("%d,0,toggle,%d", entry.Line, entry.Hits)); err != nil {
			return trace.EntryResult{}, err
		}
	}
	return trace.Keep(payload), nil
}

// NewRecordFilter returns a source-file entry handler keeping or dropping
// whole records by path. With negate false, records whose path contains a
// pattern match survive; with negate true, matching records are the ones
// dropped.
func NewRecordFilter(pattern string, negate bool) (trace.EntryHandler, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		if re.MatchString(payload) != negate {
			return trace.Keep(payload), nil
		}
		return trace.DropRecord(), nil
	}, nil
}

// NewPathStrip returns a source-file entry handler removing a leading
// pattern match from the path. Paths the pattern does not match at the
// start pass through unchanged.
func NewPathStrip(pattern string) (trace.EntryHandler, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, err
	}
	return func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		if loc := re.FindStringIndex(payload); loc != nil {
			return trace.Keep(payload[loc[1]:]), nil
		}
		return trace.Keep(payload), nil
	}, nil
}

// NormalizeHits is an entry handler reducing DA and BRDA hit counts to
// covered / not covered, replacing any positive count with one.
func NormalizeHits(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
	switch prefix {
	case trace.PrefixDA:
		entry, err := trace.ParseDA(payload)
		if err != nil {
			return trace.EntryResult{}, err
		}
		entry.Hits = clampHit(entry.Hits)
		return trace.Keep(entry.String()), nil
	case trace.PrefixBRDA:
		entry, err := trace.ParseBRDA(payload)
		if err != nil {
			return trace.EntryResult{}, err
		}
		entry.Hits = clampHit(entry.Hits)
		return trace.Keep(entry.String()), nil
	default:
		return trace.EntryResult{}, fmt.Errorf("hit counts cannot be normalized for %s entries", prefix)
	}
}

func clampHit(hits int) int {
	if hits > 0 {
		return 1
	}
	return 0
}

// NewBlockIDs returns a category handler renumbering BRDA block ids into
// consecutive groups per line: the id restarts at zero on every new line
// number and advances after each run of step entries.
func NewBlockIDs(step int) (trace.CategoryHandler, error) {
	if step < 1 {
		return nil, fmt.Errorf("block id step must be greater than zero, got %d", step)
	}
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		out := make([]string, 0, len(payloads))
		block := 0
		run := -1
		currentLine := -1
		for _, payload := range payloads {
			entry, err := trace.ParseBRDA(payload)
			if err != nil {
				return nil, err
			}
			if entry.Line != currentLine {
				block = 0
				run = -1
				currentLine = entry.Line
			}
			run++
			if run == step {
				run = 0
				block++
			}
			entry.Block = block
			out = append(out, entry.String())
		}
		return out, nil
	}, nil
}
