package trace

import (
	"fmt"
)

// Diff returns a new stream holding the coverage introduced by other
// relative to base. Records are matched by source-file path: records only
// in other pass through whole, records only in base are dropped. Within a
// matched record, DA entries are compared by line and BRDA entries by
// (line, branch name); an entry survives when its covered state flips or
// when base has no counterpart. Prefixes other than DA and BRDA are carried
// from other unchanged.
func Diff(base, other *Stream) (*Stream, error) {
	result := NewStream(WithLogger(other.logger), WithSourceKey(other.sourceKey))
	result.testName = other.testName
	for _, rec := range other.records {
		baseRec := base.byPath[rec.sourceFile]
		if baseRec == nil {
			if err := copyRecordInto(result, rec); err != nil {
				return nil, err
			}
			continue
		}
		if err := diffRecordInto(result, baseRec, rec); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// copyRecordInto re-adds every entry of rec to a fresh record in dst,
// rebuilding the line index as it goes.
func copyRecordInto(dst *Stream, rec *Record) error {
	out := newRecord(dst)
	for _, prefix := range rec.order {
		for _, payload := range rec.entries[prefix] {
			if err := out.Add(prefix, payload); err != nil {
				return err
			}
		}
	}
	return dst.appendRecord(out)
}

type brdaKey struct {
	line int
	name string
}

type brdaState struct {
	block   int
	covered bool
}

// diffRecordInto emits the entries of other whose covered state differs
// from base's counterpart. Matched BRDA entries must agree on the block
// field; a disagreement means the two streams were not produced from the
// same structure.
func diffRecordInto(dst *Stream, base, other *Record) error {
	baseDA := make(map[int]bool)
	for _, payload := range base.entries[PrefixDA] {
		entry, err := ParseDA(payload)
		if err != nil {
			return err
		}
		baseDA[entry.Line] = entry.Hits > 0
	}
	baseBRDA := make(map[brdaKey]brdaState)
	for _, payload := range base.entries[PrefixBRDA] {
		entry, err := ParseBRDA(payload)
		if err != nil {
			return err
		}
		baseBRDA[brdaKey{line: entry.Line, name: entry.Name}] = brdaState{
			block:   entry.Block,
			covered: entry.Hits > 0,
		}
	}

	out := newRecord(dst)
	for _, prefix := range other.order {
		for _, payload := range other.entries[prefix] {
			keep := true
			switch prefix {
			case PrefixDA:
				entry, err := ParseDA(payload)
				if err != nil {
					return err
				}
				if covered, ok := baseDA[entry.Line]; ok {
					keep = covered != (entry.Hits > 0)
				}
			case PrefixBRDA:
				entry, err := ParseBRDA(payload)
				if err != nil {
					return err
				}
				if state, ok := baseBRDA[brdaKey{line: entry.Line, name: entry.Name}]; ok {
					if state.block != entry.Block {
						return fmt.Errorf("%w: branch %q on line %d of %s has block %d here and %d in the base",
							ErrStructuralMismatch, entry.Name, entry.Line, other.sourceFile, entry.Block, state.block)
					}
					keep = state.covered != (entry.Hits > 0)
				}
			}
			if !keep {
				continue
			}
			if err := out.Add(prefix, payload); err != nil {
				return err
			}
		}
	}
	return dst.appendRecord(out)
}
