// Package trace implements the LCOV-style tracefile engine: a block parser,
// per-source-file records, an extensible entry/category handler pipeline, a
// hit-count accumulating merge, a state-change diff, and a canonical
// serializer. Tools are thin configurations of this engine: they install a
// handler set and drive Load/Merge/Diff/Save.
package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// Prefix identifies an entry's category and payload schema.
type Prefix string

// Known prefixes. Prefixes outside this list pass through the engine
// opaquely for forward compatibility.
const (
	// PrefixTN is the stream-level test name header.
	PrefixTN Prefix = "TN"
	// PrefixSF names the record's source file.
	PrefixSF Prefix = "SF"
	// PrefixDA is a per-line execution count: "line,hits".
	PrefixDA Prefix = "DA"
	// PrefixBRDA is a per-branch execution count: "line,block,name,hits".
	PrefixBRDA Prefix = "BRDA"
	// PrefixBRF and PrefixBRH are branch found/hit counters, recomputed from
	// BRDA at serialization.
	PrefixBRF Prefix = "BRF"
	PrefixBRH Prefix = "BRH"
	// PrefixLF and PrefixLH are line found/hit counters, recomputed from DA.
	PrefixLF Prefix = "LF"
	PrefixLH Prefix = "LH"
	// PrefixFNF and PrefixFNH are function found/hit counters.
	PrefixFNF Prefix = "FNF"
	PrefixFNH Prefix = "FNH"
	// PrefixSN names the source file in test-description streams.
	PrefixSN Prefix = "SN"
	// PrefixTEST lists the tests that covered one line: "line,t1;t2".
	PrefixTEST Prefix = "TEST"
)

// Terminator closes a record block.
const Terminator = "end_of_record"

// DAEntry is a decoded DA payload.
type DAEntry struct {
	Line int
	Hits int
}

// ParseDA decodes a "line,hits" payload.
func ParseDA(payload string) (DAEntry, error) {
	lineField, hitsField, ok := strings.Cut(payload, ",")
	if !ok {
		return DAEntry{}, fmt.Errorf("%w: DA %q needs a line and a hit count", ErrSchema, payload)
	}
	line, err := strconv.Atoi(lineField)
	if err != nil {
		return DAEntry{}, fmt.Errorf("%w: DA %q has a non-numeric line", ErrSchema, payload)
	}
	hits, err := strconv.Atoi(hitsField)
	if err != nil {
		return DAEntry{}, fmt.Errorf("%w: DA %q has a non-numeric hit count", ErrSchema, payload)
	}
	return DAEntry{Line: line, Hits: hits}, nil
}

// String re-encodes the entry as a DA payload.
func (e DAEntry) String() string {
	return strconv.Itoa(e.Line) + "," + strconv.Itoa(e.Hits)
}

// BRDAEntry is a decoded BRDA payload. Branches are keyed by (Line, Name);
// Block is a positional grouping id distinguishing same-line branches.
type BRDAEntry struct {
	Line  int
	Block int
	Name  string
	Hits  int
}

// ParseBRDA decodes a "line,block,name,hits" payload. Names must not contain
// commas.
func ParseBRDA(payload string) (BRDAEntry, error) {
	fields := strings.SplitN(payload, ",", 4)
	if len(fields) != 4 {
		return BRDAEntry{}, fmt.Errorf("%w: BRDA %q needs line, block, name and hit count", ErrSchema, payload)
	}
	line, err := strconv.Atoi(fields[0])
	if err != nil {
		return BRDAEntry{}, fmt.Errorf("%w: BRDA %q has a non-numeric line", ErrSchema, payload)
	}
	block, err := strconv.Atoi(fields[1])
	if err != nil {
		return BRDAEntry{}, fmt.Errorf("%w: BRDA %q has a non-numeric block", ErrSchema, payload)
	}
	hits, err := strconv.Atoi(fields[3])
	if err != nil {
		return BRDAEntry{}, fmt.Errorf("%w: BRDA %q has a non-numeric hit count", ErrSchema, payload)
	}
	return BRDAEntry{Line: line, Block: block, Name: fields[2], Hits: hits}, nil
}

// String re-encodes the entry as a BRDA payload.
func (e BRDAEntry) String() string {
	return fmt.Sprintf("%d,%d,%s,%d", e.Line, e.Block, e.Name, e.Hits)
}

// Hits returns the trailing hit-count field of a DA or BRDA payload without
// decoding the rest of it.
func Hits(payload string) (int, error) {
	field := payload
	if i := strings.LastIndex(payload, ","); i >= 0 {
		field = payload[i+1:]
	}
	hits, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has a non-numeric hit count", ErrSchema, payload)
	}
	return hits, nil
}
