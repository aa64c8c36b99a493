package trace

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// lineTests is the set of test labels that covered one line.
type lineTests map[string]struct{}

func (t lineTests) add(label string) {
	if label != "" {
		t[label] = struct{}{}
	}
}

func (t lineTests) union(other lineTests) {
	for label := range other {
		t[label] = struct{}{}
	}
}

// Record holds every entry of one source file, grouped by prefix. Within a
// prefix, payloads keep insertion order; prefixes are emitted in first-seen
// order to keep the textual diff against the original file small.
//
// Alongside the payloads the record maintains lineInfo, a derived index from
// prefix and line number to the set of test labels that covered the line. It
// is updated eagerly from raw payloads before entry handlers run, so a
// handler can ask "does this line already have a BRDA entry" about the
// not-yet-ingested block. The index serves lookups only and never drives
// output ordering.
type Record struct {
	stream     *Stream
	sourceFile string
	order      []Prefix
	entries    map[Prefix][]string
	lineInfo   map[Prefix]map[int]lineTests
}

func newRecord(s *Stream) *Record {
	return &Record{
		stream:   s,
		entries:  make(map[Prefix][]string),
		lineInfo: make(map[Prefix]map[int]lineTests),
	}
}

// SourceFile returns the path carried by the record's first source-file
// entry, before any entry handler rewrote it, or "" when none was seen.
func (r *Record) SourceFile() string {
	return r.sourceFile
}

// Prefixes returns the record's prefixes in first-seen order.
func (r *Record) Prefixes() []Prefix {
	out := make([]Prefix, len(r.order))
	copy(out, r.order)
	return out
}

// Entries returns the payloads stored for prefix in insertion order. The
// slice is the record's own; callers must not modify it directly.
func (r *Record) Entries(prefix Prefix) []string {
	return r.entries[prefix]
}

// EntryCount returns the number of payloads stored for prefix.
func (r *Record) EntryCount(prefix Prefix) int {
	return len(r.entries[prefix])
}

// ReplaceEntry overwrites the payload at index i of prefix. The merge
// accumulators use it to fold a repeated line or branch into the entry that
// first introduced it instead of appending a duplicate.
func (r *Record) ReplaceEntry(prefix Prefix, i int, payload string) {
	r.entries[prefix][i] = payload
}

// HasEntryForLine reports whether any payload of prefix referenced the line.
// Raw payloads count as soon as their block is tokenized, before entry
// handlers run.
func (r *Record) HasEntryForLine(prefix Prefix, line int) bool {
	_, ok := r.lineInfo[prefix][line]
	return ok
}

// TestsForLine returns the sorted test labels attributed to one line of
// prefix. Lines hit with a count of zero contribute no labels.
func (r *Record) TestsForLine(prefix Prefix, line int) []string {
	tests := r.lineInfo[prefix][line]
	if len(tests) == 0 {
		return nil
	}
	out := make([]string, 0, len(tests))
	for label := range tests {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Add runs payload through the entry handlers installed for prefix and
// stores whatever they produce.
func (r *Record) Add(prefix Prefix, payload string) error {
	payloads, err := r.runEntryHandlers(prefix, payload)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := r.addEntry(prefix, p); err != nil {
			return err
		}
	}
	return nil
}

// runEntryHandlers folds payload through the handler chain. Every handler
// runs once per payload produced by the previous stage, so fan-out composes.
func (r *Record) runEntryHandlers(prefix Prefix, payload string) ([]string, error) {
	current := []string{payload}
	for _, handler := range r.stream.entryHandlers[prefix] {
		next := make([]string, 0, len(current))
		for _, p := range current {
			res, err := handler(prefix, p, r)
			if err != nil {
				return nil, err
			}
			if res.drop {
				return nil, errDropRecord
			}
			next = append(next, res.payloads...)
		}
		current = next
	}
	return current, nil
}

func (r *Record) addEntry(prefix Prefix, payload string) error {
	if _, seen := r.entries[prefix]; !seen {
		r.order = append(r.order, prefix)
	}
	r.entries[prefix] = append(r.entries[prefix], payload)
	return r.updateStats(prefix, payload, "")
}

// updateStats maintains sourceFile and lineInfo for one payload. The first
// source-file entry wins; DA and BRDA payloads index their leading line
// number and, when the trailing hit-count field is not literally "0",
// attribute label to it.
func (r *Record) updateStats(prefix Prefix, payload, label string) error {
	if r.sourceFile == "" && prefix == r.stream.sourceKey {
		r.sourceFile = payload
		return nil
	}
	if prefix != PrefixDA && prefix != PrefixBRDA {
		return nil
	}
	fields := strings.Split(payload, ",")
	if len(fields) < 2 {
		return fmt.Errorf("%w: %s %q needs a line and a hit count", ErrSchema, prefix, payload)
	}
	line, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("%w: %s %q has a non-numeric line", ErrSchema, prefix, payload)
	}
	if fields[len(fields)-1] == "0" {
		label = ""
	}
	byLine := r.lineInfo[prefix]
	if byLine == nil {
		byLine = make(map[int]lineTests)
		r.lineInfo[prefix] = byLine
	}
	tests := byLine[line]
	if tests == nil {
		tests = make(lineTests)
		byLine[line] = tests
	}
	tests.add(label)
	return nil
}

// mergeStats folds another record's line index into this one, unioning the
// attributed test labels per line.
func (r *Record) mergeStats(other *Record) {
	for prefix, otherByLine := range other.lineInfo {
		byLine := r.lineInfo[prefix]
		if byLine == nil {
			r.lineInfo[prefix] = otherByLine
			continue
		}
		for line, tests := range otherByLine {
			if existing, ok := byLine[line]; ok {
				existing.union(tests)
			} else {
				byLine[line] = tests
			}
		}
	}
}

// save rewrites each prefix's list through its category handlers and emits
// the surviving entries, one per line, followed by the terminator.
func (r *Record) save(w *bufio.Writer) error {
	for _, prefix := range r.order {
		payloads := r.entries[prefix]
		var err error
		for _, handler := range r.stream.categoryHandlers[prefix] {
			if payloads, err = handler(prefix, payloads, r); err != nil {
				return err
			}
		}
		for _, handler := range r.stream.genericHandlers {
			if payloads, err = handler(prefix, payloads, r); err != nil {
				return err
			}
		}
		r.entries[prefix] = payloads
		for _, payload := range payloads {
			if _, err := fmt.Fprintf(w, "%s:%s\n", prefix, payload); err != nil {
				return err
			}
		}
	}
	_, err := w.WriteString(Terminator + "\n")
	return err
}
