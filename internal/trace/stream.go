package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Stream owns the records parsed from one or more tracefiles, the installed
// handler tables, and the stream-level test name header. Records are kept in
// insertion order and indexed by source-file path; one record per path.
//
// A stream is single-threaded: each invocation runs one pipeline start to
// finish and nothing mutates a stream concurrently.
type Stream struct {
	logger    *zap.Logger
	sourceKey Prefix

	records []*Record
	byPath  map[string]*Record

	testName string

	entryHandlers    map[Prefix][]EntryHandler
	categoryHandlers map[Prefix][]CategoryHandler
	genericHandlers  []CategoryHandler
}

// StreamOption configures a new stream.
type StreamOption func(*Stream)

// WithLogger routes the stream's diagnostics through logger instead of
// discarding them.
func WithLogger(logger *zap.Logger) StreamOption {
	return func(s *Stream) { s.logger = logger }
}

// WithSourceKey changes the prefix that names a record's source file.
// Test-description streams key their records by SN instead of SF.
func WithSourceKey(prefix Prefix) StreamOption {
	return func(s *Stream) { s.sourceKey = prefix }
}

// NewStream returns an empty stream keyed by SF entries.
func NewStream(opts ...StreamOption) *Stream {
	s := &Stream{
		logger:           zap.NewNop(),
		sourceKey:        PrefixSF,
		byPath:           make(map[string]*Record),
		entryHandlers:    make(map[Prefix][]EntryHandler),
		categoryHandlers: make(map[Prefix][]CategoryHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InstallHandler registers an entry handler for each given prefix. Handlers
// run in install order whenever an entry of that prefix is added.
func (s *Stream) InstallHandler(prefixes []Prefix, fn EntryHandler) {
	for _, prefix := range prefixes {
		s.entryHandlers[prefix] = append(s.entryHandlers[prefix], fn)
	}
}

// InstallCategoryHandler registers a category handler for each given prefix.
// Category handlers rewrite the prefix's payload list at serialization time,
// in install order.
func (s *Stream) InstallCategoryHandler(prefixes []Prefix, fn CategoryHandler) {
	for _, prefix := range prefixes {
		s.categoryHandlers[prefix] = append(s.categoryHandlers[prefix], fn)
	}
}

// InstallGenericCategoryHandler registers a category handler that runs for
// every prefix of every record, after the prefix-specific ones.
func (s *Stream) InstallGenericCategoryHandler(fn CategoryHandler) {
	s.genericHandlers = append(s.genericHandlers, fn)
}

// TestName returns the stream-level test name, or "" when no TN header has
// been seen.
func (s *Stream) TestName() string {
	return s.testName
}

// Records returns the stream's records in insertion order. The slice is the
// stream's own; callers must not modify it.
func (s *Stream) Records() []*Record {
	return s.records
}

// RecordFor returns the record owning the source-file path, or nil.
func (s *Stream) RecordFor(path string) *Record {
	return s.byPath[path]
}

// HasEntryForSourceLine reports whether the record for path holds any DA or
// BRDA entry referencing the line.
func (s *Stream) HasEntryForSourceLine(path string, line int) bool {
	rec := s.byPath[path]
	if rec == nil {
		return false
	}
	for _, byLine := range rec.lineInfo {
		if _, ok := byLine[line]; ok {
			return true
		}
	}
	return false
}

// Load parses a complete tracefile into the stream, running entry handlers
// as each entry arrives. A handler returning DropRecord discards the whole
// pending record; a record whose source file is already present fails with
// ErrDuplicateSourceFile.
func (s *Stream) Load(r io.Reader) error {
	return s.readBlocks(r, "", func(staged *Record, lines []entryLine) error {
		for _, ln := range lines {
			if err := staged.Add(ln.prefix, ln.payload); err != nil {
				if errors.Is(err, errDropRecord) {
					return nil
				}
				return err
			}
		}
		return s.appendRecord(staged)
	})
}

// Merge accumulates another physical tracefile into the stream. Records are
// matched to existing ones by source-file path; label, when non-empty, is
// attributed to every covered DA and BRDA line the file contributes.
func (s *Stream) Merge(r io.Reader, label string) error {
	return s.readBlocks(r, label, func(staged *Record, lines []entryLine) error {
		target, err := s.adoptRecord(staged)
		if err != nil {
			return err
		}
		for _, ln := range lines {
			if err := target.Add(ln.prefix, ln.payload); err != nil {
				if errors.Is(err, errDropRecord) {
					return fmt.Errorf("%w: record %q", ErrDropDuringMerge, target.SourceFile())
				}
				return err
			}
		}
		return nil
	})
}

// Save serializes the stream: the test name header first, then each record
// in insertion order, its prefixes in first-seen order, one payload per
// line, closed by the terminator. Re-parsing the output with no handlers
// installed reproduces the exact entry sequence present before Save.
func (s *Stream) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if s.testName != "" {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", PrefixTN, s.testName); err != nil {
			return err
		}
	}
	for _, rec := range s.records {
		if err := rec.save(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type entryLine struct {
	prefix  Prefix
	payload string
}

// readBlocks tokenizes the input into record blocks and hands each one to
// fn. Comments and blank lines are skipped; TN lines are folded into the
// stream-level test name and never reach the block. Each block's raw
// payloads update the staged record's line index before fn runs any entry
// handler, so handlers observe the complete pre-handler state of the block.
func (s *Stream) readBlocks(r io.Reader, label string, fn func(*Record, []entryLine) error) error {
	scanner := bufio.NewScanner(r)
	staged := newRecord(s)
	var lines []entryLine
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if text == Terminator {
			if len(lines) > 0 {
				if err := fn(staged, lines); err != nil {
					return err
				}
			}
			staged = newRecord(s)
			lines = nil
			continue
		}
		prefixField, payload, ok := strings.Cut(text, ":")
		if !ok {
			return fmt.Errorf("%w: line %d: %q has no prefix separator", ErrFormat, lineNo, text)
		}
		prefix := Prefix(prefixField)
		if prefix == PrefixTN {
			s.setTestName(payload)
			continue
		}
		if err := staged.updateStats(prefix, payload, label); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		lines = append(lines, entryLine{prefix: prefix, payload: payload})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading tracefile: %w", err)
	}
	if len(lines) > 0 {
		return fmt.Errorf("%w: input ended %d lines after the last %s", ErrIncompleteRecord, len(lines), Terminator)
	}
	return nil
}

// setTestName applies the first-wins rule for the stream-level TN header.
// A later conflicting value is reported and ignored.
func (s *Stream) setTestName(name string) {
	switch {
	case s.testName == "":
		s.testName = name
	case s.testName != name:
		s.logger.Warn("conflicting test name header, keeping the first",
			zap.String("kept", s.testName),
			zap.String("ignored", name))
	}
}

// appendRecord inserts a fully loaded record, enforcing one record per
// source-file path. Records without a source file stay outside the index.
func (s *Stream) appendRecord(rec *Record) error {
	if path := rec.sourceFile; path != "" {
		if _, exists := s.byPath[path]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateSourceFile, path)
		}
		s.byPath[path] = rec
	}
	s.records = append(s.records, rec)
	return nil
}

// adoptRecord folds a staged record into the stream during a merge: the
// existing record for its source file absorbs the staged line index, or the
// staged record itself is inserted as new.
func (s *Stream) adoptRecord(staged *Record) (*Record, error) {
	path := staged.sourceFile
	if path == "" {
		return nil, fmt.Errorf("%w: every merged record needs an %s entry", ErrMissingSourceFile, s.sourceKey)
	}
	if existing, ok := s.byPath[path]; ok {
		existing.mergeStats(staged)
		return existing, nil
	}
	s.byPath[path] = staged
	s.records = append(s.records, staged)
	return staged, nil
}
