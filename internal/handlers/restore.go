package handlers

import (
	"strconv"

	"infoproc/internal/trace"
)

// NewCountRestore returns a category handler replacing a counter entry with
// the record's current number of source entries. Found/hit counters go
// stale as handlers fold, drop and synthesize entries, so serialization
// recomputes them from the record.
func NewCountRestore(source trace.Prefix) trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		return []string{strconv.Itoa(rec.EntryCount(source))}, nil
	}
}

// NewHitCountRestore returns a category handler replacing a counter entry
// with the number of source entries carrying a positive hit count.
func NewHitCountRestore(source trace.Prefix) trace.CategoryHandler {
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		count := 0
		for _, payload := range rec.Entries(source) {
			hits, err := trace.Hits(payload)
			if err != nil {
				return nil, err
			}
			if hits > 0 {
				count++
			}
		}
		return []string{strconv.Itoa(count)}, nil
	}
}

// InstallRestores wires BRF, BRH, LF and LH to be recomputed from the
// record's BRDA and DA entries at serialization time. Every tool that
// rewrites line or branch entries installs these.
func InstallRestores(s *trace.Stream) {
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRF}, NewCountRestore(trace.PrefixBRDA))
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRH}, NewHitCountRestore(trace.PrefixBRDA))
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixLF}, NewCountRestore(trace.PrefixDA))
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixLH}, NewHitCountRestore(trace.PrefixDA))
}
