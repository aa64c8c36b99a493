package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"infoproc/internal/trace"
)

// InstallDescriptionFilter wires the handlers that trim a test
// description stream down to what a coverage stream still mentions:
// records for source files cov has no record of are dropped, and test
// label entries for lines cov has no entry for are removed. Install on
// a stream whose source key is SN before loading the description.
func InstallDescriptionFilter(s *trace.Stream, cov *trace.Stream) {
	s.InstallHandler([]trace.Prefix{trace.PrefixSN}, func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		if cov.RecordFor(payload) == nil {
			return trace.DropRecord(), nil
		}
		return trace.Keep(payload), nil
	})
	s.InstallHandler([]trace.Prefix{trace.PrefixTEST}, func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		head, _, _ := strings.Cut(payload, ",")
		line, err := strconv.Atoi(head)
		if err != nil {
			return trace.EntryResult{}, fmt.Errorf("%w: TEST entry %q has no line number", trace.ErrSchema, payload)
		}
		if cov.HasEntryForSourceLine(rec.SourceFile(), line) {
			return trace.Keep(payload), nil
		}
		return trace.Keep(), nil
	})
}
