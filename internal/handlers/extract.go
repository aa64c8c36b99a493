package handlers

import (
	"strings"

	"infoproc/internal/trace"
)

// CondPrefixes lists the branch-name prefixes that mark a BRDA entry as
// condition coverage. Everything else counts as plain branch coverage.
var CondPrefixes = []string{"cond"}

// NewPrefixFilter returns a generic category handler keeping only the given
// entry categories and emptying every other prefix's list.
func NewPrefixFilter(allowed ...trace.Prefix) trace.CategoryHandler {
	set := make(map[trace.Prefix]struct{}, len(allowed))
	for _, prefix := range allowed {
		set[prefix] = struct{}{}
	}
	return func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		if _, ok := set[prefix]; ok {
			return payloads, nil
		}
		return nil, nil
	}
}

// InstallBranchFilters restricts a stream to one class of BRDA entries and
// the lines carrying them. With filterOut false, branches whose name starts
// with one of the prefixes survive; with filterOut true they are the ones
// removed. DA entries keep only the lines that still have a branch, and
// every category except SF, DA and BRDA is emptied.
func InstallBranchFilters(s *trace.Stream, prefixes []string, filterOut bool) {
	// Lines with a surviving branch, per record. Collected while branches
	// are ingested, consulted when the DA list is serialized.
	kept := make(map[*trace.Record]map[int]bool)

	s.InstallHandler([]trace.Prefix{trace.PrefixBRDA}, func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		entry, err := trace.ParseBRDA(payload)
		if err != nil {
			return trace.EntryResult{}, err
		}
		match := false
		for _, p := range prefixes {
			if strings.HasPrefix(entry.Name, p) {
				match = true
				break
			}
		}
		if match == filterOut {
			return trace.Keep(), nil
		}
		lines := kept[rec]
		if lines == nil {
			lines = make(map[int]bool)
			kept[rec] = lines
		}
		lines[entry.Line] = true
		return trace.Keep(payload), nil
	})

	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixDA}, func(prefix trace.Prefix, payloads []string, rec *trace.Record) ([]string, error) {
		lines := kept[rec]
		out := make([]string, 0, len(payloads))
		for _, payload := range payloads {
			entry, err := trace.ParseDA(payload)
			if err != nil {
				return nil, err
			}
			if lines[entry.Line] {
				out = append(out, payload)
			}
		}
		return out, nil
	})

	s.InstallGenericCategoryHandler(NewPrefixFilter(trace.PrefixSF, trace.PrefixDA, trace.PrefixBRDA))
}
