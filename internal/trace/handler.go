package trace

// EntryHandler transforms a single entry at ingestion time. It receives the
// payload before it is stored and returns the payloads that replace it, or
// the signal to drop the whole record. Handlers for one prefix run in install
// order; each handler's outputs independently feed the next one, so a handler
// that fans one entry out into several composes with whatever runs after it.
//
// Handlers must be pure functions of (prefix, payload, record state so far):
// identical inputs must yield byte-identical output across runs.
type EntryHandler func(prefix Prefix, payload string, rec *Record) (EntryResult, error)

// CategoryHandler rewrites a prefix's full payload list at serialization
// time, once all entries are accumulated. The returned list replaces the
// stored one, so category handlers may sort, drop, duplicate and synthesize
// entries freely. Entry handlers never reorder a prefix's list; only
// category handlers do.
type CategoryHandler func(prefix Prefix, payloads []string, rec *Record) ([]string, error)

// EntryResult is an entry handler's verdict on one payload.
type EntryResult struct {
	payloads []string
	drop     bool
}

// Keep passes zero or more payloads on to the next handler stage. Keep with
// no arguments swallows the entry.
func Keep(payloads ...string) EntryResult {
	return EntryResult{payloads: payloads}
}

// DropRecord discards the record currently being ingested. The signal is
// legal only while loading a single file; during a merge it becomes
// ErrDropDuringMerge.
func DropRecord() EntryResult {
	return EntryResult{drop: true}
}
