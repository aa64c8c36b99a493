package trace

import "errors"

// Tracefile engine errors. Every one of them is fatal to the current
// invocation: the engine fails fast rather than produce a plausible but
// wrong coverage aggregate.
var (
	// ErrFormat is returned for a malformed tracefile line, such as a line
	// with no prefix separator.
	ErrFormat = errors.New("malformed tracefile line")

	// ErrSchema is returned when a known prefix carries a payload with the
	// wrong field count or a non-numeric field.
	ErrSchema = errors.New("invalid entry payload")

	// ErrIncompleteRecord is returned when the input ends inside a record
	// block, before its end_of_record terminator.
	ErrIncompleteRecord = errors.New("unterminated record")

	// ErrStructuralMismatch is returned when two entries that must describe
	// the same instrumentation point carry differing literal data.
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrNumberOverflow is returned when a branch name embeds a number wider
	// than the numeric sort key can hold.
	ErrNumberOverflow = errors.New("number overflow in sort key")

	// ErrDuplicateSourceFile is returned when a loaded tracefile contains two
	// records for the same source file.
	ErrDuplicateSourceFile = errors.New("duplicate source file")

	// ErrMissingSourceFile is returned when a merged record has no
	// source-file entry to match it by.
	ErrMissingSourceFile = errors.New("record has no source file")

	// ErrDropDuringMerge is returned when an entry handler tries to drop a
	// record while merging. A merge cannot un-ingest a file that is already
	// interleaved with prior records, so the drop signal is only legal while
	// loading a single file.
	ErrDropDuringMerge = errors.New("dropping records is not supported during merging")
)

// errDropRecord propagates the DropRecord signal from the handler chain up to
// Load, which discards the pending record and moves on.
var errDropRecord = errors.New("record dropped by handler")
