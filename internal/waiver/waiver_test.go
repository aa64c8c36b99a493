package waiver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infoproc/internal/handlers"
	"infoproc/internal/trace"
)

func TestIsExcluded(t *testing.T) {
	w, err := Load(strings.NewReader(
		"whole.c\n" +
			"range.c,5,10\n" +
			"line.c,3,3,0,0\n" +
			"groups.c,1,9,2,4\n" +
			"short.c,5\n"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		file  string
		line  int
		group int
		want  bool
	}{
		{name: "whole_file_any_line", file: "whole.c", line: 123, group: -1, want: true},
		{name: "whole_file_any_group", file: "whole.c", line: 1, group: 7, want: true},
		{name: "range_start", file: "range.c", line: 5, group: -1, want: true},
		{name: "range_end", file: "range.c", line: 10, group: -1, want: true},
		{name: "before_range", file: "range.c", line: 4, group: -1, want: false},
		{name: "after_range", file: "range.c", line: 11, group: -1, want: false},
		{name: "whole_line", file: "line.c", line: 3, group: 9, want: true},
		{name: "other_line", file: "line.c", line: 4, group: 9, want: false},
		{name: "group_in_range", file: "groups.c", line: 2, group: 3, want: true},
		{name: "group_outside_range", file: "groups.c", line: 2, group: 5, want: false},
		{name: "no_group_ignores_groups", file: "groups.c", line: 2, group: -1, want: true},
		{name: "unlisted_file", file: "other.c", line: 1, group: -1, want: false},
		// A row without a closing range column falls back to a whole-file
		// waiver, whatever its second column says.
		{name: "open_range_waives_file", file: "short.c", line: 99, group: -1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.IsExcluded(tt.file, tt.line, tt.group))
		})
	}
}

func TestLoadBadColumn(t *testing.T) {
	_, err := Load(strings.NewReader("a.c,x,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waiver row 1")
}

func TestZeroValueExcludesNothing(t *testing.T) {
	var w Waivers
	assert.False(t, w.IsExcluded("a.c", 1, -1))
}

func TestFilterDropsWaivedEntries(t *testing.T) {
	w, err := Load(strings.NewReader(
		"a.c,2,3\n" +
			"a.c,7,7,1,1\n"))
	require.NoError(t, err)

	s := trace.NewStream()
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA, trace.PrefixDA}, NewFilter(w))
	handlers.InstallRestores(s)

	require.NoError(t, s.Load(strings.NewReader(
		"SF:a.c\n"+
			"DA:1,1\n"+
			"DA:2,1\n"+
			"DA:3,0\n"+
			"DA:7,2\n"+
			"BRDA:7,0,keep,1\n"+
			"BRDA:7,1,waived,1\n"+
			"LF:4\n"+
			"LH:3\n"+
			"BRF:2\n"+
			"BRH:2\n"+
			"end_of_record\n"+
			"SF:b.c\n"+
			"DA:2,1\n"+
			"end_of_record\n")))

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	// Lines 2-3 fall to the range waiver. The group waiver on line 7 keeps
	// branch block 0 but drops block 1, and drops the line's DA entry too:
	// DA entries carry no group to narrow the waiver by. a.c's waivers
	// leave b.c alone.
	want := "SF:a.c\n" +
		"DA:1,1\n" +
		"BRDA:7,0,keep,1\n" +
		"LF:1\n" +
		"LH:1\n" +
		"BRF:1\n" +
		"BRH:1\n" +
		"end_of_record\n" +
		"SF:b.c\n" +
		"DA:2,1\n" +
		"end_of_record\n"
	assert.Equal(t, want, buf.String())
}
