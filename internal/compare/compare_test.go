package compare

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infoproc/internal/trace"
)

func loadStream(t *testing.T, input string) *trace.Stream {
	t.Helper()
	s := trace.NewStream()
	require.NoError(t, s.Load(strings.NewReader(input)))
	return s
}

func TestStreamsComputesDeltas(t *testing.T) {
	base := loadStream(t, `SF:a.c
DA:1,1
DA:2,0
BRDA:3,0,b0,1
end_of_record
SF:gone.c
DA:1,1
end_of_record
`)
	other := loadStream(t, `SF:a.c
DA:1,1
DA:2,3
BRDA:3,0,b0,0
end_of_record
SF:new.c
DA:9,0
end_of_record
`)

	deltas, err := Streams(base, other)
	require.NoError(t, err)

	want := []FileDelta{
		{Name: "a.c", BaseTotal: 3, BaseCovered: 2, OtherTotal: 3, OtherCovered: 2},
		{Name: "new.c", OtherTotal: 1},
	}
	if diff := cmp.Diff(want, deltas); diff != "" {
		t.Fatalf("unexpected deltas (-want +got):\n%s", diff)
	}

	assert.False(t, deltas[0].Different(), "a.c gained a hit but lost a branch, counts match")
	assert.InDelta(t, 66.66, deltas[0].OtherCoverage(), 0.01)
	assert.InDelta(t, 0, deltas[0].CoverageDelta(), 0.0001)
	assert.True(t, deltas[1].Different())
	assert.Equal(t, 1, deltas[1].TotalDelta())
}

func TestStreamsRequireCommonFile(t *testing.T) {
	base := loadStream(t, "SF:x.c\nDA:1,1\nend_of_record\n")
	other := loadStream(t, "SF:y.c\nDA:1,1\nend_of_record\n")

	_, err := Streams(base, other)
	require.ErrorContains(t, err, "share no source file")
}

func TestStreamsAllowEmptySides(t *testing.T) {
	loaded := loadStream(t, "SF:a.c\nDA:1,1\nDA:2,0\nend_of_record\n")

	deltas, err := Streams(trace.NewStream(), loaded)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, FileDelta{Name: "a.c", OtherTotal: 2, OtherCovered: 1}, deltas[0])

	deltas, err = Streams(loaded, trace.NewStream())
	require.NoError(t, err)
	assert.Empty(t, deltas, "files seen only in the base have nothing left to report")
}

func TestSummarize(t *testing.T) {
	results := map[string][]FileDelta{
		"coverage_line_unit": {
			{Name: "a.c", BaseTotal: 4, BaseCovered: 1, OtherTotal: 4, OtherCovered: 3},
			{Name: "b.c", BaseTotal: 2, BaseCovered: 2, OtherTotal: 3, OtherCovered: 2},
		},
		"coverage_line_system": {
			{Name: "a.c", BaseTotal: 1, OtherTotal: 1, OtherCovered: 1},
		},
		"coverage_cond_unit": {
			{Name: "a.c", BaseTotal: 6, BaseCovered: 5, OtherTotal: 6, OtherCovered: 5},
		},
	}

	summary, err := Summarize(results)
	require.NoError(t, err)

	want := []FileDelta{
		{Name: "line", BaseTotal: 7, BaseCovered: 3, OtherTotal: 8, OtherCovered: 6},
		{Name: "cond", BaseTotal: 6, BaseCovered: 5, OtherTotal: 6, OtherCovered: 5},
		{Name: "branch"},
		{Name: "toggle"},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestSummarizeRejectsBadNames(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		wantErr string
	}{
		{name: "ambiguous", dataset: "line_and_branch", wantErr: "matches both"},
		{name: "unmatched", dataset: "coverage_func_unit", wantErr: "matches no coverage category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Summarize(map[string][]FileDelta{tt.dataset: nil})
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRendererCSVChanges(t *testing.T) {
	deltas := []FileDelta{
		{Name: "a.c", BaseTotal: 4, BaseCovered: 1, OtherTotal: 4, OtherCovered: 3},
		{Name: "same.c", BaseTotal: 2, BaseCovered: 2, OtherTotal: 2, OtherCovered: 2},
		{Name: "worse.c", BaseTotal: 5, BaseCovered: 4, OtherTotal: 4, OtherCovered: 2},
	}

	var buf bytes.Buffer
	r := Renderer{Styles: NewStyles(false)}
	require.NoError(t, r.WriteChanges(&buf, "coverage_line_unit", deltas))

	want := "# coverage_line_unit diff\n" +
		"File Name,Coverage %,Hit[Δ],Total[Δ],Coverage Δ %\n" +
		"a.c,75.00%,3+[2],4[0],+50.00%\n" +
		"worse.c,50.00%,2[-2],4[-1],-30.00%\n"
	assert.Equal(t, want, buf.String())
}

func TestRendererIncludesUnchanged(t *testing.T) {
	deltas := []FileDelta{
		{Name: "same.c", BaseTotal: 2, BaseCovered: 2, OtherTotal: 2, OtherCovered: 2},
		{Name: "empty.c"},
	}

	var buf bytes.Buffer
	r := Renderer{IncludeUnchanged: true, Styles: NewStyles(false)}
	require.NoError(t, r.WriteChanges(&buf, "unit", deltas))

	want := "# unit diff\n" +
		"File Name,Coverage %,Hit[Δ],Total[Δ],Coverage Δ %\n" +
		"same.c,100.00%,2[0],2[0],0.00%\n" +
		"empty.c,--,0[0],0[0],0.00%\n"
	assert.Equal(t, want, buf.String())
}

func TestRendererSilentWhenNothingChanged(t *testing.T) {
	deltas := []FileDelta{
		{Name: "same.c", BaseTotal: 2, BaseCovered: 2, OtherTotal: 2, OtherCovered: 2},
	}

	var buf bytes.Buffer
	r := Renderer{Styles: NewStyles(false)}
	require.NoError(t, r.WriteChanges(&buf, "unit", deltas))
	assert.Zero(t, buf.Len())
}

func TestRendererGrid(t *testing.T) {
	deltas := []FileDelta{
		{Name: "a.c", BaseTotal: 4, BaseCovered: 1, OtherTotal: 4, OtherCovered: 3},
		{Name: "worse.c", BaseTotal: 5, BaseCovered: 4, OtherTotal: 4, OtherCovered: 2},
	}

	var buf bytes.Buffer
	r := Renderer{Table: true, Styles: NewStyles(false)}
	require.NoError(t, r.WriteChanges(&buf, "unit", deltas))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "# unit diff", lines[0])
	assert.Contains(t, lines[1], "File Name")
	assert.Contains(t, lines[1], "|")
	assert.Regexp(t, `^-+$`, lines[2])

	width := lipgloss.Width(lines[1])
	for _, line := range lines[2:] {
		assert.Equal(t, width, lipgloss.Width(line), "column widths line up: %q", line)
	}
	assert.Contains(t, lines[3], " a.c ")
	assert.Contains(t, lines[4], " worse.c ")
}

func TestRendererSummaryUsesTypeHeader(t *testing.T) {
	deltas := []FileDelta{
		{Name: "line", BaseTotal: 7, BaseCovered: 3, OtherTotal: 8, OtherCovered: 6},
	}

	var buf bytes.Buffer
	r := Renderer{Styles: NewStyles(false)}
	require.NoError(t, r.WriteSummary(&buf, deltas))

	want := "# Summary\n" +
		"Type,Coverage %,Hit[Δ],Total[Δ],Coverage Δ %\n" +
		"line,75.00%,6+[3],8+[1],+32.14%\n"
	assert.Equal(t, want, buf.String())
}
