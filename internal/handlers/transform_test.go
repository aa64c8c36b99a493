package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infoproc/internal/trace"
)

func loadInto(t *testing.T, s *trace.Stream, input string) {
	t.Helper()
	require.NoError(t, s.Load(strings.NewReader(input)))
}

func TestTwoWayToggles(t *testing.T) {
	s := trace.NewStream()
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, TwoWayToggles)

	loadInto(t, s, "SF:a.c\nBRDA:1,0,sig,3\nBRDA:2,1,other,0\nend_of_record\n")

	want := "SF:a.c\n" +
		"BRDA:1,0,sig_0->1,3\n" +
		"BRDA:1,0,sig_1->0,3\n" +
		"BRDA:2,1,other_0->1,0\n" +
		"BRDA:2,1,other_1->0,0\n" +
		"end_of_record\n"
	assert.Equal(t, want, save(t, s))
}

func TestMissingBRDA(t *testing.T) {
	s := trace.NewStream()
	s.InstallHandler([]trace.Prefix{trace.PrefixDA}, MissingBRDA)

	// Line 2's branch arrives after its DA entry; the eager block index
	// must still suppress the synthetic toggle for it.
	loadInto(t, s, "SF:a.c\nDA:1,4\nDA:2,0\nBRDA:2,0,cond,1\nend_of_record\n")

	rec := s.RecordFor("a.c")
	assert.Equal(t, []string{"1,0,toggle,4", "2,0,cond,1"}, rec.Entries(trace.PrefixBRDA))
}

func TestMissingBRDAFeedsLaterToggleFanOut(t *testing.T) {
	s := trace.NewStream()
	s.InstallHandler([]trace.Prefix{trace.PrefixDA}, MissingBRDA)
	s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, TwoWayToggles)

	loadInto(t, s, "SF:a.c\nDA:7,2\nend_of_record\n")

	// The synthetic branch registers its prefix while the DA entry is still
	// in its handler chain, so BRDA precedes DA in the first-seen order.
	want := "SF:a.c\n" +
		"BRDA:7,0,toggle_0->1,2\n" +
		"BRDA:7,0,toggle_1->0,2\n" +
		"DA:7,2\n" +
		"end_of_record\n"
	assert.Equal(t, want, save(t, s))
}

func TestRecordFilter(t *testing.T) {
	input := "SF:src/a.c\nDA:1,1\nend_of_record\n" +
		"SF:vendor/b.c\nDA:2,2\nend_of_record\n" +
		"SF:src/c.c\nDA:3,3\nend_of_record\n"

	tests := []struct {
		name    string
		pattern string
		negate  bool
		want    []string
	}{
		{name: "keep_matching", pattern: "^src/", negate: false, want: []string{"src/a.c", "src/c.c"}},
		{name: "drop_matching", pattern: "vendor", negate: true, want: []string{"src/a.c", "src/c.c"}},
		{name: "keep_all", pattern: "\\.c$", negate: false, want: []string{"src/a.c", "vendor/b.c", "src/c.c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewRecordFilter(tt.pattern, tt.negate)
			require.NoError(t, err)

			s := trace.NewStream()
			s.InstallHandler([]trace.Prefix{trace.PrefixSF}, filter)
			loadInto(t, s, input)

			var got []string
			for _, rec := range s.Records() {
				got = append(got, rec.SourceFile())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordFilterBadPattern(t *testing.T) {
	_, err := NewRecordFilter("(", false)
	require.Error(t, err)
}

func TestPathStrip(t *testing.T) {
	strip, err := NewPathStrip(`(\./)?build/`)
	require.NoError(t, err)

	s := trace.NewStream()
	s.InstallHandler([]trace.Prefix{trace.PrefixSF}, strip)

	loadInto(t, s, "SF:build/src/a.c\nDA:1,1\nend_of_record\n"+
		"SF:other/build/b.c\nDA:1,1\nend_of_record\n")

	// Only a match at the start of the path is stripped.
	want := "SF:src/a.c\n" +
		"DA:1,1\n" +
		"end_of_record\n" +
		"SF:other/build/b.c\n" +
		"DA:1,1\n" +
		"end_of_record\n"
	assert.Equal(t, want, save(t, s))

	// Records stay indexed by the path as it appeared in the input.
	assert.NotNil(t, s.RecordFor("build/src/a.c"))
	assert.Nil(t, s.RecordFor("src/a.c"))
}

func TestNormalizeHits(t *testing.T) {
	s := trace.NewStream()
	s.InstallHandler([]trace.Prefix{trace.PrefixDA, trace.PrefixBRDA}, NormalizeHits)

	loadInto(t, s, "SF:a.c\nDA:1,17\nDA:2,0\nBRDA:3,0,b,5\nBRDA:4,0,c,1\nend_of_record\n")

	want := "SF:a.c\n" +
		"DA:1,1\n" +
		"DA:2,0\n" +
		"BRDA:3,0,b,1\n" +
		"BRDA:4,0,c,1\n" +
		"end_of_record\n"
	assert.Equal(t, want, save(t, s))
}

func TestNormalizeHitsRejectsOtherPrefixes(t *testing.T) {
	s := trace.NewStream()
	s.InstallHandler([]trace.Prefix{trace.PrefixLF}, NormalizeHits)

	err := s.Load(strings.NewReader("SF:a.c\nLF:3\nend_of_record\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be normalized")
}

func TestBlockIDs(t *testing.T) {
	input := "SF:a.c\n" +
		"BRDA:5,7,a,1\n" +
		"BRDA:5,7,b,1\n" +
		"BRDA:5,9,c,1\n" +
		"BRDA:5,9,d,1\n" +
		"BRDA:6,3,e,1\n" +
		"BRDA:6,3,f,1\n" +
		"end_of_record\n"

	tests := []struct {
		name string
		step int
		want []string
	}{
		{
			name: "step_one",
			step: 1,
			want: []string{"5,0,a,1", "5,1,b,1", "5,2,c,1", "5,3,d,1", "6,0,e,1", "6,1,f,1"},
		},
		{
			name: "step_two",
			step: 2,
			want: []string{"5,0,a,1", "5,0,b,1", "5,1,c,1", "5,1,d,1", "6,0,e,1", "6,0,f,1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewBlockIDs(tt.step)
			require.NoError(t, err)

			s := trace.NewStream()
			s.InstallCategoryHandler([]trace.Prefix{trace.PrefixBRDA}, handler)
			loadInto(t, s, input)

			save(t, s)
			assert.Equal(t, tt.want, s.RecordFor("a.c").Entries(trace.PrefixBRDA))
		})
	}
}

func TestBlockIDsRejectsBadStep(t *testing.T) {
	_, err := NewBlockIDs(0)
	require.Error(t, err)
	_, err = NewBlockIDs(-3)
	require.Error(t, err)
}
