package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infoproc/internal/trace"
)

func TestDescriptionFilter(t *testing.T) {
	cov := trace.NewStream()
	loadInto(t, cov, `SF:a.c
DA:3,1
BRDA:9,0,b,0
end_of_record
SF:b.c
DA:1,1
end_of_record
`)

	desc := trace.NewStream(trace.WithSourceKey(trace.PrefixSN))
	InstallDescriptionFilter(desc, cov)
	loadInto(t, desc, `TN:test_coverage
SN:a.c
TEST:3,alpha;beta
TEST:4,gone
TEST:9,gamma
end_of_record
SN:dropped.c
TEST:1,x
end_of_record
SN:b.c
TEST:2,x
end_of_record
`)

	want := `TN:test_coverage
SN:a.c
TEST:3,alpha;beta
TEST:9,gamma
end_of_record
SN:b.c
end_of_record
`
	assert.Equal(t, want, save(t, desc))
}

func TestDescriptionFilterRejectsBadLineNumbers(t *testing.T) {
	cov := trace.NewStream()
	loadInto(t, cov, "SF:a.c\nDA:1,1\nend_of_record\n")

	desc := trace.NewStream(trace.WithSourceKey(trace.PrefixSN))
	InstallDescriptionFilter(desc, cov)

	err := desc.Load(strings.NewReader("SN:a.c\nTEST:x,y\nend_of_record\n"))
	require.ErrorIs(t, err, trace.ErrSchema)
}
