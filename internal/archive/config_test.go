package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTypeAndDataset(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		coverageType string
		dataset      string
		ok           bool
	}{
		{name: "plain", path: "coverage_line_all.info", coverageType: "line", dataset: "all", ok: true},
		{name: "with_directory", path: "out/coverage_cond_unit.info", coverageType: "cond", dataset: "unit", ok: true},
		{name: "extra_underscores", path: "coverage_toggle_top_soc.info", coverageType: "toggle_top", dataset: "soc", ok: true},
		{name: "description_file", path: "tests_line_all.desc"},
		{name: "unrelated", path: "readme.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coverageType, dataset, ok := ExtractTypeAndDataset(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.coverageType, coverageType)
			assert.Equal(t, tt.dataset, dataset)
		})
	}
}

const configInput = `{
  "title": "Project",
  "datasets": {
    "all": {
      "line": [
        "coverage_line_all.info",
        "tests_line_all.desc"
      ],
      "branch": "coverage_branch_all.info"
    },
    "unit": {
      "cond": "coverage_cond_unit.info"
    }
  },
  "zextra": 1
}`

func TestConfigRoundTrip(t *testing.T) {
	cfg, err := ParseConfig([]byte(configInput))
	require.NoError(t, err)

	datasets := cfg.Datasets()
	require.NotNil(t, datasets)
	assert.Equal(t, []string{"all", "unit"}, datasets.Names())

	all, ok := datasets.Dataset("all")
	require.True(t, ok)
	assert.Equal(t, []string{"line", "branch"}, all.Types())
	files, ok := all.Files("line")
	require.True(t, ok)
	assert.Equal(t, DatasetFiles{Info: "coverage_line_all.info", Desc: "tests_line_all.desc"}, files)

	encoded, err := cfg.Encode()
	require.NoError(t, err)
	assert.Equal(t, configInput, string(encoded), "unknown keys and declaration order survive the round trip")
}

func TestConfigTypeAndDataset(t *testing.T) {
	cfg, err := ParseConfig([]byte(configInput))
	require.NoError(t, err)
	datasets := cfg.Datasets()

	coverageType, dataset, ok := datasets.TypeAndDataset("coverage_branch_all.info")
	require.True(t, ok)
	assert.Equal(t, "branch", coverageType)
	assert.Equal(t, "all", dataset)

	coverageType, dataset, ok = datasets.TypeAndDataset("tests_line_all.desc")
	require.True(t, ok)
	assert.Equal(t, "line", coverageType)
	assert.Equal(t, "all", dataset)

	_, _, ok = datasets.TypeAndDataset("coverage_line_unit.info")
	assert.False(t, ok)
}

func TestParseConfigRejectsBadDatasetFiles(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "two_infos", value: `["a.info", "b.info"]`},
		{name: "three_entries", value: `["a.info", "b.desc", "c.info"]`},
		{name: "number", value: `3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(`{"datasets": {"all": {"line": ` + tt.value + `}}}`))
			require.ErrorContains(t, err, "only pairs of .info and .desc files")
		})
	}
}

func TestParseConfigAcceptsSwappedPairs(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"datasets": {"all": {"line": ["tests_line_all.desc", "coverage_line_all.info"]}}}`))
	require.NoError(t, err)

	all, ok := cfg.Datasets().Dataset("all")
	require.True(t, ok)
	files, ok := all.Files("line")
	require.True(t, ok)
	assert.Equal(t, DatasetFiles{Info: "coverage_line_all.info", Desc: "tests_line_all.desc"}, files)
}

func TestGenerateDatasets(t *testing.T) {
	datasets, err := GenerateDatasets(
		[]string{
			"out/coverage_toggle_all.info",
			"out/coverage_line_all.info",
			"coverage_cond_unit.info",
			"coverage_branch_all.info",
			"coverage_func_all.info",
		},
		[]string{"d/tests_line_all.desc", "tests_cond_unit.desc"},
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"all", "unit"}, datasets.Names())

	all, ok := datasets.Dataset("all")
	require.True(t, ok)
	assert.Equal(t, []string{"line", "branch", "toggle", "func"}, all.Types(),
		"canonical types first, the rest sorted after them")

	files, _ := all.Files("line")
	assert.Equal(t, DatasetFiles{Info: "coverage_line_all.info", Desc: "tests_line_all.desc"}, files)
	files, _ = all.Files("toggle")
	assert.Equal(t, DatasetFiles{Info: "coverage_toggle_all.info"}, files, "unmatched coverage is listed alone")

	unit, ok := datasets.Dataset("unit")
	require.True(t, ok)
	files, _ = unit.Files("cond")
	assert.Equal(t, DatasetFiles{Info: "coverage_cond_unit.info", Desc: "tests_cond_unit.desc"}, files)
}

func TestGenerateDatasetsRejectsBadNames(t *testing.T) {
	_, err := GenerateDatasets([]string{"notmatching.info"}, nil, nil)
	require.ErrorContains(t, err, "does not follow")
}

func TestGeneratedConfigEncodes(t *testing.T) {
	datasets, err := GenerateDatasets([]string{"coverage_line_all.info"}, nil, nil)
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.SetDatasets(datasets)

	encoded, err := cfg.Encode()
	require.NoError(t, err)
	want := `{
  "datasets": {
    "all": {
      "line": "coverage_line_all.info"
    }
  }
}`
	assert.Equal(t, want, string(encoded))
}
