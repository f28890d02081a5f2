package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSample(t *testing.T) {
	corpus, err := LoadSample()
	require.NoError(t, err)

	assert.Equal(t, "2024.1-sample", corpus.Version())
	assert.Equal(t, SampleSource, corpus.Source())
	assert.Equal(t, 8, corpus.Len())

	clause, ok := corpus.Clause("JS-DRC-PV-2023-12")
	require.True(t, ok)
	assert.Equal(t, []string{"320000", "320500"}, clause.Tags.AdminCodes)
	assert.Equal(t, []string{}, clause.Tags.IndustryCodes)
	assert.Equal(t, []string{"PV_ROOF"}, clause.Tags.MeasureIDs)
	assert.Equal(t, 0.10, clause.Incentive.Rate)
	require.NotNil(t, clause.Incentive.Cap)
	assert.Equal(t, 100000.0, *clause.Incentive.Cap)
	assert.Equal(t, 3, clause.Specificity())

	uncapped, ok := corpus.Clause("CN-NDRC-PV-2023-08")
	require.True(t, ok)
	assert.Nil(t, uncapped.Incentive.Cap)
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	yamlPath := writeCorpus(t, "corpus.yml", `version: "v1"
clauses:
  - id: A
    admin_codes: ["110000"]
    industry_codes: []
    measure_ids: [PV_ROOF, PV_ROOF, " "]
    incentive: {rate: 0.1}
`)
	corpus, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "v1", corpus.Version())
	clause, ok := corpus.Clause("A")
	require.True(t, ok)
	assert.Equal(t, []string{"PV_ROOF"}, clause.Tags.MeasureIDs, "tags are deduplicated and blanks dropped")

	jsonPath := writeCorpus(t, "corpus.json", `{
  "clauses": [
    {"id": "B", "admin_codes": [], "industry_codes": ["C26"], "measure_ids": [],
     "incentive": {"rate": 0.2, "cap": 5000}}
  ]
}`)
	corpus, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "unknown", corpus.Version())
	assert.Equal(t, jsonPath, corpus.Source())
	clause, ok = corpus.Clause("B")
	require.True(t, ok)
	assert.Equal(t, 5000.0, *clause.Incentive.Cap)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		reason  string
	}{
		{
			name:    "malformed yaml",
			file:    "c.yml",
			content: "clauses: [\n  - id: A\n",
			reason:  "malformed YAML",
		},
		{
			name:    "malformed json",
			file:    "c.json",
			content: `{"clauses": [`,
			reason:  "malformed JSON",
		},
		{
			name:    "no clauses",
			file:    "c.yml",
			content: "version: v1\nclauses: []\n",
			reason:  "corpus has no clauses",
		},
		{
			name: "missing admin codes",
			file: "c.yml",
			content: `clauses:
  - id: A
    industry_codes: []
    measure_ids: [PV_ROOF]
    incentive: {rate: 0.1}
`,
			reason: "admin_codes is required",
		},
		{
			name: "missing measure ids",
			file: "c.yml",
			content: `clauses:
  - id: A
    admin_codes: []
    industry_codes: []
    incentive: {rate: 0.1}
`,
			reason: "measure_ids is required",
		},
		{
			name: "missing incentive",
			file: "c.yml",
			content: `clauses:
  - id: A
    admin_codes: []
    industry_codes: []
    measure_ids: []
`,
			reason: "incentive is required",
		},
		{
			name: "rate out of range",
			file: "c.yml",
			content: `clauses:
  - id: A
    admin_codes: []
    industry_codes: []
    measure_ids: []
    incentive: {rate: 1.5}
`,
			reason: "incentive rate must be within [0, 1]",
		},
		{
			name: "missing id",
			file: "c.yml",
			content: `clauses:
  - admin_codes: []
    industry_codes: []
    measure_ids: []
    incentive: {rate: 0.1}
`,
			reason: "id is required",
		},
		{
			name: "duplicate id",
			file: "c.yml",
			content: `clauses:
  - {id: A, admin_codes: [], industry_codes: [], measure_ids: [], incentive: {rate: 0.1}}
  - {id: A, admin_codes: [], industry_codes: [], measure_ids: [], incentive: {rate: 0.2}}
`,
			reason: "duplicate clause id 'A'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCorpus(t, tt.file, tt.content)
			corpus, err := LoadFile(path)
			require.Error(t, err)
			assert.Nil(t, corpus)
			assert.True(t, IsLoadError(err))
			assert.Contains(t, err.Error(), tt.reason)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	corpus, err := LoadFile("/nonexistent/corpus.yml")
	require.Error(t, err)
	assert.Nil(t, corpus)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "/nonexistent/corpus.yml", loadErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_LoadsOnce(t *testing.T) {
	path := writeCorpus(t, "corpus.yml", `clauses:
  - {id: A, admin_codes: [], industry_codes: [], measure_ids: [PV_ROOF], incentive: {rate: 0.1}}
`)
	loader := NewLoader(path)

	first, err := loader.Load()
	require.NoError(t, err)

	// Source disappears after the first load; the corpus stays.
	require.NoError(t, os.Remove(path))

	second, err := loader.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoader_RemembersFailure(t *testing.T) {
	loader := NewLoader("/nonexistent/corpus.yml")

	_, err := loader.Load()
	require.Error(t, err)
	_, err2 := loader.Load()
	assert.Same(t, err, err2)
}

func TestLoader_EmptyPathUsesSample(t *testing.T) {
	corpus, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, SampleSource, corpus.Source())
}

func TestCorpus_ClausesIsCopy(t *testing.T) {
	corpus, err := LoadSample()
	require.NoError(t, err)

	clauses := corpus.Clauses()
	clauses[0].ID = "mutated"

	_, ok := corpus.Clause("mutated")
	assert.False(t, ok)
}
