package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	f, err := ParseField(" Summary ")
	require.NoError(t, err)
	assert.Equal(t, FieldSummary, f)

	_, err = ParseField("salary")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestValidate(t *testing.T) {
	records := []Record{
		{Title: "  Data   Intern ", Summary: "python\n sql", Link: "https://ch.indeed.com/Stellen?q=data&vjk=1"},
		{Title: "", Summary: ""},
	}
	require.NoError(t, Validate(records))

	assert.Equal(t, "Data Intern", records[0].Title)
	assert.Equal(t, "python sql", records[0].Summary)
	assert.Equal(t, "", records[1].Get(FieldSummary))

	bad := []Record{{Title: "ok"}, {Title: "x", Link: "/relative/path"}}
	var invalid *InvalidError
	require.ErrorAs(t, Validate(bad), &invalid)
	assert.Equal(t, 1, invalid.Index)
}

func TestTexts(t *testing.T) {
	records := []Record{{Title: "a", Company: "x"}, {Title: "b", Company: "y"}}
	assert.Equal(t, []string{"x", "y"}, Texts(records, FieldCompany))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "jobs.json")
	require.NoError(t, WriteFile(jsonPath, []Record{{Title: "Analyst", Company: "ACME"}}))
	records, err := ReadFile(jsonPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ACME", records[0].Company)

	yamlPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- title: Engineer\n  summary: build pipelines\n"), 0o644))
	records, err = ReadFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "build pipelines", records[0].Summary)
}
