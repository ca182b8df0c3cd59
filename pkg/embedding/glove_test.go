package embedding

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gloveSample = `data 0.1 0.2 0.3
engineer 1 0 -1
python 0.5 0.5 0.5
`

func TestReadWordTable(t *testing.T) {
	table, err := ReadWordTable(strings.NewReader(gloveSample))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Dimension())
	assert.Equal(t, 3, table.Len())

	v, ok := table.Lookup("engineer")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, -1}, v)

	_, ok = table.Lookup("manager")
	assert.False(t, ok)
}

func TestReadWordTable_Word2VecHeader(t *testing.T) {
	table, err := ReadWordTable(strings.NewReader("3 3\n" + gloveSample))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

func TestReadWordTable_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"RaggedDimensions", "a 1 2 3\nb 1 2\n"},
		{"BadNumber", "a 1 x 3\n"},
		{"NoComponents", "lonely\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadWordTable(strings.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadWordTable_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(gloveSample))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "glove.txt.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	table, err := LoadWordTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Dimension())
}

func TestNewWordTable(t *testing.T) {
	_, err := NewWordTable(map[string][]float32{"a": {1, 2}, "b": {1}})
	assert.Error(t, err)

	table, err := NewWordTable(map[string][]float32{"a": {1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Dimension())
}
