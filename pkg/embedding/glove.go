package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// WordTable is an in-memory word vector table in GloVe / word2vec text
// format: one "word v1 v2 ... vd" entry per line. It is read-only after
// loading.
type WordTable struct {
	vectors map[string][]float32
	dim     int
}

// LoadWordTable reads a table from path. Files ending in .gz are
// decompressed on the fly.
func LoadWordTable(path string) (*WordTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word vectors: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip word vectors: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ReadWordTable(r)
}

// ReadWordTable parses a table from r. A word2vec "count dim" header line
// is skipped.
func ReadWordTable(r io.Reader) (*WordTable, error) {
	t := &WordTable{vectors: make(map[string][]float32)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 && isInt(fields[0]) && isInt(fields[1]) {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: no vector components", line)
		}

		vec := make([]float32, len(fields)-1)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vec[i] = float32(v)
		}

		if t.dim == 0 {
			t.dim = len(vec)
		} else if len(vec) != t.dim {
			return nil, fmt.Errorf("line %d: expected %d components, got %d", line, t.dim, len(vec))
		}
		t.vectors[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word vectors: %w", err)
	}
	if len(t.vectors) == 0 {
		return nil, errors.New("word vector table is empty")
	}
	return t, nil
}

// NewWordTable builds a table from an existing map. All vectors must share
// one length.
func NewWordTable(vectors map[string][]float32) (*WordTable, error) {
	t := &WordTable{vectors: make(map[string][]float32, len(vectors))}
	for word, vec := range vectors {
		if t.dim == 0 {
			t.dim = len(vec)
		} else if len(vec) != t.dim {
			return nil, fmt.Errorf("word %q: expected %d components, got %d", word, t.dim, len(vec))
		}
		t.vectors[word] = vec
	}
	return t, nil
}

func (t *WordTable) Lookup(word string) ([]float32, bool) {
	v, ok := t.vectors[word]
	return v, ok
}

func (t *WordTable) Dimension() int { return t.dim }

func (t *WordTable) Len() int { return len(t.vectors) }

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
