// Package viz joins records, cluster labels and 2D coordinates into
// plottable points and renders them.
package viz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"jobmap/record"
	"jobmap/reduce"
)

const (
	DefaultPreviewLength = 40
	DefaultLabelLength   = 15
	ellipsis             = "..."
)

// HoverField is one line of a point's tooltip.
type HoverField struct {
	Field record.Field `json:"field"`
	Value string       `json:"value"`
}

// Point is one plotted record.
type Point struct {
	Index   int          `json:"index"`
	X       float64      `json:"x"`
	Y       float64      `json:"y"`
	Cluster string       `json:"cluster"`
	Label   string       `json:"label,omitempty"`
	Hover   []HoverField `json:"hover,omitempty"`
}

type Options struct {
	DisplayFields []record.Field
	PreviewLength int
	ShowText      bool
	LabelField    record.Field
	LabelLength   int
}

func (o Options) withDefaults() Options {
	if o.PreviewLength <= 0 {
		o.PreviewLength = DefaultPreviewLength
	}
	if o.LabelLength <= 0 {
		o.LabelLength = DefaultLabelLength
	}
	if o.LabelField == "" {
		o.LabelField = record.FieldCompany
	}
	return o
}

// Preview keeps the first n runes of text and marks the cut with "...".
// Text of at most n runes is returned unchanged.
func Preview(text string, n int) string {
	if n < 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + ellipsis
}

// Assemble builds one point per record that has both a cluster label and a
// coordinate. Output follows input order.
func Assemble(records []record.Record, labels map[int]int, proj reduce.Projection, opts Options) []Point {
	opts = opts.withDefaults()
	out := make([]Point, 0, len(records))
	for i, r := range records {
		label, ok := labels[i]
		if !ok {
			continue
		}
		xy, ok := proj[i]
		if !ok {
			continue
		}
		p := Point{
			Index:   i,
			X:       xy.X,
			Y:       xy.Y,
			Cluster: strconv.Itoa(label),
		}
		for _, f := range opts.DisplayFields {
			v := r.Get(f)
			if f.FreeText() {
				v = Preview(v, opts.PreviewLength)
			}
			p.Hover = append(p.Hover, HoverField{Field: f, Value: v})
		}
		if opts.ShowText {
			p.Label = Preview(r.Get(opts.LabelField), opts.LabelLength)
		}
		out = append(out, p)
	}
	return out
}

// WriteDataset stores points as indented JSON at path.
func WriteDataset(path string, points []Point) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// ReadDataset loads points written by WriteDataset.
func ReadDataset(path string) ([]Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return points, nil
}
