package viz

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"jobmap/cluster"
	"jobmap/reduce"
)

const (
	DefaultHeight = 720
	background    = "#111111"
)

type ChartOptions struct {
	Title    string
	Method   reduce.Method
	Height   int
	ShowText bool
}

func (o ChartOptions) size() (w, h int) {
	h = o.Height
	if h <= 0 {
		h = DefaultHeight
	}
	return h * 4 / 3, h
}

func axisName(m reduce.Method, axis string) string {
	if m == "" {
		return axis
	}
	return strings.ToUpper(string(m)) + " " + axis
}

// RenderScatter writes a standalone HTML scatter chart with one series per
// cluster.
func RenderScatter(w io.Writer, points []Point, o ChartOptions) error {
	width, height := o.size()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       o.Title,
			Width:           strconv.Itoa(width) + "px",
			Height:          strconv.Itoa(height) + "px",
			Theme:           types.ThemeChalk,
			BackgroundColor: background,
		}),
		charts.WithTitleOpts(opts.Title{Title: o.Title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Trigger:   "item",
			Formatter: opts.FuncOpts(`function (p) { return 'KMeans Cluster ' + p.seriesName + '<br/>' + p.name; }`),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: axisName(o.Method, "X"), Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: axisName(o.Method, "Y"), Type: "value"}),
	)

	series := make(map[string][]opts.ScatterData)
	var names []string
	for _, p := range points {
		if _, ok := series[p.Cluster]; !ok {
			names = append(names, p.Cluster)
		}
		series[p.Cluster] = append(series[p.Cluster], opts.ScatterData{
			Name:       hoverText(p),
			Value:      []interface{}{p.X, p.Y, p.Label},
			SymbolSize: 10,
		})
	}
	slices.SortFunc(names, compareClusters)

	for _, name := range names {
		scatter.AddSeries(name, series[name],
			charts.WithLabelOpts(opts.Label{
				Show:      opts.Bool(o.ShowText),
				Position:  "top",
				Formatter: opts.FuncStripCommentsOpts(`function (p) { return p.value[2]; }`),
			}),
		)
	}
	return scatter.Render(w)
}

// RenderElbow writes the inertia curve as a line chart with a marker at k.
func RenderElbow(w io.Writer, curve cluster.InertiaCurve, k int, title string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "800px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Number of Clusters"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "SSE"}),
	)

	xs := make([]string, len(curve))
	ys := make([]opts.LineData, len(curve))
	for i, p := range curve {
		xs[i] = strconv.Itoa(p.K)
		ys[i] = opts.LineData{Value: p.SSE}
	}
	line.SetXAxis(xs).AddSeries("SSE", ys,
		charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
			Name:  "k=" + strconv.Itoa(k),
			XAxis: strconv.Itoa(k),
		}),
	)
	return line.Render(w)
}

// SaveScatter renders the scatter chart into dir and returns the file path.
func SaveScatter(dir string, points []Point, o ChartOptions) (string, error) {
	return save(dir, FileName(o.Title, ".html"), func(w io.Writer) error {
		return RenderScatter(w, points, o)
	})
}

// SaveElbow renders the elbow chart into dir and returns the file path.
func SaveElbow(dir string, curve cluster.InertiaCurve, k int, title string) (string, error) {
	return save(dir, FileName(title, ".html"), func(w io.Writer) error {
		return RenderElbow(w, curve, k, title)
	})
}

func save(dir, name string, render func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart: %w", err)
	}
	if err := render(f); err != nil {
		f.Close()
		return "", fmt.Errorf("render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close chart: %w", err)
	}
	return path, nil
}

func hoverText(p Point) string {
	var b strings.Builder
	for i, h := range p.Hover {
		if i > 0 {
			b.WriteString("<br/>")
		}
		b.WriteString(html.EscapeString(string(h.Field)))
		b.WriteString(": ")
		b.WriteString(html.EscapeString(h.Value))
	}
	return b.String()
}

// compareClusters orders numeric cluster names numerically.
func compareClusters(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai - bi
	}
	return strings.Compare(a, b)
}
