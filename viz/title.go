package viz

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobmap/record"
	"jobmap/reduce"
)

const dateLayout = "Jan-02-2006"

// Title describes a chart the way the scatter and elbow file names do.
type Title struct {
	Date      time.Time
	TextField record.Field
	Source    string
	Method    reduce.Method
	Query     string
}

func (t Title) String() string {
	s := fmt.Sprintf("%s viz Jobs by '%s' via %s + %s",
		t.Date.Format(dateLayout), t.TextField, t.Source, t.Method)
	if t.Query != "" {
		s += " | " + t.Query
	}
	return s
}

// Elbow is the title of the inertia chart.
func (t Title) Elbow() string {
	if t.Query == "" {
		return "Elbow Method for Optimal k - " + t.Source
	}
	return "Elbow Method for Optimal k - " + t.Source + "-" + t.Query
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName turns a title into a file name with the given extension.
func FileName(title, ext string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(title, "_"), "_")
	return name + ext
}
