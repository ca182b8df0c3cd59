package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const pageSize = 50

var (
	ErrJobType  = errors.New("job type not supported, use internship, fulltime or permanent")
	ErrLanguage = errors.New("language must be a two letter code")
)

// Query selects listings. Default ignores the other fields and requests
// English-language internships across Switzerland.
type Query struct {
	Term     string
	JobType  string
	Language string
	Default  bool
}

func (q Query) Validate() error {
	if q.Default {
		return nil
	}
	switch q.JobType {
	case "", "internship", "fulltime", "permanent":
	default:
		return fmt.Errorf("%w: %q", ErrJobType, q.JobType)
	}
	if q.Language != "" && len(q.Language) != 2 {
		return fmt.Errorf("%w: %q", ErrLanguage, q.Language)
	}
	return nil
}

// Name is a short label for file names and chart titles.
func (q Query) Name() string {
	if q.Default {
		return "default"
	}
	parts := []string{q.Term}
	if q.JobType != "" {
		parts = append(parts, q.JobType)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

type param struct{ key, value string }

// searchParams returns the query parameters that identify the search, in
// the order the site uses them.
func (q Query) searchParams() []param {
	if q.Default {
		return []param{{"q", "Switzerland English"}, {"jt", "internship"}}
	}
	var ps []param
	if q.Term != "" {
		ps = append(ps, param{"q", q.Term})
	}
	if q.JobType != "" {
		ps = append(ps, param{"jt", q.JobType})
	}
	if q.Language != "" {
		ps = append(ps, param{"lang", q.Language})
	}
	return ps
}

func encode(ps []param) string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// SearchURL is base plus the search parameters, without paging or sorting.
// Posting links are built on top of it.
func (q Query) SearchURL(base string) string {
	return base + "?" + encode(q.searchParams())
}

// PageURL returns the listing page starting at result offset page*50,
// newest postings first.
func (q Query) PageURL(base string, page int) string {
	ps := append(q.searchParams(),
		param{"fromage", "last"},
		param{"limit", strconv.Itoa(pageSize)},
		param{"sort", "date"},
	)
	if page > 0 {
		ps = append(ps, param{"start", strconv.Itoa(page * pageSize)})
	}
	return base + "?" + encode(ps)
}
