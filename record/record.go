// Package record defines the job listing record that flows through the
// clustering pipeline and the ingestion rules applied to it.
package record

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Field names one of the fixed record fields.
type Field string

const (
	FieldTitle      Field = "title"
	FieldCompany    Field = "company"
	FieldSummary    Field = "summary"
	FieldDateListed Field = "date_listed"
	FieldLink       Field = "link"
	FieldShortLink  Field = "short_link"
)

// Fields lists every known field in display order.
var Fields = []Field{FieldTitle, FieldCompany, FieldSummary, FieldDateListed, FieldLink, FieldShortLink}

var ErrUnknownField = errors.New("unknown record field")

// ParseField maps a configuration name to a Field.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// FreeText reports whether the field holds prose that must be shortened
// before it is shown in a chart.
func (f Field) FreeText() bool {
	return f == FieldTitle || f == FieldSummary
}

// Record is one scraped job listing. Its identity is its position in the
// slice it arrived in.
type Record struct {
	Title      string    `json:"title,omitempty" yaml:"title,omitempty"`
	Company    string    `json:"company,omitempty" yaml:"company,omitempty"`
	Summary    string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	DateListed string    `json:"date_listed,omitempty" yaml:"date_listed,omitempty"`
	Link       string    `json:"link,omitempty" yaml:"link,omitempty"`
	ShortLink  string    `json:"short_link,omitempty" yaml:"short_link,omitempty"`
	PulledAt   time.Time `json:"pulled_at,omitzero" yaml:"pulled_at,omitempty"`
}

// Get returns the value of field f.
func (r Record) Get(f Field) string {
	switch f {
	case FieldTitle:
		return r.Title
	case FieldCompany:
		return r.Company
	case FieldSummary:
		return r.Summary
	case FieldDateListed:
		return r.DateListed
	case FieldLink:
		return r.Link
	case FieldShortLink:
		return r.ShortLink
	}
	return ""
}

// Texts extracts field f from every record, preserving order.
func Texts(records []Record, f Field) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Get(f)
	}
	return out
}

// Normalize trims surrounding whitespace and collapses internal runs of
// whitespace, the cleaning applied to scraped titles and summaries.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// InvalidError identifies the record that failed validation.
type InvalidError struct {
	Index int
	Link  string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("record %d: invalid link %q", e.Index, e.Link)
}

// Validate cleans every record in place and rejects records that cannot be
// ingested. An empty text field is allowed: it degrades during vectorization.
func Validate(records []Record) error {
	for i := range records {
		r := &records[i]
		r.Title = Normalize(r.Title)
		r.Company = Normalize(r.Company)
		r.Summary = Normalize(r.Summary)
		r.DateListed = Normalize(r.DateListed)
		r.Link = strings.TrimSpace(r.Link)
		r.ShortLink = strings.TrimSpace(r.ShortLink)

		for _, link := range []string{r.Link, r.ShortLink} {
			if link == "" {
				continue
			}
			u, err := url.Parse(link)
			if err != nil || !u.IsAbs() {
				return &InvalidError{Index: i, Link: link}
			}
		}
	}
	return nil
}
