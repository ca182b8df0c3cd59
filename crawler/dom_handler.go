package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmap/record"
)

const (
	cardSelector    = "div.job_seen_beacon"
	resultsSelector = "#resultsCol"
	clickPrefix     = "/rc/clk?jk="
)

// ParseCards extracts one record per job card. searchURL is the query the
// page was fetched with; card links are rewritten onto it so they open the
// posting in the search view.
func ParseCards(doc *goquery.Document, searchURL string) []record.Record {
	root := doc.Find(resultsSelector)
	if root.Length() == 0 {
		root = doc.Selection
	}

	var out []record.Record
	root.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find("span[title]").First().Text())
		if title == "" {
			title = "no title"
		}
		out = append(out, record.Record{
			Title:      title,
			Company:    strings.TrimSpace(card.Find("span.companyName").First().Text()),
			DateListed: strings.TrimSpace(card.Find("span.date").First().Text()),
			Summary:    strings.TrimSpace(card.Find("div.job-snippet").First().Text()),
			Link:       postingLink(card, searchURL),
		})
	})
	return out
}

func postingLink(card *goquery.Selection, searchURL string) string {
	href, ok := card.Find("a[href]").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	if strings.HasPrefix(href, clickPrefix) {
		return searchURL + "&" + strings.Replace(href, clickPrefix, "vjk=", 1)
	}
	base, err := url.Parse(searchURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
