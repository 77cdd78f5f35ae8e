package crawler

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/normalizer"
	"kornews/pkg/utils"
)

// Fragment drop reasons.
var (
	ErrMissingTitle = errors.New("fragment has no title")
	ErrMissingLink  = errors.New("fragment has no link")
)

// Candidate is one article extracted from a result page, before dedup and upload.
type Candidate struct {
	Category *string
	Summary  *string
	ImageURL *string
	Identity string
	Title    string
	// RawDate is the date fragment as text with line-break elements rendered
	// as normalizer.BreakToken. Empty when the fragment has no date.
	RawDate string
}

// Drop describes an item fragment that did not yield a candidate.
type Drop struct {
	Reason error
	Title  string
	Href   string
	Index  int
}

// Extractor maps item fragments of a result page to candidates.
type Extractor struct {
	selectors config.SelectorConfig
	urls      *URLManager
	text      *utils.StringHelper
	logger    *logger.Logger
}

// NewExtractor creates an extractor using the configured selector contract.
func NewExtractor(selectors config.SelectorConfig, urls *URLManager, log *logger.Logger) *Extractor {
	return &Extractor{
		selectors: selectors,
		urls:      urls,
		text:      utils.NewStringHelper(),
		logger:    log,
	}
}

// Extract returns one candidate per item fragment that has both a title and a resolvable link.
func (e *Extractor) Extract(doc *goquery.Document) []Candidate {
	candidates, _ := e.ExtractPage(doc)

	return candidates
}

// ExtractPage is Extract that also reports the dropped fragments.
func (e *Extractor) ExtractPage(doc *goquery.Document) ([]Candidate, []Drop) {
	var (
		out   []Candidate
		drops []Drop
	)

	doc.Find(e.selectors.Item).Each(func(i int, item *goquery.Selection) {
		c, err := e.ExtractFragment(item)
		if err != nil {
			href, _ := item.Find(e.selectors.Link).First().Attr("href")
			drops = append(drops, Drop{
				Reason: err,
				Title:  c.Title,
				Href:   strings.TrimSpace(href),
				Index:  i,
			})
			e.logger.Debug("Dropped fragment", "index", i, "title", c.Title, "reason", err)

			return
		}

		out = append(out, c)
	})

	return out, drops
}

// ExtractFragment extracts a single item fragment. It fails when the title or
// the primary link is missing; the returned candidate still carries the title
// if one was found.
func (e *Extractor) ExtractFragment(item *goquery.Selection) (Candidate, error) {
	title := e.text.NormalizeWhitespace(item.Find(e.selectors.Title).First().Text())
	if title == "" {
		return Candidate{}, ErrMissingTitle
	}

	href, exists := item.Find(e.selectors.Link).First().Attr("href")
	if !exists {
		return Candidate{Title: title}, ErrMissingLink
	}

	identity, err := e.urls.Resolve(href)
	if err != nil {
		return Candidate{Title: title}, err
	}

	return Candidate{
		Identity: identity,
		Title:    title,
		Category: e.optionalText(item, e.selectors.Category),
		Summary:  e.optionalText(item, e.selectors.Summary),
		ImageURL: e.imageURL(item),
		RawDate:  e.rawDate(item),
	}, nil
}

func (e *Extractor) optionalText(item *goquery.Selection, selector string) *string {
	if selector == "" {
		return nil
	}

	return e.text.OptionalString(item.Find(selector).First().Text())
}

func (e *Extractor) imageURL(item *goquery.Selection) *string {
	if e.selectors.Image == "" {
		return nil
	}

	img := item.Find(e.selectors.Image).First()
	for _, attr := range e.selectors.ImageAttrs {
		if v, ok := img.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return &v
			}
		}
	}

	return nil
}

func (e *Extractor) rawDate(item *goquery.Selection) string {
	if e.selectors.Date == "" {
		return ""
	}

	var sb strings.Builder
	for _, n := range item.Find(e.selectors.Date).First().Nodes {
		renderDateNode(&sb, n)
	}

	return strings.TrimSpace(sb.String())
}

// renderDateNode writes the text content of n's children, emitting
// normalizer.BreakToken for each <br> element.
func renderDateNode(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			if c.Data == "br" {
				sb.WriteString(normalizer.BreakToken)

				continue
			}

			renderDateNode(sb, c)
		}
	}
}
