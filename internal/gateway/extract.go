package gateway

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlkit/crawld/pkg/models"
)

// extractPage pulls links, images, and metadata out of a parsed document and
// renders the requested content formats into the outcome. base is the final
// URL of the page; relative references are resolved against it.
func extractPage(doc *goquery.Document, base *url.URL, cfg models.RenderConfig, outcome *models.FetchOutcome) {
	if doc == nil || outcome == nil {
		return
	}

	outcome.Metadata = extractMetadata(doc)

	// Links are always discovered so the orchestrator can expand the
	// frontier; ExtractLinks only controls whether they appear in the
	// response payload.
	outcome.Links = extractRefs(doc, base, "a[href]", "href")
	if cfg.ExtractImages {
		outcome.Images = extractRefs(doc, base, "img[src]", "src")
	}

	renderContent(doc, cfg, outcome)
}

// extractMetadata collects the title plus name/property meta tags.
func extractMetadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		content, ok := sel.Attr("content")
		if !ok {
			return
		}
		if name, exists := sel.Attr("name"); exists && name != "" {
			meta[name] = content
		}
		if property, exists := sel.Attr("property"); exists && property != "" {
			meta[property] = content
		}
	})
	return meta
}

// extractRefs collects attribute values from matching elements as absolute
// URL strings, dropping javascript:/mailto:/data: pseudo-links and
// duplicates while preserving document order.
func extractRefs(doc *goquery.Document, base *url.URL, selector, attr string) []string {
	seen := make(map[string]struct{})
	var refs []string

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Attr(attr)
		if !ok {
			return
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "#" {
			return
		}
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "javascript:") ||
			strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") ||
			strings.HasPrefix(lower, "data:") {
			return
		}

		resolved := raw
		if base != nil {
			if u, err := base.Parse(raw); err == nil {
				u.Fragment = ""
				resolved = u.String()
			}
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		refs = append(refs, resolved)
	})

	return refs
}

// renderContent fills the outcome's content map. HTML and plain text come
// straight from the document; markdown is converted only when requested.
func renderContent(doc *goquery.Document, cfg models.RenderConfig, outcome *models.FetchOutcome) {
	if outcome.Content == nil {
		outcome.Content = make(map[models.OutputFormat]string)
	}

	html, err := doc.Find("html").Html()
	if err != nil || html == "" {
		if sel := doc.Selection; sel != nil {
			html, _ = sel.Html()
		}
	}
	outcome.Content[models.FormatHTML] = html
	outcome.Content[models.FormatText] = strings.TrimSpace(doc.Find("body").Text())

	if cfg.OutputFormat == models.FormatMarkdown {
		pageURL := outcome.URL
		if md, err := convertMarkdown(html, pageURL); err == nil {
			outcome.Content[models.FormatMarkdown] = md
		} else {
			// Fall back to plain text rather than failing the page.
			outcome.Content[models.FormatMarkdown] = outcome.Content[models.FormatText]
		}
	}
}
