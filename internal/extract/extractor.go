// Package extract recovers label document URLs from recall summary markup.
//
// The summary field is free-form HTML written by many authors over many
// years, so extraction is an ordered cascade of independent pattern rules
// rather than a DOM walk. Each rule contributes candidate URLs; the final
// result is the union in first-seen order.
package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// DefaultOrigin is the agency origin used to resolve relative hrefs.
const DefaultOrigin = "https://www.fsis.usda.gov"

var (
	reHrefLabel = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']*label[^"']*)["']`)

	reViewLabel        = regexp.MustCompile(`(?i)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>\s*view\s+labels?\s*</a>`)
	reViewLabelOutside = regexp.MustCompile(`(?i)\[\s*<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>\s*view\s+labels?\s*</a>\s*\]`)
	reViewLabelInside  = regexp.MustCompile(`(?i)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>\s*\[\s*view\s+labels?\s*\]\s*</a>`)
	rePDFHere          = regexp.MustCompile(`(?i)<a\s[^>]*href\s*=\s*["']([^"']*\.pdf[^"']*)["'][^>]*>\s*here\s*</a>`)
	reProductList      = regexp.MustCompile(`(?i)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>[^<]*product[^<]*list[^<]*</a>`)
	rePDFHref          = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']*\.pdf[^"']*)["']`)
)

// Rule is one independent extraction pass over the raw markup.
type Rule struct {
	Name  string
	Apply func(markup string) []string
}

// Extractor finds label document URLs in recall summary markup.
type Extractor struct {
	origin string
	rules  []Rule
}

// New builds an Extractor resolving relative paths against origin. An empty
// origin falls back to DefaultOrigin.
func New(origin string) *Extractor {
	if origin == "" {
		origin = DefaultOrigin
	}
	e := &Extractor{origin: strings.TrimRight(origin, "/")}
	e.rules = []Rule{
		{Name: "href-containing-label", Apply: e.hrefContainingLabel},
		{Name: "view-label-anchor", Apply: e.viewLabelAnchors},
		{Name: "bracketed-view-label", Apply: e.bracketedViewLabelAnchors},
		{Name: "inline-bracket-view-label", Apply: e.inlineBracketViewLabelAnchors},
		{Name: "pdf-here-anchor", Apply: e.pdfHereAnchors},
		{Name: "product-list-anchor", Apply: e.productListAnchors},
		{Name: "pdf-keyword-href", Apply: e.pdfKeywordHrefs},
	}
	return e
}

// Extract runs every rule in order and returns the deduplicated union of
// their outputs, preserving the order in which URLs were first seen.
// Malformed markup never fails; it just matches nothing.
func (e *Extractor) Extract(markup string) []string {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, rule := range e.rules {
		for _, u := range rule.Apply(markup) {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

// Rules exposes the ordered rule list so each rule can be tested on its own.
func (e *Extractor) Rules() []Rule {
	return e.rules
}

// hrefContainingLabel is rule 1: any href whose value mentions "label",
// excluding pure in-page anchors. Unlike the later rules it performs no
// entity decoding and no mail-redirect unwrapping; older summaries carry
// plain hrefs and the legacy behavior is preserved deliberately.
func (e *Extractor) hrefContainingLabel(markup string) []string {
	var out []string
	for _, m := range reHrefLabel.FindAllStringSubmatch(markup, -1) {
		href := m[1]
		if strings.HasPrefix(href, "#") {
			continue
		}
		out = append(out, e.resolve(href))
	}
	return out
}

// viewLabelAnchors is rule 2: anchors whose visible text is "view label" or
// "view labels", attribute order inside the tag irrelevant.
func (e *Extractor) viewLabelAnchors(markup string) []string {
	return e.decodeAll(reViewLabel.FindAllStringSubmatch(markup, -1))
}

// bracketedViewLabelAnchors is rule 3: [<a ...>view label(s)</a>].
func (e *Extractor) bracketedViewLabelAnchors(markup string) []string {
	return e.decodeAll(reViewLabelOutside.FindAllStringSubmatch(markup, -1))
}

// inlineBracketViewLabelAnchors is rule 4: <a ...>[view label(s)]</a>.
func (e *Extractor) inlineBracketViewLabelAnchors(markup string) []string {
	return e.decodeAll(reViewLabelInside.FindAllStringSubmatch(markup, -1))
}

// pdfHereAnchors is rule 5: anchors to a .pdf URL whose text is exactly
// "here".
func (e *Extractor) pdfHereAnchors(markup string) []string {
	return e.decodeAll(rePDFHere.FindAllStringSubmatch(markup, -1))
}

// productListAnchors is rule 6: anchors whose text mentions "product" then
// "list".
func (e *Extractor) productListAnchors(markup string) []string {
	return e.decodeAll(reProductList.FindAllStringSubmatch(markup, -1))
}

// pdfKeywordHrefs is rule 7: any .pdf href containing "label", "product" or
// "recall".
func (e *Extractor) pdfKeywordHrefs(markup string) []string {
	var out []string
	for _, m := range rePDFHref.FindAllStringSubmatch(markup, -1) {
		lower := strings.ToLower(m[1])
		if !strings.Contains(lower, "label") &&
			!strings.Contains(lower, "product") &&
			!strings.Contains(lower, "recall") {
			continue
		}
		out = append(out, e.decode(m[1]))
	}
	return out
}

func (e *Extractor) decodeAll(matches [][]string) []string {
	var out []string
	for _, m := range matches {
		out = append(out, e.decode(m[1]))
	}
	return out
}

// decode applies the post-capture normalization shared by rules 2-7:
// HTML entity decoding, then mail-safe-link unwrapping, then origin
// resolution for relative paths.
func (e *Extractor) decode(href string) string {
	return e.resolve(unwrapSafeLink(html.UnescapeString(href)))
}

func (e *Extractor) resolve(href string) string {
	if strings.HasPrefix(href, "/") {
		return e.origin + href
	}
	return href
}

// unwrapSafeLink decodes an Outlook SafeLinks wrapper URL back to its target.
// Anything that does not look like a safe link passes through untouched.
func unwrapSafeLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	host := strings.ToLower(u.Hostname())
	if host != "safelinks.protection.outlook.com" &&
		!strings.HasSuffix(host, ".safelinks.protection.outlook.com") {
		return href
	}
	if target := u.Query().Get("url"); target != "" {
		return target
	}
	return href
}
