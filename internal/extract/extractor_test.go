package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_EmptyInput(t *testing.T) {
	t.Parallel()

	e := New("")
	require.Empty(t, e.Extract(""))
	require.Empty(t, e.Extract("   \n\t  "))
}

func TestExtract_MalformedMarkupMatchesNothing(t *testing.T) {
	t.Parallel()

	e := New("")
	require.Empty(t, e.Extract("<a href='>>>< <<<<html soup & garbage"))
	require.Empty(t, e.Extract("<p>no links here</p>"))
}

func TestRule1_HrefContainingLabel(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`<p>See <a href="https://cdn.example.com/docs/product-label.pdf">the label</a>.</p>`)
	require.Equal(t, []string{"https://cdn.example.com/docs/product-label.pdf"}, got)
}

func TestRule1_ExcludesInPageAnchors(t *testing.T) {
	t.Parallel()

	e := New("")
	require.Empty(t, e.Extract(`<a href="#label">jump</a> <a href="#labels">jump</a>`))
}

func TestRule1_ResolvesRelativeAgainstOrigin(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`<a href="/sites/default/files/media_file/Labels-053-2022.pdf">view</a>`)
	require.Equal(t,
		[]string{"https://www.fsis.usda.gov/sites/default/files/media_file/Labels-053-2022.pdf"},
		got)
}

func TestRule1_PreservesLegacyDecodingAsymmetry(t *testing.T) {
	t.Parallel()

	// Rule 1 deliberately skips entity decoding, so an entity-escaped href
	// that only rule 1 matches comes back still escaped.
	e := New("")
	got := e.Extract(`<a href="https://example.com/label.zip?a=1&amp;b=2">doc</a>`)
	require.Equal(t, []string{"https://example.com/label.zip?a=1&amp;b=2"}, got)
}

func TestRule2_ViewLabelText(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`<a target="_blank" href="https://example.com/x.pdf">View Label</a>`)
	require.Equal(t, []string{"https://example.com/x.pdf"}, got)

	got = e.Extract(`<a href="https://example.com/y.pdf" class="doc">view labels</a>`)
	require.Equal(t, []string{"https://example.com/y.pdf"}, got)
}

func TestRule2_DecodesEntitiesAndSafeLinks(t *testing.T) {
	t.Parallel()

	e := New("")
	wrapped := `https://gcc02.safelinks.protection.outlook.com/?url=https%3A%2F%2Fexample.com%2Fx.pdf&amp;data=05`
	got := e.Extract(`<a href="` + wrapped + `">view label</a>`)
	require.Equal(t, []string{"https://example.com/x.pdf"}, got)
}

func TestRule3_BracketsOutsideAnchor(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`[<a href="https://example.com/doc.pdf">View Labels</a>]`)
	require.Contains(t, got, "https://example.com/doc.pdf")
}

func TestRule4_BracketsInsideAnchor(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`<a href="https://example.com/doc.pdf">[View Label]</a>`)
	require.Contains(t, got, "https://example.com/doc.pdf")
}

func TestRule5_PDFHereAnchor(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`The documents can be found <a href="https://example.com/notice.pdf">here</a>.`)
	require.Equal(t, []string{"https://example.com/notice.pdf"}, got)

	// Non-PDF "here" anchors do not match.
	require.Empty(t, e.Extract(`<a href="https://example.com/notice.html">here</a>`))
}

func TestRule6_ProductListText(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`<a href="https://example.com/items.xlsx">full product item list</a>`)
	require.Equal(t, []string{"https://example.com/items.xlsx"}, got)
}

func TestRule7_PDFKeywordHref(t *testing.T) {
	t.Parallel()

	e := New("")
	got := e.Extract(`<a href="https://example.com/2022-recall-notice.pdf">details</a>`)
	require.Equal(t, []string{"https://example.com/2022-recall-notice.pdf"}, got)

	// A .pdf href without any keyword stays out.
	require.Empty(t, e.Extract(`<a href="https://example.com/misc.pdf">details</a>`))
}

func TestExtract_DeduplicatesAcrossRulesKeepingFirstSeenOrder(t *testing.T) {
	t.Parallel()

	// The first anchor is matched by rules 1, 2 and 7; the second only by
	// rule 2. Order of first appearance wins and no duplicates survive.
	e := New("")
	markup := `
		<a href="https://example.com/a-label.pdf">view label</a>
		<a href="https://example.com/b.gif">view label</a>
	`
	got := e.Extract(markup)
	require.Equal(t, []string{
		"https://example.com/a-label.pdf",
		"https://example.com/b.gif",
	}, got)
}

func TestExtract_CustomOrigin(t *testing.T) {
	t.Parallel()

	e := New("https://agency.test/")
	got := e.Extract(`<a href="/media/label.pdf">doc</a>`)
	require.Equal(t, []string{"https://agency.test/media/label.pdf"}, got)
}

func TestRules_AreOrderedAndNamed(t *testing.T) {
	t.Parallel()

	e := New("")
	names := make([]string, 0, len(e.Rules()))
	for _, r := range e.Rules() {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{
		"href-containing-label",
		"view-label-anchor",
		"bracketed-view-label",
		"inline-bracket-view-label",
		"pdf-here-anchor",
		"product-list-anchor",
		"pdf-keyword-href",
	}, names)
}

func TestUnwrapSafeLink(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://example.com/x.pdf",
		unwrapSafeLink("https://nam12.safelinks.protection.outlook.com/?url=https%3A%2F%2Fexample.com%2Fx.pdf&data=05"))

	// Pass-through for anything else, including unparsable input.
	require.Equal(t, "https://example.com/y.pdf", unwrapSafeLink("https://example.com/y.pdf"))
	require.Equal(t, "://bad", unwrapSafeLink("://bad"))
}
