package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestResolverPrefersNewestLayout(t *testing.T) {
	// Both the current and the legacy layout are present; the first
	// strategy in the list must win.
	html := `<div>
		<span data-testid="result-title">Current Name</span>
		<span class="business-name">Legacy Name</span>
	</div>`
	root := docFromHTML(t, html)

	r := NewResolver()
	text, ok := r.Text(FieldName, root)
	require.True(t, ok)
	assert.Equal(t, "Current Name", text)
}

func TestResolverFallsBackToLegacyLayout(t *testing.T) {
	html := `<div><span class="business-name">Acme Dental</span></div>`
	root := docFromHTML(t, html)

	r := NewResolver()
	text, ok := r.Text(FieldName, root)
	require.True(t, ok)
	assert.Equal(t, "Acme Dental", text)
}

func TestResolverReturnsNotFoundOnMiss(t *testing.T) {
	root := docFromHTML(t, `<div><p>nothing relevant</p></div>`)

	r := NewResolver()
	_, ok := r.Resolve(FieldPhone, root)
	assert.False(t, ok)

	_, ok = r.Text(FieldPhone, root)
	assert.False(t, ok)
}

func TestResolverAttrRequiresValue(t *testing.T) {
	root := docFromHTML(t, `<div><a class="business-website" href="https://acme.example">site</a></div>`)

	r := NewResolver()
	href, ok := r.Attr(FieldWebsite, "href", root)
	require.True(t, ok)
	assert.Equal(t, "https://acme.example", href)

	_, ok = r.Attr(FieldWebsite, "data-missing", root)
	assert.False(t, ok)
}

func TestResolveAllReturnsEveryMatchOfOneStrategy(t *testing.T) {
	html := `<div>
		<div class="result-card">a</div>
		<div class="result-card">b</div>
		<div class="result-card">c</div>
	</div>`
	root := docFromHTML(t, html)

	r := NewResolver()
	cards, ok := r.ResolveAll(FieldCard, root)
	require.True(t, ok)
	assert.Equal(t, 3, cards.Length())
}

func TestResolverWhitespaceOnlyTextIsAMiss(t *testing.T) {
	root := docFromHTML(t, `<div><span class="business-address">   </span></div>`)

	r := NewResolver()
	_, ok := r.Text(FieldAddress, root)
	assert.False(t, ok)
}
