package extract

import (
	"github.com/PuerkitoBio/goquery"
)

// Field is a semantic field name resolved against a listing subtree.
type Field string

const (
	FieldCard         Field = "card"
	FieldName         Field = "name"
	FieldAddress      Field = "address"
	FieldPhone        Field = "phone"
	FieldWebsite      Field = "website"
	FieldCategory     Field = "category"
	FieldRating       Field = "rating"
	FieldReviewCount  Field = "review_count"
	FieldMapLink      Field = "map_link"
	FieldPlaceID      Field = "place_id"
	FieldReview       Field = "review"
	FieldReviewAuthor Field = "review_author"
	FieldReviewRating Field = "review_rating"
	FieldReviewText   Field = "review_text"
	FieldReviewDate   Field = "review_date"
	FieldReviewVotes  Field = "review_votes"
	FieldPost         Field = "post"
	FieldPostTitle    Field = "post_title"
	FieldPostBody     Field = "post_body"
	FieldPostDate     Field = "post_date"
)

// Strategy is one independent way of locating a field in the page. Each
// strategy corresponds to a page layout observed at some point; the source
// markup changes without notice, so strategies are tried in order and the
// first non-empty match wins.
type Strategy struct {
	Name     string
	Selector string
}

// Resolver maps semantic fields to their ordered strategy lists. It performs
// pure reads over a goquery subtree and never merges matches across
// strategies.
type Resolver struct {
	strategies map[Field][]Strategy
}

// NewResolver returns a resolver loaded with the default strategy table.
// Strategies are ordered newest layout first; the last entry per field is
// the oldest known layout.
func NewResolver() *Resolver {
	return &Resolver{strategies: defaultStrategies()}
}

// Resolve returns the first non-empty match for field under root, or false
// when no strategy matches. A miss is not an error; callers decide whether
// the field is required.
func (r *Resolver) Resolve(field Field, root *goquery.Selection) (*goquery.Selection, bool) {
	for _, st := range r.strategies[field] {
		if sel := root.Find(st.Selector); sel.Length() > 0 {
			return sel.First(), true
		}
	}
	return nil, false
}

// ResolveAll returns every node matched by the first strategy that matches
// anything. Used for repeated structures such as review blocks.
func (r *Resolver) ResolveAll(field Field, root *goquery.Selection) (*goquery.Selection, bool) {
	for _, st := range r.strategies[field] {
		if sel := root.Find(st.Selector); sel.Length() > 0 {
			return sel, true
		}
	}
	return nil, false
}

// Text resolves field and returns its normalized text content.
func (r *Resolver) Text(field Field, root *goquery.Selection) (string, bool) {
	sel, ok := r.Resolve(field, root)
	if !ok {
		return "", false
	}
	text := NormalizeText(sel.Text())
	if text == "" {
		return "", false
	}
	return text, true
}

// Attr resolves field and returns the named attribute of the matched node.
func (r *Resolver) Attr(field Field, attr string, root *goquery.Selection) (string, bool) {
	sel, ok := r.Resolve(field, root)
	if !ok {
		return "", false
	}
	val, exists := sel.Attr(attr)
	if !exists || NormalizeText(val) == "" {
		return "", false
	}
	return NormalizeText(val), true
}

func defaultStrategies() map[Field][]Strategy {
	return map[Field][]Strategy{
		FieldCard: {
			{Name: "testid-card", Selector: `div[data-testid="result-card"]`},
			{Name: "role-article", Selector: `div[role="article"]`},
			{Name: "legacy-card", Selector: `div.result-card`},
		},
		FieldName: {
			{Name: "testid-title", Selector: `[data-testid="result-title"]`},
			{Name: "heading", Selector: `div[role="heading"], h3`},
			{Name: "legacy-title", Selector: `.business-name`},
		},
		FieldAddress: {
			{Name: "testid-address", Selector: `[data-testid="result-address"]`},
			{Name: "aria-address", Selector: `span[aria-label*="Address"]`},
			{Name: "legacy-address", Selector: `.business-address`},
		},
		FieldPhone: {
			{Name: "testid-phone", Selector: `[data-testid="result-phone"]`},
			{Name: "aria-phone", Selector: `span[aria-label*="Phone"]`},
			{Name: "legacy-phone", Selector: `.business-phone`},
		},
		FieldWebsite: {
			{Name: "testid-website", Selector: `a[data-testid="result-website"]`},
			{Name: "website-anchor", Selector: `a[aria-label*="Website"]`},
			{Name: "legacy-website", Selector: `a.business-website`},
		},
		FieldCategory: {
			{Name: "testid-category", Selector: `[data-testid="result-category"]`},
			{Name: "legacy-category", Selector: `.business-category`},
		},
		FieldRating: {
			{Name: "testid-rating", Selector: `[data-testid="result-rating"]`},
			{Name: "aria-rating", Selector: `span[aria-label*="stars"]`},
			{Name: "legacy-rating", Selector: `.business-rating`},
		},
		FieldReviewCount: {
			{Name: "testid-reviews", Selector: `[data-testid="result-review-count"]`},
			{Name: "aria-reviews", Selector: `span[aria-label*="reviews"]`},
			{Name: "legacy-reviews", Selector: `.business-review-count`},
		},
		FieldMapLink: {
			{Name: "testid-maplink", Selector: `a[data-testid="result-link"]`},
			{Name: "place-anchor", Selector: `a[href*="/place/"]`},
		},
		FieldReview: {
			{Name: "testid-review", Selector: `div[data-testid="review"]`},
			{Name: "legacy-review", Selector: `div.review-item`},
		},
		FieldReviewAuthor: {
			{Name: "testid-author", Selector: `[data-testid="review-author"]`},
			{Name: "legacy-author", Selector: `.review-author`},
		},
		FieldReviewRating: {
			{Name: "testid-review-rating", Selector: `[data-testid="review-rating"]`},
			{Name: "aria-review-rating", Selector: `span[aria-label*="stars"]`},
			{Name: "legacy-review-rating", Selector: `.review-rating`},
		},
		FieldReviewText: {
			{Name: "testid-review-text", Selector: `[data-testid="review-text"]`},
			{Name: "legacy-review-text", Selector: `.review-text`},
		},
		FieldReviewDate: {
			{Name: "testid-review-date", Selector: `[data-testid="review-date"]`},
			{Name: "legacy-review-date", Selector: `.review-date`},
		},
		FieldReviewVotes: {
			{Name: "testid-review-votes", Selector: `[data-testid="review-helpful"]`},
			{Name: "legacy-review-votes", Selector: `.review-helpful`},
		},
		FieldPost: {
			{Name: "testid-post", Selector: `div[data-testid="profile-post"]`},
			{Name: "legacy-post", Selector: `div.post-item`},
		},
		FieldPostTitle: {
			{Name: "testid-post-title", Selector: `[data-testid="post-title"]`},
			{Name: "legacy-post-title", Selector: `.post-title`},
		},
		FieldPostBody: {
			{Name: "testid-post-body", Selector: `[data-testid="post-body"]`},
			{Name: "legacy-post-body", Selector: `.post-body`},
		},
		FieldPostDate: {
			{Name: "testid-post-date", Selector: `[data-testid="post-date"]`},
			{Name: "legacy-post-date", Selector: `.post-date`},
		},
	}
}
