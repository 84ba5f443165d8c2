package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	numberRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	placeIDRe    = regexp.MustCompile(`/place/[^/]+/([A-Za-z0-9_-]+)`)
)

// NormalizeText collapses whitespace runs to single spaces, strips control
// characters and trims the result.
func NormalizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// firstFloat parses the first number-looking substring of s. A miss returns
// nil so callers can tell "unknown" apart from zero.
func firstFloat(s string) *float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// firstInt parses the first integer-looking substring of s, tolerating
// thousand separators ("1,024 reviews").
func firstInt(s string) *int {
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(strings.SplitN(m, ".", 2)[0], ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

// Extractor assembles BusinessRecords from listing card subtrees. It is a
// pure function over its resolver's strategy table; no network access.
type Extractor struct {
	resolver *Resolver
}

// NewExtractor creates an extractor on top of the given resolver.
func NewExtractor(resolver *Resolver) *Extractor {
	return &Extractor{resolver: resolver}
}

// Extract pulls one BusinessRecord out of a listing card. Candidates without
// a name are rejected with ErrListingDiscarded; every other missing field
// yields an absent value instead of failing the listing.
func (e *Extractor) Extract(card *goquery.Selection) (*entity.BusinessRecord, error) {
	name, ok := e.resolver.Text(FieldName, card)
	if !ok {
		return nil, repository.ErrListingDiscarded
	}

	rec := &entity.BusinessRecord{
		Name:       name,
		CapturedAt: time.Now().UTC(),
	}

	if addr, ok := e.resolver.Text(FieldAddress, card); ok {
		rec.Address = addr
	}
	if phone, ok := e.resolver.Text(FieldPhone, card); ok {
		rec.Phone = phone
	}
	if site, ok := e.resolver.Attr(FieldWebsite, "href", card); ok {
		rec.Website = site
	}
	if cat, ok := e.resolver.Text(FieldCategory, card); ok {
		parts := strings.Split(cat, "·")
		rec.Category = NormalizeText(parts[0])
		for _, p := range parts[1:] {
			if sub := NormalizeText(p); sub != "" {
				rec.Subcategories = append(rec.Subcategories, sub)
			}
		}
	}
	if raw, ok := e.resolver.Text(FieldRating, card); ok {
		if v := firstFloat(raw); v != nil && *v >= 0 && *v <= 5 {
			rec.Rating = v
		}
	}
	if raw, ok := e.resolver.Text(FieldReviewCount, card); ok {
		if v := firstInt(raw); v != nil && *v >= 0 {
			rec.ReviewCount = v
		}
	}
	if href, ok := e.resolver.Attr(FieldMapLink, "href", card); ok {
		rec.MapURL = href
		if m := placeIDRe.FindStringSubmatch(href); m != nil {
			rec.PlaceID = &m[1]
		}
	}

	return rec, nil
}

// ExtractReviews flattens every review block found under a business detail
// pane. Reviews with unparseable ratings are kept with rating 0 rather than
// dropped; review text is worth more than the star count.
func (e *Extractor) ExtractReviews(detail *goquery.Selection) []entity.ReviewRecord {
	blocks, ok := e.resolver.ResolveAll(FieldReview, detail)
	if !ok {
		return nil
	}

	var reviews []entity.ReviewRecord
	blocks.Each(func(_ int, block *goquery.Selection) {
		var rv entity.ReviewRecord
		rv.Author, _ = e.resolver.Text(FieldReviewAuthor, block)
		rv.Text, _ = e.resolver.Text(FieldReviewText, block)
		rv.Date, _ = e.resolver.Text(FieldReviewDate, block)
		if raw, ok := e.resolver.Text(FieldReviewRating, block); ok {
			if v := firstInt(raw); v != nil && *v >= 1 && *v <= 5 {
				rv.Rating = *v
			}
		}
		if raw, ok := e.resolver.Text(FieldReviewVotes, block); ok {
			if v := firstInt(raw); v != nil {
				rv.Helpful = *v
			}
		}
		if rv.Author == "" && rv.Text == "" {
			return
		}
		reviews = append(reviews, rv)
	})
	return reviews
}

// ExtractPosts collects profile posts from a business detail pane.
func (e *Extractor) ExtractPosts(detail *goquery.Selection) []entity.PostRecord {
	blocks, ok := e.resolver.ResolveAll(FieldPost, detail)
	if !ok {
		return nil
	}

	var posts []entity.PostRecord
	blocks.Each(func(_ int, block *goquery.Selection) {
		var p entity.PostRecord
		p.Title, _ = e.resolver.Text(FieldPostTitle, block)
		p.Body, _ = e.resolver.Text(FieldPostBody, block)
		p.Date, _ = e.resolver.Text(FieldPostDate, block)
		if p.Title == "" && p.Body == "" {
			return
		}
		posts = append(posts, p)
	})
	return posts
}
