package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadexport-service/internal/repository"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace runs", "Acme   Dental\n\t Clinic", "Acme Dental Clinic"},
		{"trims edges", "   padded   ", "padded"},
		{"strips control characters", "a\x00b\x1fc", "a b c"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestFirstFloatDistinguishesAbsentFromZero(t *testing.T) {
	v := firstFloat("4.7 stars")
	require.NotNil(t, v)
	assert.InDelta(t, 4.7, *v, 0.001)

	v = firstFloat("0")
	require.NotNil(t, v)
	assert.Zero(t, *v)

	assert.Nil(t, firstFloat("no rating yet"))
	assert.Nil(t, firstFloat(""))
}

func TestFirstFloatAcceptsCommaDecimal(t *testing.T) {
	v := firstFloat("4,5")
	require.NotNil(t, v)
	assert.InDelta(t, 4.5, *v, 0.001)
}

func TestFirstInt(t *testing.T) {
	v := firstInt("(1,024 reviews)")
	require.NotNil(t, v)
	assert.Equal(t, 1024, *v)

	assert.Nil(t, firstInt("be the first to review"))
}

func TestExtractFullCard(t *testing.T) {
	html := `<div class="result-card">
		<span class="business-name">Blue Bottle Coffee</span>
		<span class="business-address">66 Mint St, San Francisco</span>
		<span class="business-phone">+1 510-653-3394</span>
		<a class="business-website" href="https://bluebottlecoffee.com">Website</a>
		<span class="business-category">Coffee shop · Cafe · Roaster</span>
		<span class="business-rating">4.6</span>
		<span class="business-review-count">1,208 reviews</span>
		<a href="https://maps.example.com/place/Blue+Bottle/ChIJd8BlQ2BZwokR">map</a>
	</div>`
	card := docFromHTML(t, html)

	rec, err := NewExtractor(NewResolver()).Extract(card)
	require.NoError(t, err)

	assert.Equal(t, "Blue Bottle Coffee", rec.Name)
	assert.Equal(t, "66 Mint St, San Francisco", rec.Address)
	assert.Equal(t, "+1 510-653-3394", rec.Phone)
	assert.Equal(t, "https://bluebottlecoffee.com", rec.Website)
	assert.Equal(t, "Coffee shop", rec.Category)
	assert.Equal(t, []string{"Cafe", "Roaster"}, rec.Subcategories)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 4.6, *rec.Rating, 0.001)
	require.NotNil(t, rec.ReviewCount)
	assert.Equal(t, 1208, *rec.ReviewCount)
	require.NotNil(t, rec.PlaceID)
	assert.Equal(t, "ChIJd8BlQ2BZwokR", *rec.PlaceID)
	assert.False(t, rec.CapturedAt.IsZero())
}

func TestExtractDiscardsNamelessCard(t *testing.T) {
	html := `<div class="result-card">
		<span class="business-address">somewhere</span>
	</div>`
	card := docFromHTML(t, html)

	_, err := NewExtractor(NewResolver()).Extract(card)
	assert.ErrorIs(t, err, repository.ErrListingDiscarded)
}

func TestExtractKeepsSparseCard(t *testing.T) {
	// Name is the only required field; everything else is absent, not zero.
	card := docFromHTML(t, `<div class="result-card"><span class="business-name">Solo</span></div>`)

	rec, err := NewExtractor(NewResolver()).Extract(card)
	require.NoError(t, err)
	assert.Equal(t, "Solo", rec.Name)
	assert.Empty(t, rec.Address)
	assert.Nil(t, rec.Rating)
	assert.Nil(t, rec.ReviewCount)
	assert.Nil(t, rec.PlaceID)
}

func TestExtractRejectsOutOfRangeRating(t *testing.T) {
	html := `<div class="result-card">
		<span class="business-name">Odd</span>
		<span class="business-rating">47</span>
	</div>`
	card := docFromHTML(t, html)

	rec, err := NewExtractor(NewResolver()).Extract(card)
	require.NoError(t, err)
	assert.Nil(t, rec.Rating)
}

func TestExtractReviews(t *testing.T) {
	html := `<div>
		<div class="review-item">
			<span class="review-author">Dana</span>
			<span class="review-rating">5 stars</span>
			<span class="review-text">Great espresso.</span>
			<span class="review-date">2 weeks ago</span>
			<span class="review-helpful">12</span>
		</div>
		<div class="review-item">
			<span class="review-text">No author, still kept.</span>
		</div>
		<div class="review-item"></div>
	</div>`
	detail := docFromHTML(t, html)

	reviews := NewExtractor(NewResolver()).ExtractReviews(detail)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Dana", reviews[0].Author)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, "Great espresso.", reviews[0].Text)
	assert.Equal(t, 12, reviews[0].Helpful)
	assert.Equal(t, "No author, still kept.", reviews[1].Text)
	assert.Zero(t, reviews[1].Rating)
}

func TestExtractPosts(t *testing.T) {
	html := `<div>
		<div class="post-item">
			<span class="post-title">Summer hours</span>
			<span class="post-body">Open until 9pm.</span>
			<span class="post-date">Jul 1</span>
		</div>
		<div class="post-item"></div>
	</div>`
	detail := docFromHTML(t, html)

	posts := NewExtractor(NewResolver()).ExtractPosts(detail)
	require.Len(t, posts, 1)
	assert.Equal(t, "Summer hours", posts[0].Title)
	assert.Equal(t, "Open until 9pm.", posts[0].Body)
}
