package artifact

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

func sampleRecords(n int) []*entity.BusinessRecord {
	records := make([]*entity.BusinessRecord, 0, n)
	for i := 1; i <= n; i++ {
		rating := 3.5 + float64(i%3)*0.5
		count := i * 10
		placeID := fmt.Sprintf("place-%d", i)
		records = append(records, &entity.BusinessRecord{
			PlaceID:       &placeID,
			Name:          fmt.Sprintf("Business %d", i),
			Address:       fmt.Sprintf("%d Main St", i),
			Phone:         "+1 555-0100",
			Website:       fmt.Sprintf("https://biz%d.example", i),
			Category:      "Coffee shop",
			Subcategories: []string{"Cafe"},
			Rating:        &rating,
			ReviewCount:   &count,
			MapURL:        fmt.Sprintf("https://maps.example.com/place/b/%s", placeID),
			CapturedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	return records
}

func openWorkbook(t *testing.T, art *Artifact) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestBuildRejectsEmptyRecordSet(t *testing.T) {
	_, err := NewBuilder().Build(nil, Options{Query: "coffee"})
	assert.ErrorIs(t, err, repository.ErrNoData)

	_, err = NewBuilder().Build([]*entity.BusinessRecord{}, Options{})
	assert.ErrorIs(t, err, repository.ErrNoData)
}

func TestBuildBusinessesSheet(t *testing.T) {
	exportedAt := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	art, err := NewBuilder().Build(sampleRecords(22), Options{
		Query:      "coffee",
		Location:   "Oakland",
		ExportedAt: exportedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("export_%d.xlsx", exportedAt.Unix()), art.Filename)
	assert.NotEmpty(t, art.Data)

	f := openWorkbook(t, art)
	rows, err := f.GetRows(SheetBusinesses)
	require.NoError(t, err)
	require.Len(t, rows, 23) // header + one row per record

	assert.Equal(t, businessColumns, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "place-1", rows[1][1])
	assert.Equal(t, "Business 1", rows[1][2])
	assert.Equal(t, "Cafe", rows[1][7])
	assert.Equal(t, "2025-06-01T12:00:00Z", rows[1][11])
}

func TestBuildSkipsDetailSheetsWithoutData(t *testing.T) {
	art, err := NewBuilder().Build(sampleRecords(2), Options{Query: "q"})
	require.NoError(t, err)

	f := openWorkbook(t, art)
	sheets := f.GetSheetList()
	assert.Contains(t, sheets, SheetBusinesses)
	assert.Contains(t, sheets, SheetSummary)
	assert.NotContains(t, sheets, SheetReviews)
	assert.NotContains(t, sheets, SheetPosts)
}

func TestBuildReviewsAndPostsSheets(t *testing.T) {
	records := sampleRecords(2)
	records[0].Reviews = []entity.ReviewRecord{
		{Author: "Dana", Rating: 5, Date: "a week ago", Helpful: 3, Text: "Great."},
		{Author: "Lee", Rating: 4, Text: "Good."},
	}
	records[1].Posts = []entity.PostRecord{
		{Title: "Summer hours", Date: "Jul 1", Body: "Open late."},
	}

	art, err := NewBuilder().Build(records, Options{Query: "q"})
	require.NoError(t, err)
	f := openWorkbook(t, art)

	reviews, err := f.GetRows(SheetReviews)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, reviewColumns, reviews[0])
	assert.Equal(t, "1", reviews[1][0]) // back-reference to Businesses row
	assert.Equal(t, "Business 1", reviews[1][1])
	assert.Equal(t, "Dana", reviews[1][2])

	posts, err := f.GetRows(SheetPosts)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "2", posts[1][0])
	assert.Equal(t, "Summer hours", posts[1][2])
}

func TestBuildSummarySheet(t *testing.T) {
	records := sampleRecords(3)
	records[0].Reviews = []entity.ReviewRecord{{Author: "A", Text: "t"}}

	art, err := NewBuilder().Build(records, Options{
		Query:    "coffee",
		Location: "Oakland",
	})
	require.NoError(t, err)
	f := openWorkbook(t, art)

	get := func(cell string) string {
		v, err := f.GetCellValue(SheetSummary, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Record count", get("A1"))
	assert.Equal(t, "3", get("B1"))
	assert.Equal(t, "1", get("B3"))
	assert.Equal(t, "coffee", get("B4"))
	assert.Equal(t, "Oakland", get("B5"))
	assert.NotEmpty(t, get("B2")) // all sample records carry a rating
}

func TestBuildOmitsAbsentNumericValues(t *testing.T) {
	records := sampleRecords(1)
	records[0].Rating = nil
	records[0].ReviewCount = nil

	art, err := NewBuilder().Build(records, Options{Query: "q"})
	require.NoError(t, err)
	f := openWorkbook(t, art)

	rating, err := f.GetCellValue(SheetBusinesses, "I2")
	require.NoError(t, err)
	assert.Empty(t, rating) // unknown, not zero

	count, err := f.GetCellValue(SheetBusinesses, "J2")
	require.NoError(t, err)
	assert.Empty(t, count)
}
