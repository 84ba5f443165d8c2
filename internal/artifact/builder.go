// Package artifact turns a completed record set into the downloadable
// multi-sheet spreadsheet handed to the user.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

// Sheet names and column order are part of the contract consumers rely on;
// widths and the frozen header row are cosmetic.
const (
	SheetBusinesses = "Businesses"
	SheetReviews    = "Reviews"
	SheetPosts      = "Posts"
	SheetSummary    = "Summary"
)

var businessColumns = []string{
	"#", "Place ID", "Name", "Address", "Phone", "Website",
	"Category", "Subcategories", "Rating", "Reviews", "Map URL", "Captured At",
}

var reviewColumns = []string{
	"Business #", "Business Name", "Author", "Rating", "Date", "Helpful", "Text",
}

var postColumns = []string{
	"Business #", "Business Name", "Title", "Date", "Body",
}

// Options carry the export context echoed on the summary sheet.
type Options struct {
	Query      string
	Location   string
	ExportedAt time.Time
}

// Artifact is the finished downloadable blob.
type Artifact struct {
	Filename string
	Data     []byte
}

// Builder renders xlsx artifacts. Stateless and safe for concurrent use.
type Builder struct{}

// NewBuilder returns an artifact builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build renders the record set into an xlsx workbook. An empty record set is
// an error: the caller must not produce, or bill for, an empty export.
func (b *Builder) Build(records []*entity.BusinessRecord, opts Options) (*Artifact, error) {
	if len(records) == 0 {
		return nil, repository.ErrNoData
	}
	if opts.ExportedAt.IsZero() {
		opts.ExportedAt = time.Now().UTC()
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetBusinesses); err != nil {
		return nil, fmt.Errorf("naming businesses sheet: %w", err)
	}
	if err := b.writeBusinesses(f, records); err != nil {
		return nil, err
	}
	if err := b.writeReviews(f, records); err != nil {
		return nil, err
	}
	if err := b.writePosts(f, records); err != nil {
		return nil, err
	}
	if err := b.writeSummary(f, records, opts); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}

	return &Artifact{
		Filename: fmt.Sprintf("export_%d.xlsx", opts.ExportedAt.Unix()),
		Data:     buf.Bytes(),
	}, nil
}

func (b *Builder) writeBusinesses(f *excelize.File, records []*entity.BusinessRecord) error {
	if err := writeHeader(f, SheetBusinesses, businessColumns); err != nil {
		return err
	}

	ratingStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return fmt.Errorf("creating rating style: %w", err)
	}

	for i, rec := range records {
		row := i + 2
		placeID := ""
		if rec.PlaceID != nil {
			placeID = *rec.PlaceID
		}
		values := []interface{}{
			i + 1, placeID, rec.Name, rec.Address, rec.Phone, rec.Website,
			rec.Category, strings.Join(rec.Subcategories, ", "),
			nil, nil, rec.MapURL, rec.CapturedAt.Format(time.RFC3339),
		}
		if rec.Rating != nil {
			values[8] = *rec.Rating
		}
		if rec.ReviewCount != nil {
			values[9] = *rec.ReviewCount
		}
		if err := writeRow(f, SheetBusinesses, row, values); err != nil {
			return err
		}
		if rec.Website != "" {
			cell, _ := excelize.CoordinatesToCellName(6, row)
			if err := f.SetCellHyperLink(SheetBusinesses, cell, rec.Website, "External"); err != nil {
				return fmt.Errorf("linking website cell: %w", err)
			}
		}
		if rec.MapURL != "" {
			cell, _ := excelize.CoordinatesToCellName(11, row)
			if err := f.SetCellHyperLink(SheetBusinesses, cell, rec.MapURL, "External"); err != nil {
				return fmt.Errorf("linking map cell: %w", err)
			}
		}
		ratingCell, _ := excelize.CoordinatesToCellName(9, row)
		if err := f.SetCellStyle(SheetBusinesses, ratingCell, ratingCell, ratingStyle); err != nil {
			return fmt.Errorf("styling rating cell: %w", err)
		}
	}

	if err := f.SetColWidth(SheetBusinesses, "C", "F", 28); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	return f.SetColWidth(SheetBusinesses, "K", "L", 32)
}

func (b *Builder) writeReviews(f *excelize.File, records []*entity.BusinessRecord) error {
	total := 0
	for _, rec := range records {
		total += len(rec.Reviews)
	}
	if total == 0 {
		return nil
	}

	if _, err := f.NewSheet(SheetReviews); err != nil {
		return fmt.Errorf("creating reviews sheet: %w", err)
	}
	if err := writeHeader(f, SheetReviews, reviewColumns); err != nil {
		return err
	}

	row := 2
	for i, rec := range records {
		for _, rv := range rec.Reviews {
			values := []interface{}{
				i + 1, rec.Name, rv.Author, rv.Rating, rv.Date, rv.Helpful, rv.Text,
			}
			if err := writeRow(f, SheetReviews, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return f.SetColWidth(SheetReviews, "G", "G", 64)
}

func (b *Builder) writePosts(f *excelize.File, records []*entity.BusinessRecord) error {
	total := 0
	for _, rec := range records {
		total += len(rec.Posts)
	}
	if total == 0 {
		return nil
	}

	if _, err := f.NewSheet(SheetPosts); err != nil {
		return fmt.Errorf("creating posts sheet: %w", err)
	}
	if err := writeHeader(f, SheetPosts, postColumns); err != nil {
		return err
	}

	row := 2
	for i, rec := range records {
		for _, p := range rec.Posts {
			values := []interface{}{i + 1, rec.Name, p.Title, p.Date, p.Body}
			if err := writeRow(f, SheetPosts, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return f.SetColWidth(SheetPosts, "E", "E", 64)
}

func (b *Builder) writeSummary(f *excelize.File, records []*entity.BusinessRecord, opts Options) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	rated := 0
	ratingSum := 0.0
	totalReviews := 0
	for _, rec := range records {
		if rec.Rating != nil {
			rated++
			ratingSum += *rec.Rating
		}
		totalReviews += len(rec.Reviews)
	}

	rows := [][]interface{}{
		{"Record count", len(records)},
		{"Average rating", nil},
		{"Reviews exported", totalReviews},
		{"Source query", opts.Query},
		{"Location", opts.Location},
		{"Exported at", opts.ExportedAt.Format(time.RFC3339)},
	}
	if rated > 0 {
		rows[1][1] = ratingSum / float64(rated)
	}
	for i, values := range rows {
		if err := writeRow(f, SheetSummary, i+1, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSummary, "A", "B", 24)
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := writeRow(f, sheet, 1, values); err != nil {
		return err
	}
	// Keep the header visible while scrolling.
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("addressing cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("writing cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
