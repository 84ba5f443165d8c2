package entity

import "time"

// ReviewRecord is a single customer review nested under a BusinessRecord.
// It is never persisted on its own.
type ReviewRecord struct {
	Author  string `json:"author"`
	Rating  int    `json:"rating"` // 1-5
	Text    string `json:"text"`
	Date    string `json:"date"`
	Helpful int    `json:"helpful"`
}

// PostRecord is a promotional post published on a business profile.
type PostRecord struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Date  string `json:"date"`
}

// BusinessRecord is one harvested listing. A record is only considered valid
// when Name is non-empty; the extractor discards candidates without a name.
// Rating and ReviewCount are pointers so that "unknown" stays distinguishable
// from zero.
type BusinessRecord struct {
	PlaceID       *string        `json:"place_id,omitempty"`
	Name          string         `json:"name"`
	Address       string         `json:"address"`
	Phone         string         `json:"phone"`
	Website       string         `json:"website"`
	Category      string         `json:"category"`
	Subcategories []string       `json:"subcategories,omitempty"`
	Rating        *float64       `json:"rating,omitempty"` // 0.0-5.0
	ReviewCount   *int           `json:"review_count,omitempty"`
	Reviews       []ReviewRecord `json:"reviews,omitempty"`
	Posts         []PostRecord   `json:"posts,omitempty"`
	MapURL        string         `json:"map_url,omitempty"`
	CapturedAt    time.Time      `json:"captured_at"`
}

// DedupeKey identifies a listing across extraction passes. The place id is
// authoritative when present; name+address is the fallback for listings whose
// id has not resolved yet.
func (b *BusinessRecord) DedupeKey() string {
	if b.PlaceID != nil && *b.PlaceID != "" {
		return "id:" + *b.PlaceID
	}
	return "na:" + b.Name + "|" + b.Address
}
