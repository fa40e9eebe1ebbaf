package types

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// PoiCategory is the normalized category of a point of interest.
type PoiCategory string

const (
	CategoryRestaurant    PoiCategory = "restaurant"
	CategoryCafe          PoiCategory = "cafe"
	CategoryAttraction    PoiCategory = "attraction"
	CategoryAccommodation PoiCategory = "accommodation"
	CategoryShopping      PoiCategory = "shopping"
	CategoryEntertainment PoiCategory = "entertainment"
	CategoryOther         PoiCategory = "other"
)

// ParsePoiCategory maps a raw string onto a known category, falling back to
// CategoryOther for anything unrecognized.
func ParsePoiCategory(s string) PoiCategory {
	switch PoiCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryRestaurant, CategoryCafe, CategoryAttraction,
		CategoryAccommodation, CategoryShopping, CategoryEntertainment:
		return PoiCategory(strings.ToLower(strings.TrimSpace(s)))
	default:
		return CategoryOther
	}
}

// PoiSource tags where a candidate or record originated.
type PoiSource string

const (
	SourceWeb      PoiSource = "web"
	SourceVector   PoiSource = "vector"
	SourceFeedback PoiSource = "feedback"
)

// DayOfWeek follows ISO 8601: Monday is 1, Sunday is 7.
type DayOfWeek int

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// TimeSlot is a half-open opening interval within one day, "HH:MM" 24h.
type TimeSlot struct {
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// Contains reports whether t ("HH:MM") falls inside the slot. Slots crossing
// midnight (open > close) wrap around.
func (s TimeSlot) Contains(t string) bool {
	if s.OpenTime <= s.CloseTime {
		return s.OpenTime <= t && t < s.CloseTime
	}
	return t >= s.OpenTime || t < s.CloseTime
}

// DailyOpeningHours describes one weekday of a POI's opening hours.
type DailyOpeningHours struct {
	Day      DayOfWeek  `json:"day"`
	Slots    []TimeSlot `json:"slots"`
	IsClosed bool       `json:"is_closed"`
}

func (d DailyOpeningHours) IsOpenAt(t string) bool {
	if d.IsClosed {
		return false
	}
	for _, slot := range d.Slots {
		if slot.Contains(t) {
			return true
		}
	}
	return false
}

// OpeningHours holds the full weekly schedule, one entry per weekday.
type OpeningHours struct {
	Periods []DailyOpeningHours `json:"periods"`
	RawText []string            `json:"raw_text,omitempty"`
}

// HoursFor returns the entry for the given weekday, or nil when absent.
func (o *OpeningHours) HoursFor(day DayOfWeek) *DailyOpeningHours {
	for i := range o.Periods {
		if o.Periods[i].Day == day {
			return &o.Periods[i]
		}
	}
	return nil
}

// IsOpenAt reports whether the POI is open at the given instant.
func (o *OpeningHours) IsOpenAt(at time.Time) bool {
	day := DayOfWeek(at.Weekday())
	if day == 0 {
		day = Sunday
	}
	period := o.HoursFor(day)
	if period == nil {
		return false
	}
	return period.IsOpenAt(at.Format("15:04"))
}

// PoiRecord is the authoritative, validated POI. ID is stable: it is derived
// from the canonical source URL, so revalidating the same URL yields the same
// record identity.
type PoiRecord struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    PoiCategory `json:"category"`
	Description string      `json:"description"`
	City        string      `json:"city,omitempty"`
	Address     string      `json:"address,omitempty"`
	Source      PoiSource   `json:"source"`
	SourceURL   string      `json:"source_url,omitempty"`
	RawText     string      `json:"raw_text"`
	CreatedAt   time.Time   `json:"created_at"`

	GooglePlaceID string        `json:"google_place_id,omitempty"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	GoogleMapsURI string        `json:"google_maps_uri,omitempty"`
	Types         []string      `json:"types,omitempty"`
	PrimaryType   string        `json:"primary_type,omitempty"`
	Rating        *float64      `json:"rating,omitempty"`
	RatingCount   *int          `json:"rating_count,omitempty"`
	PriceLevel    string        `json:"price_level,omitempty"`
	PriceRange    string        `json:"price_range,omitempty"`
	WebsiteURI    string        `json:"website_uri,omitempty"`
	PhoneNumber   string        `json:"phone_number,omitempty"`
	OpeningHours  *OpeningHours `json:"opening_hours,omitempty"`
}

// PoiCandidate is an unvalidated search hit from either branch of the
// discovery pipeline. PoiID is set only once the hit maps to a PoiRecord
// (always, for vector hits).
type PoiCandidate struct {
	PoiID     string    `json:"poi_id,omitempty"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	SourceURL string    `json:"source_url,omitempty"`
	Source    PoiSource `json:"source"`
	Relevance float64   `json:"relevance"`
}

// PoiSummary is the LLM-produced per-POI digest consumed by the planner.
type PoiSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    PoiCategory `json:"category"`
	Description string      `json:"description"`
	Address     string      `json:"address,omitempty"`
	Summary     string      `json:"summary"`
	Highlights  []string    `json:"highlights,omitempty"`
}

// GeneratePoiID derives the stable 32-hex POI identifier from the canonical
// source URL.
func GeneratePoiID(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// SynthesizeSourceURL builds a deterministic pseudo-URL for POIs that have no
// real source page, so they still get a stable ID.
func SynthesizeSourceURL(name, city string) string {
	slug := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
	}
	return fmt.Sprintf("poi://%s/%s", slug(city), slug(name))
}
