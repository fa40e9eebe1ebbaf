package vectorindex

import (
	"encoding/json"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/tripweaver/tripweaver/internal/types"
)

// buildPayload flattens a PoiRecord into the store's scalar payload map.
// List-typed and nested fields (types, opening_hours) are JSON-encoded.
func buildPayload(rec types.PoiRecord) map[string]any {
	payload := map[string]any{
		"poi_id":      rec.ID,
		"name":        rec.Name,
		"category":    string(rec.Category),
		"description": rec.Description,
		"city":        rec.City,
		"address":     rec.Address,
		"source":      string(rec.Source),
		"source_url":  rec.SourceURL,
		"raw_text":    rec.RawText,
		"created_at":  rec.CreatedAt.Format(time.RFC3339),

		"google_place_id": rec.GooglePlaceID,
		"google_maps_uri": rec.GoogleMapsURI,
		"primary_type":    rec.PrimaryType,
		"price_level":     rec.PriceLevel,
		"price_range":     rec.PriceRange,
		"website_uri":     rec.WebsiteURI,
		"phone_number":    rec.PhoneNumber,
	}

	if rec.Latitude != nil {
		payload["latitude"] = *rec.Latitude
	}
	if rec.Longitude != nil {
		payload["longitude"] = *rec.Longitude
	}
	if rec.Rating != nil {
		payload["rating"] = *rec.Rating
	}
	if rec.RatingCount != nil {
		payload["rating_count"] = int64(*rec.RatingCount)
	}

	if len(rec.Types) > 0 {
		encoded, err := json.Marshal(rec.Types)
		if err == nil {
			payload["types"] = string(encoded)
		}
	}
	if rec.OpeningHours != nil {
		encoded, err := json.Marshal(rec.OpeningHours)
		if err == nil {
			payload["opening_hours"] = string(encoded)
		}
	}
	return payload
}

// recordFromPayload is the inverse of buildPayload.
func recordFromPayload(payload map[string]*qdrant.Value) types.PoiRecord {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}

	rec := types.PoiRecord{
		ID:          str("poi_id"),
		Name:        str("name"),
		Category:    types.ParsePoiCategory(str("category")),
		Description: str("description"),
		City:        str("city"),
		Address:     str("address"),
		Source:      types.PoiSource(str("source")),
		SourceURL:   str("source_url"),
		RawText:     str("raw_text"),

		GooglePlaceID: str("google_place_id"),
		GoogleMapsURI: str("google_maps_uri"),
		PrimaryType:   str("primary_type"),
		PriceLevel:    str("price_level"),
		PriceRange:    str("price_range"),
		WebsiteURI:    str("website_uri"),
		PhoneNumber:   str("phone_number"),
	}
	if rec.Source == "" {
		rec.Source = types.SourceVector
	}

	if created, err := time.Parse(time.RFC3339, str("created_at")); err == nil {
		rec.CreatedAt = created
	}

	if v, ok := payload["latitude"]; ok {
		lat := v.GetDoubleValue()
		rec.Latitude = &lat
	}
	if v, ok := payload["longitude"]; ok {
		lon := v.GetDoubleValue()
		rec.Longitude = &lon
	}
	if v, ok := payload["rating"]; ok {
		rating := v.GetDoubleValue()
		rec.Rating = &rating
	}
	if v, ok := payload["rating_count"]; ok {
		count := int(v.GetIntegerValue())
		rec.RatingCount = &count
	}

	if raw := str("types"); raw != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			rec.Types = parsed
		}
	}
	if raw := str("opening_hours"); raw != "" {
		var parsed types.OpeningHours
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			rec.OpeningHours = &parsed
		}
	}
	return rec
}
