package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/tripweaver/tripweaver/internal/types"
)

const (
	searchTextURL = "https://places.googleapis.com/v1/places:searchText"

	// Search results are restricted to a rectangle of this radius around the
	// resolved city center.
	locationBiasRadiusMeters = 50000.0

	batchConcurrency = 5
)

var fieldMask = "places.id," +
	"places.displayName," +
	"places.formattedAddress," +
	"places.location," +
	"places.types," +
	"places.primaryType," +
	"places.googleMapsUri," +
	"places.rating," +
	"places.userRatingCount," +
	"places.priceLevel," +
	"places.priceRange," +
	"places.websiteUri," +
	"places.internationalPhoneNumber," +
	"places.regularOpeningHours"

// googleTypeToCategory maps place types onto the normalized category set.
var googleTypeToCategory = map[string]types.PoiCategory{
	"restaurant":         types.CategoryRestaurant,
	"food":               types.CategoryRestaurant,
	"meal_takeaway":      types.CategoryRestaurant,
	"meal_delivery":      types.CategoryRestaurant,
	"cafe":               types.CategoryCafe,
	"coffee_shop":        types.CategoryCafe,
	"bakery":             types.CategoryCafe,
	"tourist_attraction": types.CategoryAttraction,
	"museum":             types.CategoryAttraction,
	"park":               types.CategoryAttraction,
	"amusement_park":     types.CategoryAttraction,
	"zoo":                types.CategoryAttraction,
	"aquarium":           types.CategoryAttraction,
	"lodging":            types.CategoryAccommodation,
	"hotel":              types.CategoryAccommodation,
	"motel":              types.CategoryAccommodation,
	"shopping_mall":      types.CategoryShopping,
	"store":              types.CategoryShopping,
	"supermarket":        types.CategoryShopping,
	"night_club":         types.CategoryEntertainment,
	"movie_theater":      types.CategoryEntertainment,
	"bar":                types.CategoryEntertainment,
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type place struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress         string   `json:"formattedAddress"`
	Location                 *latLng  `json:"location"`
	Types                    []string `json:"types"`
	PrimaryType              string   `json:"primaryType"`
	GoogleMapsURI            string   `json:"googleMapsUri"`
	Rating                   *float64 `json:"rating"`
	UserRatingCount          *int     `json:"userRatingCount"`
	PriceLevel               string   `json:"priceLevel"`
	PriceRange               *struct {
		StartPrice *priceAmount `json:"startPrice"`
		EndPrice   *priceAmount `json:"endPrice"`
	} `json:"priceRange"`
	WebsiteURI               string         `json:"websiteUri"`
	InternationalPhoneNumber string         `json:"internationalPhoneNumber"`
	RegularOpeningHours      *openingPeriod `json:"regularOpeningHours"`
}

type priceAmount struct {
	Units        string `json:"units"`
	CurrencyCode string `json:"currencyCode"`
}

type openingPeriod struct {
	Periods []struct {
		Open  *openingPoint `json:"open"`
		Close *openingPoint `json:"close"`
	} `json:"periods"`
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

type openingPoint struct {
	Day    *int `json:"day"`
	Hour   int  `json:"hour"`
	Minute int  `json:"minute"`
}

// Validator confirms candidate POIs against the places API and enriches them
// into PoiRecords with a stable, URL-derived identity.
type Validator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// city name -> *latLng (nil payload means an earlier lookup failed)
	cityLocations *cache.Cache
}

func NewValidator(apiKey string, logger *slog.Logger) *Validator {
	return &Validator{
		apiKey:        apiKey,
		baseURL:       searchTextURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		cityLocations: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// WithBaseURL points the validator at a different endpoint, for tests.
func (v *Validator) WithBaseURL(url string) *Validator {
	v.baseURL = url
	return v
}

// Map validates one summary against the places API. The query is
// "{name} {city}"; an empty result falls back to "{name}" alone. When both
// come back empty the hit is rejected: nil when raiseOnFailure is false, a
// PoiValidationError otherwise.
func (v *Validator) Map(ctx context.Context, summary types.PoiSummary, city, sourceURL string, raiseOnFailure bool) (*types.PoiRecord, error) {
	ctx, span := otel.Tracer("PlacesValidator").Start(ctx, "Map", trace.WithAttributes(
		attribute.String("poi.name", summary.Name),
		attribute.String("poi.city", city),
	))
	defer span.End()

	fail := func(reason string) (*types.PoiRecord, error) {
		span.SetStatus(codes.Error, reason)
		if raiseOnFailure {
			return nil, &types.PoiValidationError{Name: summary.Name, Reason: reason}
		}
		return nil, nil
	}

	if v.apiKey == "" {
		return fail("places api key not configured")
	}

	cityLocation := v.resolveCityLocation(ctx, city)

	found, err := v.searchPlace(ctx, summary.Name+" "+city, cityLocation)
	if err != nil {
		v.logger.WarnContext(ctx, "places search failed", slog.String("name", summary.Name), slog.Any("error", err))
		return fail("places search failed: " + err.Error())
	}
	if found == nil {
		found, err = v.searchPlace(ctx, summary.Name, cityLocation)
		if err != nil {
			return fail("places fallback search failed: " + err.Error())
		}
	}
	if found == nil {
		return fail("no matching place")
	}

	rec := v.buildRecord(summary, found, city, sourceURL)
	span.SetStatus(codes.Ok, "validated")
	return &rec, nil
}

// MapBatch validates summaries concurrently, at most batchConcurrency at a
// time, keeping only the successes.
func (v *Validator) MapBatch(ctx context.Context, summaries []types.PoiSummary, city string) []types.PoiRecord {
	if len(summaries) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(batchConcurrency)
	results := make([]*types.PoiRecord, len(summaries))
	var wg sync.WaitGroup

	for i, summary := range summaries {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			rec, err := v.Map(ctx, summary, city, "", false)
			if err != nil {
				v.logger.WarnContext(ctx, "batch validation error", slog.String("name", summary.Name), slog.Any("error", err))
				return
			}
			results[i] = rec
		}()
	}
	wg.Wait()

	valid := make([]types.PoiRecord, 0, len(summaries))
	for _, rec := range results {
		if rec != nil {
			valid = append(valid, *rec)
		}
	}
	return valid
}

// resolveCityLocation looks up the city's coordinates once and caches the
// outcome, including failed lookups.
func (v *Validator) resolveCityLocation(ctx context.Context, city string) *latLng {
	if cached, ok := v.cityLocations.Get(city); ok {
		loc, _ := cached.(*latLng)
		return loc
	}

	payload := map[string]any{
		"textQuery":    city,
		"includedType": "locality",
	}
	places, err := v.post(ctx, payload, "places.location,places.displayName,places.formattedAddress")
	if err != nil || len(places) == 0 || places[0].Location == nil {
		v.logger.WarnContext(ctx, "city location lookup failed", slog.String("city", city))
		v.cityLocations.Set(city, (*latLng)(nil), cache.NoExpiration)
		return nil
	}

	loc := places[0].Location
	v.cityLocations.Set(city, loc, cache.NoExpiration)
	return loc
}

func (v *Validator) searchPlace(ctx context.Context, query string, bias *latLng) (*place, error) {
	payload := map[string]any{"textQuery": query}
	if bias != nil {
		latOffset := locationBiasRadiusMeters / 111_000
		lngOffset := locationBiasRadiusMeters / (111_000 * math.Max(math.Abs(math.Cos(bias.Latitude*math.Pi/180)), 0.01))
		payload["locationRestriction"] = map[string]any{
			"rectangle": map[string]any{
				"low":  latLng{Latitude: bias.Latitude - latOffset, Longitude: bias.Longitude - lngOffset},
				"high": latLng{Latitude: bias.Latitude + latOffset, Longitude: bias.Longitude + lngOffset},
			},
		}
	}

	places, err := v.post(ctx, payload, fieldMask)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, nil
	}
	return &places[0], nil
}

func (v *Validator) post(ctx context.Context, payload map[string]any, mask string) ([]place, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", v.apiKey)
	req.Header.Set("X-Goog-FieldMask", mask)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		v.logger.WarnContext(ctx, "places api error",
			slog.Int("status", resp.StatusCode), slog.String("detail", string(detail)))
		return nil, nil
	}

	var parsed struct {
		Places []place `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Places, nil
}

func (v *Validator) buildRecord(summary types.PoiSummary, found *place, city, sourceURL string) types.PoiRecord {
	if sourceURL == "" {
		sourceURL = types.SynthesizeSourceURL(summary.Name, city)
	}

	name := found.DisplayName.Text
	if name == "" {
		name = summary.Name
	}

	rec := types.PoiRecord{
		ID:          types.GeneratePoiID(sourceURL),
		Name:        name,
		Category:    mapCategory(found.PrimaryType, found.Types),
		Description: summary.Description,
		City:        city,
		Address:     found.FormattedAddress,
		Source:      types.SourceWeb,
		SourceURL:   sourceURL,
		CreatedAt:   time.Now().UTC(),

		GooglePlaceID: found.ID,
		GoogleMapsURI: found.GoogleMapsURI,
		Types:         found.Types,
		PrimaryType:   found.PrimaryType,
		Rating:        found.Rating,
		RatingCount:   found.UserRatingCount,
		PriceLevel:    found.PriceLevel,
		PriceRange:    formatPriceRange(found),
		WebsiteURI:    found.WebsiteURI,
		PhoneNumber:   found.InternationalPhoneNumber,
		OpeningHours:  parseOpeningHours(found.RegularOpeningHours),
	}
	if found.Location != nil {
		rec.Latitude = &found.Location.Latitude
		rec.Longitude = &found.Location.Longitude
	}
	rec.RawText = buildRawText(summary, rec)
	return rec
}

func mapCategory(primaryType string, placeTypes []string) types.PoiCategory {
	if cat, ok := googleTypeToCategory[primaryType]; ok {
		return cat
	}
	for _, t := range placeTypes {
		if cat, ok := googleTypeToCategory[t]; ok {
			return cat
		}
	}
	return types.CategoryOther
}

func formatPriceRange(found *place) string {
	if found.PriceRange == nil {
		return ""
	}
	format := func(p *priceAmount) string {
		if p == nil || p.Units == "" {
			return ""
		}
		return p.Units + " " + p.CurrencyCode
	}
	start := format(found.PriceRange.StartPrice)
	end := format(found.PriceRange.EndPrice)
	switch {
	case start != "" && end != "":
		return start + " ~ " + end
	case start != "":
		return start + " ~"
	case end != "":
		return "~ " + end
	default:
		return ""
	}
}
