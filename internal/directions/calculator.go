package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripweaver/tripweaver/internal/types"
)

const defaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

// Calculator computes travel legs between POIs. Results are memoized on
// (from, to, mode) for the lifetime of the instance. A missing API key or
// upstream failure yields a zero-valued sentinel transfer, never an error.
type Calculator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	memo       *cache.Cache
}

func NewCalculator(apiKey string, logger *slog.Logger) *Calculator {
	return &Calculator{
		apiKey:     apiKey,
		baseURL:    defaultDirectionsURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		memo:       cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// WithBaseURL points the calculator at a different endpoint, for tests.
func (c *Calculator) WithBaseURL(url string) *Calculator {
	c.baseURL = url
	return c
}

func memoKey(fromID, toID string, mode types.TravelMode) string {
	return fromID + "|" + toID + "|" + string(mode)
}

func sentinel(fromID, toID string, mode types.TravelMode) types.Transfer {
	return types.Transfer{FromPoiID: fromID, ToPoiID: toID, Mode: mode}
}

// Calc returns the travel leg between two POIs for the given mode.
func (c *Calculator) Calc(ctx context.Context, from, to types.PoiRecord, mode types.TravelMode) types.Transfer {
	key := memoKey(from.ID, to.ID, mode)
	if cached, ok := c.memo.Get(key); ok {
		return cached.(types.Transfer)
	}

	transfer := c.query(ctx, from, to, mode)
	c.memo.Set(key, transfer, cache.NoExpiration)
	return transfer
}

// CalcSequence yields len(pois)-1 transfers, one per consecutive POI pair.
func (c *Calculator) CalcSequence(ctx context.Context, pois []types.PoiRecord, mode types.TravelMode) []types.Transfer {
	if len(pois) <= 1 {
		return nil
	}
	transfers := make([]types.Transfer, 0, len(pois)-1)
	for i := 0; i < len(pois)-1; i++ {
		transfers = append(transfers, c.Calc(ctx, pois[i], pois[i+1], mode))
	}
	return transfers
}

// CacheSize reports how many legs are memoized.
func (c *Calculator) CacheSize() int { return c.memo.ItemCount() }

func (c *Calculator) query(ctx context.Context, from, to types.PoiRecord, mode types.TravelMode) types.Transfer {
	ctx, span := otel.Tracer("TravelLegCalculator").Start(ctx, "Calc", trace.WithAttributes(
		attribute.String("leg.from", from.ID),
		attribute.String("leg.to", to.ID),
		attribute.String("leg.mode", string(mode)),
	))
	defer span.End()

	if c.apiKey == "" {
		span.SetStatus(codes.Ok, "no api key, sentinel leg")
		return sentinel(from.ID, to.ID, mode)
	}

	origin := from.Address
	if origin == "" {
		origin = from.Name
	}
	destination := to.Address
	if destination == "" {
		destination = to.Name
	}

	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", string(mode))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		return sentinel(from.ID, to.ID, mode)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "directions request failed", slog.Any("error", err))
		span.RecordError(err)
		return sentinel(from.ID, to.ID, mode)
	}
	defer resp.Body.Close()

	var parsed struct {
		Status string `json:"status"`
		Routes []struct {
			Legs []struct {
				Duration struct {
					Value int `json:"value"`
				} `json:"duration"`
				Distance struct {
					Value int `json:"value"`
				} `json:"distance"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.WarnContext(ctx, "directions response decode failed", slog.Any("error", err))
		span.RecordError(err)
		return sentinel(from.ID, to.ID, mode)
	}

	if parsed.Status != "OK" || len(parsed.Routes) == 0 || len(parsed.Routes[0].Legs) == 0 {
		c.logger.WarnContext(ctx, "directions returned no route",
			slog.String("status", parsed.Status),
			slog.String("origin", origin),
			slog.String("destination", destination))
		span.SetStatus(codes.Ok, fmt.Sprintf("no route (%s), sentinel leg", parsed.Status))
		return sentinel(from.ID, to.ID, mode)
	}

	leg := parsed.Routes[0].Legs[0]
	span.SetStatus(codes.Ok, "computed")
	return types.Transfer{
		FromPoiID:       from.ID,
		ToPoiID:         to.ID,
		Mode:            mode,
		DurationMinutes: leg.Duration.Value / 60,
		DistanceKm:      float64(leg.Distance.Value) / 1000.0,
	}
}
