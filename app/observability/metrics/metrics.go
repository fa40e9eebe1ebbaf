package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the engine's metric instruments.
type AppMetrics struct {
	PlanRequestsTotal        metric.Int64Counter
	PlanDurationSeconds      metric.Float64Histogram
	DiscoveryDurationSeconds metric.Float64Histogram
	PlanIterationsTotal      metric.Int64Counter
	PlanFallbacksTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global instruments once, from the globally
// configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tripweaver")
		var err error
		m := &AppMetrics{}

		m.PlanRequestsTotal, err = meter.Int64Counter(
			"plan_requests_total",
			metric.WithDescription("Total number of itinerary plan requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_requests_total: %v", err)
		}

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"plan_duration_seconds",
			metric.WithDescription("End-to-end duration of itinerary planning"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_duration_seconds: %v", err)
		}

		m.DiscoveryDurationSeconds, err = meter.Float64Histogram(
			"discovery_duration_seconds",
			metric.WithDescription("Duration of POI discovery runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create discovery_duration_seconds: %v", err)
		}

		m.PlanIterationsTotal, err = meter.Int64Counter(
			"plan_iterations_total",
			metric.WithDescription("Total refinement iterations across plan requests"),
			metric.WithUnit("{iteration}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_iterations_total: %v", err)
		}

		m.PlanFallbacksTotal, err = meter.Int64Counter(
			"plan_fallbacks_total",
			metric.WithDescription("Plan requests answered with the best-effort fallback"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_fallbacks_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance. InitAppMetrics
// must run at startup first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
