package types

// TaskName identifies one unit of work in the itinerary task queue.
type TaskName string

const (
	TaskPlan     TaskName = "plan"
	TaskLegs     TaskName = "legs"
	TaskValidate TaskName = "validate"
	TaskBalance  TaskName = "balance"
)

// PoiState is the POI discovery orchestrator's working state. Every field
// except PoiDataMap is written by exactly one graph node; PoiDataMap is
// written by both parallel branches and merged with MergePoiDataMap.
type PoiState struct {
	Persona     string
	Destination string
	StartDate   string
	EndDate     string

	Keywords       []string
	WebResults     []PoiCandidate
	VectorResults  []PoiCandidate
	RerankedWeb    []PoiCandidate
	RerankedVector []PoiCandidate
	Merged         []PoiCandidate
	PoiDataMap     map[string]PoiRecord
	FinalPoiData   []PoiRecord
}

// MergePoiDataMap is the reducer for PoiState.PoiDataMap: map union with the
// incoming side winning on key collision. Colliding keys always describe the
// same POI, so either write is acceptable and the merge commutes over
// disjoint keys.
func MergePoiDataMap(existing, incoming map[string]PoiRecord) map[string]PoiRecord {
	merged := make(map[string]PoiRecord, len(existing)+len(incoming))
	for id, rec := range existing {
		merged[id] = rec
	}
	for id, rec := range incoming {
		merged[id] = rec
	}
	return merged
}

// ItinState is the itinerary orchestrator's working state.
type ItinState struct {
	// inputs
	Pois        []PoiRecord
	Destination string
	StartDate   string
	EndDate     string
	TotalBudget int
	Persona     string

	// working set
	Itineraries        []DayItinerary
	ValidationFeedback string
	ScheduleFeedback   string
	IterationCount     int
	PreviousPoiIDs     []string
	PoiEnrichAttempts  int
	IsPoiSufficient    bool
	IsPoiChanged       bool

	// control
	TaskQueue   []TaskName
	CurrentTask TaskName

	// fallback tracking
	BestItineraries []DayItinerary
	BestPenalty     int
	HasBest         bool
}
