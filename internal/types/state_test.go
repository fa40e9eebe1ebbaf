package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePoiDataMap(t *testing.T) {
	t.Run("unions both sides", func(t *testing.T) {
		a := map[string]PoiRecord{"1": {ID: "1", Name: "A"}}
		b := map[string]PoiRecord{"2": {ID: "2", Name: "B"}}

		merged := MergePoiDataMap(a, b)
		assert.Len(t, merged, 2)
		assert.Equal(t, "A", merged["1"].Name)
		assert.Equal(t, "B", merged["2"].Name)
	})

	t.Run("incoming wins on collision", func(t *testing.T) {
		a := map[string]PoiRecord{"1": {ID: "1", Name: "old"}}
		b := map[string]PoiRecord{"1": {ID: "1", Name: "new"}}

		merged := MergePoiDataMap(a, b)
		assert.Equal(t, "new", merged["1"].Name)
	})

	t.Run("commutes over disjoint keys", func(t *testing.T) {
		a := map[string]PoiRecord{"1": {ID: "1"}, "2": {ID: "2"}}
		b := map[string]PoiRecord{"3": {ID: "3"}}

		assert.Equal(t, MergePoiDataMap(a, b), MergePoiDataMap(b, a))
	})

	t.Run("tolerates nil sides", func(t *testing.T) {
		assert.Empty(t, MergePoiDataMap(nil, nil))
		merged := MergePoiDataMap(nil, map[string]PoiRecord{"1": {ID: "1"}})
		assert.Len(t, merged, 1)
	})

	t.Run("does not mutate its inputs", func(t *testing.T) {
		a := map[string]PoiRecord{"1": {ID: "1", Name: "old"}}
		b := map[string]PoiRecord{"1": {ID: "1", Name: "new"}}

		_ = MergePoiDataMap(a, b)
		assert.Equal(t, "old", a["1"].Name)
	})
}

func TestDayItineraryValidTransferCount(t *testing.T) {
	poi := func(id string) PoiRecord { return PoiRecord{ID: id} }

	tests := []struct {
		name string
		day  DayItinerary
		want bool
	}{
		{"empty day", DayItinerary{}, true},
		{"single poi no transfers", DayItinerary{Pois: []PoiRecord{poi("1")}}, true},
		{"single poi with transfer", DayItinerary{Pois: []PoiRecord{poi("1")}, Transfers: []Transfer{{}}}, false},
		{"three pois two transfers", DayItinerary{
			Pois:      []PoiRecord{poi("1"), poi("2"), poi("3")},
			Transfers: []Transfer{{}, {}},
		}, true},
		{"three pois one transfer", DayItinerary{
			Pois:      []PoiRecord{poi("1"), poi("2"), poi("3")},
			Transfers: []Transfer{{}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.day.ValidTransferCount())
		})
	}
}
