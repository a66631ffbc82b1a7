package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUserSubmission_AveragesRatings(t *testing.T) {
	c := Candidate{ID: "u1", CleanlinessRating: 4, AvailabilityRating: 2}.NormalizeUserSubmission()
	assert.Equal(t, 3.0, c.Rating)
	assert.Equal(t, SourceUser, c.Source)
}

func TestNormalizeUserSubmission_KeepsRatingWhenOneMissing(t *testing.T) {
	c := Candidate{CleanlinessRating: 4, Rating: 3.5}.NormalizeUserSubmission()
	assert.Equal(t, 3.5, c.Rating)

	c = Candidate{CleanlinessRating: 9, AvailabilityRating: 5}.NormalizeUserSubmission()
	assert.Equal(t, 5.0, c.Rating)
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "refuge_1", Candidate{ID: "refuge_1"}.DedupKey())
	assert.Equal(t, "place-9", Candidate{ID: "refuge_1", CommercialPlaceID: "place-9"}.DedupKey())
}

func TestCoordinatesValid(t *testing.T) {
	assert.False(t, Coordinates{}.Valid())
	assert.False(t, Coordinates{Lat: 12.9}.Valid())
	assert.False(t, Coordinates{Lat: math.NaN(), Lng: 1}.Valid())
	assert.True(t, Coordinates{Lat: 12.97, Lng: 77.59}.Valid())
}

func TestCategoryFromTypes_FirstRuleWins(t *testing.T) {
	assert.Equal(t, CategoryGasStation, CategoryFromTypes([]string{"restaurant", "gas_station"}))
	assert.Equal(t, CategoryRestaurantCafe, CategoryFromTypes([]string{"cafe", "point_of_interest"}))
	assert.Equal(t, CategoryRestaurantCafe, CategoryFromTypes([]string{"supermarket"}))
	assert.Equal(t, CategoryTransitStation, CategoryFromTypes([]string{"bus_station"}))
	assert.Equal(t, CategoryPublicToilet, CategoryFromTypes([]string{"park"}))
	assert.Equal(t, CategoryPublicToilet, CategoryFromTypes(nil))
}

func TestFilterSpecNormalize(t *testing.T) {
	f := FilterSpec{}.Normalize()
	assert.Equal(t, DefaultMaxDistanceKm, f.MaxDistanceKm)

	f = FilterSpec{MaxDistanceKm: 0.1, MinRating: 7}.Normalize()
	assert.Equal(t, 0.5, f.MaxDistanceKm)
	assert.Equal(t, 5.0, f.MinRating)

	f = FilterSpec{MaxDistanceKm: 42}.Normalize()
	require.Equal(t, 10.0, f.MaxDistanceKm)
	assert.True(t, f.DistanceActive())
	assert.False(t, f.AmenityActive())
}

func TestWithAmenitiesOr_LeavesOtherFields(t *testing.T) {
	base := Candidate{ID: "p1", Name: "Cafe X", Rating: 4, HasSoap: true}
	src := Candidate{IsWheelchairAccessible: true, IsGenderNeutral: true, Name: "ignored"}
	out := base.WithAmenitiesOr(src)
	assert.True(t, out.IsWheelchairAccessible)
	assert.True(t, out.IsGenderNeutral)
	assert.True(t, out.HasSoap)
	assert.Equal(t, "Cafe X", out.Name)
	assert.False(t, base.IsWheelchairAccessible)
}
