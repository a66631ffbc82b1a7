package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/model"
)

func registry(id string, meters float64) model.Candidate {
	return model.Candidate{ID: id, Source: model.SourceRegistry, DistanceFromUser: meters, IsFree: true, IsApproved: true}
}

func commercial(id string, meters, rating float64) model.Candidate {
	return model.Candidate{ID: id, Source: model.SourceCommercial, DistanceFromUser: meters, Rating: rating}
}

func TestEvaluate_ReportsEveryFailingPredicate(t *testing.T) {
	c := registry("r1", 9000)
	c.Rating = 2
	spec := model.FilterSpec{GenderNeutralOnly: true, WheelchairAccessibleOnly: true, MinRating: 3, MaxDistanceKm: 5}
	got := Evaluate(c, spec.Normalize())
	assert.Equal(t, []Reason{ReasonGenderNeutral, ReasonWheelchairAccessible, ReasonRating, ReasonDistance}, got)
}

func TestEvaluate_ProvenanceExemption(t *testing.T) {
	spec := model.FilterSpec{GenderNeutralOnly: true, DogFriendlyOnly: true, FreeOnly: true}.Normalize()
	assert.Empty(t, Evaluate(commercial("p1", 100, 0), spec))
	user := model.Candidate{ID: "u1", Source: model.SourceUser, DistanceFromUser: 100}
	assert.Empty(t, Evaluate(user, spec))
	assert.Equal(t, []Reason{ReasonGenderNeutral, ReasonDogFriendly}, Evaluate(registry("r1", 100), spec))
}

func TestEvaluate_UnratedPassesRating(t *testing.T) {
	spec := model.FilterSpec{MinRating: 4}.Normalize()
	assert.Empty(t, Evaluate(commercial("p0", 10, 0), spec))
	assert.Empty(t, Evaluate(commercial("p5", 10, 4.5), spec))
	assert.Equal(t, []Reason{ReasonRating}, Evaluate(commercial("p3", 10, 3.9), spec))
}

func TestEvaluate_DistanceBoundaryInclusive(t *testing.T) {
	spec := model.FilterSpec{MaxDistanceKm: 1}.Normalize()
	assert.Empty(t, Evaluate(commercial("a", 1000, 0), spec))
	assert.Equal(t, []Reason{ReasonDistance}, Evaluate(commercial("b", 1000.1, 0), spec))
}

func TestApply_DistanceOnlyPublishesPassingOnly(t *testing.T) {
	in := []model.Candidate{commercial("near", 100, 0), commercial("far", 9000, 0)}
	res := Apply(in, model.DefaultFilterSpec())
	require.Len(t, res.Passing, 1)
	require.Len(t, res.FilteredOut, 1)
	assert.True(t, res.FilteredOut[0].IsFilteredOut)
	pub := res.Published()
	require.Len(t, pub, 1)
	assert.Equal(t, "near", pub[0].ID)
	assert.False(t, in[1].IsFilteredOut)
}

func TestApply_AmenityActivePublishesBothPartitions(t *testing.T) {
	ok := registry("ok", 50)
	ok.IsWheelchairAccessible = true
	in := []model.Candidate{registry("bad", 10), ok, commercial("c", 20, 4)}
	res := Apply(in, model.FilterSpec{WheelchairAccessibleOnly: true})
	pub := res.Published()
	require.Len(t, pub, 3)
	assert.Equal(t, []string{"ok", "c", "bad"}, []string{pub[0].ID, pub[1].ID, pub[2].ID})
	assert.False(t, pub[0].IsFilteredOut)
	assert.True(t, pub[2].IsFilteredOut)
}

func TestApply_Soundness(t *testing.T) {
	spec := model.FilterSpec{BabyFriendlyOnly: true, MinRating: 3, MaxDistanceKm: 2}.Normalize()
	var in []model.Candidate
	for i, d := range []float64{100, 1500, 2500, 400} {
		c := registry(string(rune('a'+i)), d)
		c.IsBabyFriendly = i%2 == 0
		c.Rating = float64(i + 1)
		in = append(in, c)
	}
	in = append(in, commercial("x", 300, 2.5), commercial("y", 300, 0))
	res := Apply(in, spec)
	for _, c := range res.Passing {
		assert.Empty(t, Evaluate(c, spec), c.ID)
	}
	for _, c := range res.FilteredOut {
		assert.NotEmpty(t, Evaluate(c, spec), c.ID)
	}
	assert.Equal(t, len(in), len(res.Published()))
}

func TestApply_ClearsStaleFilteredFlag(t *testing.T) {
	c := commercial("p", 10, 0)
	c.IsFilteredOut = true
	res := Apply([]model.Candidate{c}, model.DefaultFilterSpec())
	require.Len(t, res.Passing, 1)
	assert.False(t, res.Passing[0].IsFilteredOut)
}
