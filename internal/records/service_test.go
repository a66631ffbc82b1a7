package records

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/logger"
	"restroom-api/internal/model"
	"restroom-api/internal/store"
)

var here = model.Coordinates{Lat: 12.97, Lng: 77.59}

func newService() (*Service, *store.Memory) {
	m := store.NewMemory()
	return NewService(m, logger.Nop()), m
}

func TestSubmit_NormalizesUserRecord(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()

	id, err := s.Submit(ctx, model.Candidate{
		Location:           here,
		Category:           "gas_station",
		CleanlinessRating:  4,
		AvailabilityRating: 2,
		Source:             model.SourceRegistry,
		DistanceFromUser:   99,
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SourceUser, got.Source)
	assert.Equal(t, 3.0, got.Rating)
	assert.Equal(t, "Gas Station", got.Name)
	assert.Zero(t, got.DistanceFromUser)
	require.NotNil(t, got.SubmittedAt)
}

func TestSubmit_Validation(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()

	_, err := s.Submit(ctx, model.Candidate{})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = s.Submit(ctx, model.Candidate{Location: model.Coordinates{Lat: 91, Lng: 10}})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = s.Submit(ctx, model.Candidate{Location: here, CleanlinessRating: 6})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = s.Submit(ctx, model.Candidate{Location: here, Rating: math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestAddReview_RecomputesAggregate(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	id, err := s.Submit(ctx, model.Candidate{Name: "Lobby", Location: here})
	require.NoError(t, err)

	_, err = s.AddReview(ctx, model.Review{ParentID: id, Rating: 4})
	require.NoError(t, err)
	_, err = s.AddReview(ctx, model.Review{ParentID: id, Rating: 2})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Rating)
	assert.Equal(t, 2, got.ReviewCount)

	reviews, err := s.ListReviews(ctx, id)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestAddReview_Errors(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()

	_, err := s.AddReview(ctx, model.Review{Rating: 3})
	assert.ErrorIs(t, err, ErrMissingParent)

	_, err = s.AddReview(ctx, model.Review{ParentID: "x", Rating: 9})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = s.AddReview(ctx, model.Review{ParentID: "missing", Rating: 3})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCascadesReviews(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	id, err := s.Submit(ctx, model.Candidate{Name: "Lobby", Location: here})
	require.NoError(t, err)
	_, err = s.AddReview(ctx, model.Review{ParentID: id, Rating: 5})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	reviews, err := s.ListReviews(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.ErrorIs(t, s.Delete(ctx, id), store.ErrNotFound)
}

func TestUpdate_RejectsBadRating(t *testing.T) {
	s, _ := newService()
	bad := -1.0
	assert.ErrorIs(t, s.Update(context.Background(), "x", model.Patch{Rating: &bad}), ErrInvalidRating)
}

func TestAverageRating(t *testing.T) {
	avg, n := AverageRating(nil)
	assert.Zero(t, avg)
	assert.Zero(t, n)

	avg, n = AverageRating([]model.Review{{Rating: 4}, {Rating: 2}})
	assert.Equal(t, 3.0, avg)
	assert.Equal(t, 2, n)
}
