package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/model"
)

var center = model.Coordinates{Lat: 12.97, Lng: 77.59}

func userAt(name string, lat float64) model.Candidate {
	return model.Candidate{Name: name, Location: model.Coordinates{Lat: lat, Lng: 77.59}, Source: model.SourceUser, IsApproved: true}
}

func nextUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := userAt("Mine", 12.971)
	c.DistanceFromUser = 999
	c.IsFilteredOut = true

	id, err := m.AddRecord(ctx, c)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := m.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Name)
	assert.Zero(t, got.DistanceFromUser)
	assert.False(t, got.IsFilteredOut)
	require.NotNil(t, got.SubmittedAt)

	name := "Renamed"
	require.NoError(t, m.Update(ctx, id, model.Patch{Name: &name}))
	got, _ = m.GetByID(ctx, id)
	assert.Equal(t, "Renamed", got.Name)

	_, err = m.AddReview(ctx, model.Review{ParentID: id, Rating: 4})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, id))
	_, err = m.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	revs, _ := m.ListReviews(ctx, id)
	assert.Empty(t, revs)

	assert.ErrorIs(t, m.Delete(ctx, id), ErrNotFound)
	assert.ErrorIs(t, m.Update(ctx, id, model.Patch{}), ErrNotFound)
	_, err = m.AddReview(ctx, model.Review{ParentID: id})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_FetchNearbyRadiusAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _ = m.AddRecord(ctx, userAt("far", 12.99))
	_, _ = m.AddRecord(ctx, userAt("second", 12.973))
	_, _ = m.AddRecord(ctx, userAt("first", 12.9705))
	_, _ = m.AddRecord(ctx, model.Candidate{Name: "zero"})

	got, err := m.FetchNearby(ctx, center, 500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "second", got[1].Name)
	assert.InDelta(t, 55.6, got[0].DistanceFromUser, 1)
}

func TestMemory_SubscribeEmitsSnapshotThenChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()
	_, _ = m.AddRecord(ctx, userAt("a", 12.9705))

	ch, err := m.SubscribeNearby(ctx, center, 500)
	require.NoError(t, err)
	u := nextUpdate(t, ch)
	require.NoError(t, u.Err)
	assert.Len(t, u.Candidates, 1)

	_, _ = m.AddRecord(ctx, userAt("b", 12.971))
	u = nextUpdate(t, ch)
	assert.Len(t, u.Candidates, 2)

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed after cancel")
		}
	}
}

func TestMemory_ListReviewsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.AddRecord(ctx, userAt("a", 12.9705))
	t0 := time.Unix(100, 0)
	_, _ = m.AddReview(ctx, model.Review{ParentID: id, Comment: "old", CreatedAt: t0})
	_, _ = m.AddReview(ctx, model.Review{ParentID: id, Comment: "new", CreatedAt: t0.Add(time.Hour)})
	revs, err := m.ListReviews(ctx, id)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "new", revs[0].Comment)
}
