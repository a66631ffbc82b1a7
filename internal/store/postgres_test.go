package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/logger"
	"restroom-api/internal/model"
)

type fakeNotifier struct {
	ch chan struct{}
}

func (f *fakeNotifier) Listen(ctx context.Context) (<-chan struct{}, error) { return f.ch, nil }

func setupMockDB(t *testing.T) (*Postgres, sqlmock.Sqlmock, *fakeNotifier) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	n := &fakeNotifier{ch: make(chan struct{}, 1)}
	p := NewPostgres(db, n, logger.Nop())
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	return p, mock, n
}

var restroomCols = []string{
	"id", "name", "address", "lat", "lng", "category", "is_public", "is_free", "is_gender_neutral", "is_baby_friendly",
	"is_dog_friendly", "is_wheelchair_accessible", "has_changing_table", "has_paper", "has_soap", "has_hand_dryer",
	"has_running_water", "has_shower", "cleanliness_rating", "availability_rating", "rating", "review_count", "source",
	"submitted_by", "is_from_commercial", "commercial_place_id", "is_approved", "submitted_at", "last_updated",
}

func restroomRow(rows *sqlmock.Rows, id, name string, lat float64) *sqlmock.Rows {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, name, "addr", lat, 77.59, "hotel", true, true, false, false, false, true,
		false, true, true, false, true, false, 4.0, 2.0, 3.0, 1, "user", "alice", false, "", true, ts, ts)
}

func TestPostgres_AddRecord(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO restrooms (id, name")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := p.AddRecord(context.Background(), model.Candidate{Name: "Mine", Location: center, DistanceFromUser: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddRecordWrapsError(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	mock.ExpectExec("INSERT INTO restrooms").WillReturnError(errors.New("conn reset"))
	_, err := p.AddRecord(context.Background(), model.Candidate{ID: "x", Location: center})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert restroom")
}

func TestPostgres_GetByID(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM restrooms WHERE id=$1")).
		WithArgs("r1").
		WillReturnRows(restroomRow(sqlmock.NewRows(restroomCols), "r1", "Lobby", 12.971))

	c, err := p.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Lobby", c.Name)
	assert.Equal(t, model.CategoryHotel, c.Category)
	assert.Equal(t, model.SourceUser, c.Source)
	assert.True(t, c.IsWheelchairAccessible)
	assert.Equal(t, 3.0, c.Rating)
	require.NotNil(t, c.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByIDNotFound(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	mock.ExpectQuery("FROM restrooms WHERE id").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err := p.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_UpdateBuildsSetClause(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	rating, count := 4.5, 2
	mock.ExpectExec(regexp.QuoteMeta("UPDATE restrooms SET rating=$1, review_count=$2, last_updated=$3 WHERE id=$4")).
		WithArgs(4.5, 2, sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Update(context.Background(), "r1", model.Patch{Rating: &rating, ReviewCount: &count}))

	mock.ExpectExec("UPDATE restrooms SET").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, p.Update(context.Background(), "nope", model.Patch{}), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteCascadesInTransaction(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM restroom_reviews WHERE parent_id=$1")).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM restrooms WHERE id=$1")).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, p.Delete(context.Background(), "r1"))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM restroom_reviews").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM restrooms").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, p.Delete(context.Background(), "r2"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FetchNearbyFiltersByExactDistance(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	rows := sqlmock.NewRows(restroomCols)
	restroomRow(rows, "b", "second", 12.973)
	restroomRow(rows, "a", "first", 12.9705)
	restroomRow(rows, "c", "corner", 12.9744)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4")).WillReturnRows(rows)

	got, err := p.FetchNearby(context.Background(), center, 400)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.InDelta(t, 333.6, got[1].DistanceFromUser, 1)
}

func TestPostgres_SubscribeRefetchesOnNotify(t *testing.T) {
	p, mock, n := setupMockDB(t)
	mock.ExpectQuery("FROM restrooms WHERE lat BETWEEN").
		WillReturnRows(restroomRow(sqlmock.NewRows(restroomCols), "a", "first", 12.9705))
	second := sqlmock.NewRows(restroomCols)
	restroomRow(second, "a", "first", 12.9705)
	restroomRow(second, "b", "second", 12.971)
	mock.ExpectQuery("FROM restrooms WHERE lat BETWEEN").WillReturnRows(second)
	mock.ExpectQuery("FROM restrooms WHERE lat BETWEEN").WillReturnError(errors.New("db down"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := p.SubscribeNearby(ctx, center, 500)
	require.NoError(t, err)

	u := nextUpdate(t, ch)
	assert.Len(t, u.Candidates, 1)

	n.ch <- struct{}{}
	u = nextUpdate(t, ch)
	assert.Len(t, u.Candidates, 2)

	n.ch <- struct{}{}
	u = nextUpdate(t, ch)
	require.Error(t, u.Err)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestPostgres_AddReviewMissingParent(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	mock.ExpectExec("INSERT INTO restroom_reviews").WillReturnError(&pq.Error{Code: "23503"})
	_, err := p.AddReview(context.Background(), model.Review{ParentID: "gone", Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_ListReviews(t *testing.T) {
	p, mock, _ := setupMockDB(t)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "parent_id", "user_id", "user_name", "rating", "comment", "created_at", "helpful_count"}).
		AddRow("v2", "r1", "u2", "bob", 2.0, "meh", ts.Add(time.Hour), 0).
		AddRow("v1", "r1", "u1", "amy", 5.0, "great", ts, 3)
	mock.ExpectQuery(regexp.QuoteMeta("FROM restroom_reviews WHERE parent_id=$1 ORDER BY created_at DESC")).WithArgs("r1").WillReturnRows(rows)

	got, err := p.ListReviews(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].ID)
	assert.Equal(t, 3, got[1].HelpfulCount)
}
