package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"restroom-api/internal/geo"
	"restroom-api/internal/logger"
	"restroom-api/internal/migrate"
	"restroom-api/internal/model"
	"restroom-api/internal/utils"
)

// ErrSubscriptionClosed：变更通知通道意外关闭
var ErrSubscriptionClosed = errors.New("store: subscription closed")

const restroomColumns = `id, name, address, lat, lng, category, is_public, is_free, is_gender_neutral, is_baby_friendly, is_dog_friendly, is_wheelchair_accessible, has_changing_table, has_paper, has_soap, has_hand_dryer, has_running_water, has_shower, cleanliness_rating, availability_rating, rating, review_count, source, submitted_by, is_from_commercial, commercial_place_id, is_approved, submitted_at, last_updated`

const reviewColumns = `id, parent_id, user_id, user_name, rating, comment, created_at, helpful_count`

// Notifier：变更通知来源；每次收到通知（含重连）向通道发送一次信号，ctx 结束后关闭
type Notifier interface {
	Listen(ctx context.Context) (<-chan struct{}, error)
}

// 文档注释：PostgreSQL 存储
// 背景：快照查询先用经纬度外接矩形走索引粗筛，再以精确距离过滤；实时订阅依赖触发器 + LISTEN/NOTIFY，收到通知后重新查询快照。
// 约束：评价表外键级联删除；评分范围由表约束兜底。
type Postgres struct {
	db       *sql.DB
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewPostgres(db *sql.DB, n Notifier, l *slog.Logger) *Postgres {
	return &Postgres{db: db, notifier: n, log: logger.Or(l), now: time.Now}
}

// OpenPostgres：使用 DSN 打开连接池并挂载基于 pq.Listener 的变更通知
func OpenPostgres(dsn string, l *slog.Logger) (*Postgres, error) {
	db, err := utils.OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgres(db, &PQNotifier{DSN: dsn, Log: l}, l), nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) DB() *sql.DB { return p.db }

func placeholders(from, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$" + strconv.Itoa(from+i))
	}
	return b.String()
}

func restroomArgs(c model.Candidate) []any {
	return []any{
		c.ID, c.Name, c.Address, c.Location.Lat, c.Location.Lng, string(c.Category),
		c.IsPublic, c.IsFree, c.IsGenderNeutral, c.IsBabyFriendly, c.IsDogFriendly, c.IsWheelchairAccessible,
		c.HasChangingTable, c.HasPaper, c.HasSoap, c.HasHandDryer, c.HasRunningWater, c.HasShower,
		c.CleanlinessRating, c.AvailabilityRating, c.Rating, c.ReviewCount,
		string(c.Source), c.SubmittedBy, c.IsFromCommercialProvider, c.CommercialPlaceID, c.IsApproved,
		*c.SubmittedAt, *c.LastUpdated,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRestroom(s scanner) (model.Candidate, error) {
	var (
		c        model.Candidate
		cat, src string
		sub, upd time.Time
	)
	err := s.Scan(
		&c.ID, &c.Name, &c.Address, &c.Location.Lat, &c.Location.Lng, &cat,
		&c.IsPublic, &c.IsFree, &c.IsGenderNeutral, &c.IsBabyFriendly, &c.IsDogFriendly, &c.IsWheelchairAccessible,
		&c.HasChangingTable, &c.HasPaper, &c.HasSoap, &c.HasHandDryer, &c.HasRunningWater, &c.HasShower,
		&c.CleanlinessRating, &c.AvailabilityRating, &c.Rating, &c.ReviewCount,
		&src, &c.SubmittedBy, &c.IsFromCommercialProvider, &c.CommercialPlaceID, &c.IsApproved,
		&sub, &upd,
	)
	if err != nil {
		return model.Candidate{}, err
	}
	c.Category = model.ParseCategory(cat)
	c.Source = model.Source(src)
	c.SubmittedAt, c.LastUpdated = &sub, &upd
	return c, nil
}

func (p *Postgres) AddRecord(ctx context.Context, c model.Candidate) (string, error) {
	c = stripRuntime(c)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := p.now().UTC()
	c.SubmittedAt, c.LastUpdated = &now, &now
	q := "INSERT INTO restrooms (" + restroomColumns + ") VALUES (" + placeholders(1, 29) + ")"
	if _, err := p.db.ExecContext(ctx, q, restroomArgs(c)...); err != nil {
		return "", fmt.Errorf("insert restroom: %w", err)
	}
	p.log.Debug("pg_restroom_insert", "id", c.ID)
	return c.ID, nil
}

func (p *Postgres) GetByID(ctx context.Context, id string) (model.Candidate, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+restroomColumns+" FROM restrooms WHERE id=$1", id)
	c, err := scanRestroom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Candidate{}, ErrNotFound
	}
	if err != nil {
		return model.Candidate{}, fmt.Errorf("get restroom %s: %w", id, err)
	}
	return c, nil
}

func (p *Postgres) Update(ctx context.Context, id string, patch model.Patch) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+"=$"+strconv.Itoa(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.IsApproved != nil {
		add("is_approved", *patch.IsApproved)
	}
	if patch.IsFree != nil {
		add("is_free", *patch.IsFree)
	}
	if patch.IsWheelchairAccessible != nil {
		add("is_wheelchair_accessible", *patch.IsWheelchairAccessible)
	}
	if patch.Rating != nil {
		add("rating", model.ClampRating(*patch.Rating))
	}
	if patch.ReviewCount != nil {
		add("review_count", *patch.ReviewCount)
	}
	add("last_updated", p.now().UTC())
	args = append(args, id)
	q := "UPDATE restrooms SET " + strings.Join(sets, ", ") + " WHERE id=$" + strconv.Itoa(len(args))
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update restroom %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete restroom %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM restroom_reviews WHERE parent_id=$1", id); err != nil {
		return fmt.Errorf("delete reviews of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM restrooms WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("delete restroom %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete restroom %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) FetchNearby(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	box := geo.BoundingBox(center, float64(radiusMeters))
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+restroomColumns+" FROM restrooms WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4",
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("fetch nearby: %w", err)
	}
	defer rows.Close()
	var all []model.Candidate
	for rows.Next() {
		c, err := scanRestroom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restroom: %w", err)
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch nearby: %w", err)
	}
	return Nearby(all, center, radiusMeters, NearbyLimit), nil
}

// SubscribeNearby：先推送当前快照，之后每次变更通知重新查询并推送
// 约束：查询失败或通知通道意外关闭时推送错误并结束
func (p *Postgres) SubscribeNearby(ctx context.Context, center model.Coordinates, radiusMeters int) (<-chan Update, error) {
	if p.notifier == nil {
		return nil, errors.New("store: postgres notifier not configured")
	}
	notes, err := p.notifier.Listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", migrate.NotifyChannel, err)
	}
	ch := make(chan Update)
	go func() {
		defer close(ch)
		emit := func() bool {
			snap, err := p.FetchNearby(ctx, center, radiusMeters)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Error("pg_subscribe_fetch_error", "err", err)
					send(ctx, ch, Update{Err: err})
				}
				return false
			}
			return send(ctx, ch, Update{Candidates: snap})
		}
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notes:
				if !ok {
					if ctx.Err() == nil {
						send(ctx, ch, Update{Err: ErrSubscriptionClosed})
					}
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return ch, nil
}

func (p *Postgres) AddReview(ctx context.Context, r model.Review) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = p.now().UTC()
	}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO restroom_reviews ("+reviewColumns+") VALUES ("+placeholders(1, 8)+")",
		r.ID, r.ParentID, r.UserID, r.UserName, r.Rating, r.Comment, r.CreatedAt, r.HelpfulCount)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("insert review: %w", err)
	}
	return r.ID, nil
}

func (p *Postgres) ListReviews(ctx context.Context, parentID string) ([]model.Review, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM restroom_reviews WHERE parent_id=$1 ORDER BY created_at DESC", parentID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.ParentID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt, &r.HelpfulCount); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PQNotifier：基于 pq.Listener 的变更通知
// 约束：每次订阅独占一条监听连接；断线重连后发送一次信号以补偿期间丢失的通知
type PQNotifier struct {
	DSN string
	Log *slog.Logger
}

func (n *PQNotifier) Listen(ctx context.Context) (<-chan struct{}, error) {
	log := logger.Or(n.Log)
	l := pq.NewListener(n.DSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("pg_listener_event", "event", int(ev), "err", err)
		}
	})
	if err := l.Listen(migrate.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer l.Close()
		idle := time.NewTicker(90 * time.Second)
		defer idle.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-l.Notify:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case <-idle.C:
				go func() { _ = l.Ping() }()
			}
		}
	}()
	return out, nil
}
