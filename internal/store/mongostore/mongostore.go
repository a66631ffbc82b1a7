// 包 mongostore：基于 MongoDB 的用户提交记录存储，变更通过 change stream 推送
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"restroom-api/internal/geo"
	"restroom-api/internal/logger"
	"restroom-api/internal/model"
	"restroom-api/internal/store"
)

const (
	RestroomCollection = "restrooms"
	ReviewCollection   = "restroom_reviews"
)

// Mongo：store.Store 的 MongoDB 实现
type Mongo struct {
	restrooms *mongo.Collection
	reviews   *mongo.Collection
	log       *slog.Logger
	now       func() time.Time
}

var _ store.Store = (*Mongo)(nil)

func New(db *mongo.Database, l *slog.Logger) *Mongo {
	return &Mongo{
		restrooms: db.Collection(RestroomCollection),
		reviews:   db.Collection(ReviewCollection),
		log:       logger.Or(l),
		now:       time.Now,
	}
}

// Connect：按 URI 建立连接并 Ping，返回客户端与数据库句柄
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes：坐标复合索引与评价的 parentId 索引
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.restrooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location.lat", Value: 1}, {Key: "location.lng", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("restroom index: %w", err)
	}
	_, err = m.reviews.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("review index: %w", err)
	}
	return nil
}

func (m *Mongo) AddRecord(ctx context.Context, c model.Candidate) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := m.now().UTC()
	c.SubmittedAt, c.LastUpdated = &now, &now
	if _, err := m.restrooms.InsertOne(ctx, toRestroomDocument(c)); err != nil {
		return "", fmt.Errorf("insert restroom: %w", err)
	}
	return c.ID, nil
}

func (m *Mongo) GetByID(ctx context.Context, id string) (model.Candidate, error) {
	var doc restroomDocument
	if err := m.restrooms.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Candidate{}, store.ErrNotFound
		}
		return model.Candidate{}, fmt.Errorf("find restroom: %w", err)
	}
	return mapRestroomDocument(doc), nil
}

// patchSet：把补丁转成 $set 文档，lastUpdated 总是写入
func patchSet(p model.Patch, now time.Time) bson.M {
	set := bson.M{"lastUpdated": now}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.IsApproved != nil {
		set["isApproved"] = *p.IsApproved
	}
	if p.IsFree != nil {
		set["amenities.free"] = *p.IsFree
	}
	if p.IsWheelchairAccessible != nil {
		set["amenities.wheelchairAccessible"] = *p.IsWheelchairAccessible
	}
	if p.Rating != nil {
		set["rating"] = model.ClampRating(*p.Rating)
	}
	if p.ReviewCount != nil {
		set["reviewCount"] = *p.ReviewCount
	}
	return set
}

func (m *Mongo) Update(ctx context.Context, id string, p model.Patch) error {
	res, err := m.restrooms.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patchSet(p, m.now().UTC())})
	if err != nil {
		return fmt.Errorf("update restroom: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete：先删记录再删其评价；评价删除失败只记录日志
func (m *Mongo) Delete(ctx context.Context, id string) error {
	res, err := m.restrooms.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete restroom: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	if _, err := m.reviews.DeleteMany(ctx, bson.M{"parentId": id}); err != nil {
		m.log.Warn("review_cascade_error", "id", id, "err", err)
	}
	return nil
}

// boxFilter：外接矩形粗筛，精确距离由 store.Nearby 处理
func boxFilter(center model.Coordinates, radiusMeters int) bson.M {
	b := geo.BoundingBox(center, float64(radiusMeters))
	return bson.M{
		"location.lat": bson.M{"$gte": b.MinLat, "$lte": b.MaxLat},
		"location.lng": bson.M{"$gte": b.MinLng, "$lte": b.MaxLng},
	}
}

func (m *Mongo) FetchNearby(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	cursor, err := m.restrooms.Find(ctx, boxFilter(center, radiusMeters), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find nearby: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.Candidate
	for cursor.Next(ctx) {
		var doc restroomDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode restroom: %w", err)
		}
		out = append(out, mapRestroomDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate restrooms: %w", err)
	}
	return store.Nearby(out, center, radiusMeters, store.NearbyLimit), nil
}

// 文档注释：实时订阅
// 背景：change stream 需要副本集；打开失败时直接返回错误，由调用方降级为快照模式。
// 约束：任一变更事件触发整份快照重取；流出错时推送 Err 并关闭通道。
func (m *Mongo) SubscribeNearby(ctx context.Context, center model.Coordinates, radiusMeters int) (<-chan store.Update, error) {
	stream, err := m.restrooms.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch restrooms: %w", err)
	}
	ch := make(chan store.Update)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		emit := func() bool {
			snap, err := m.FetchNearby(ctx, center, radiusMeters)
			if err != nil {
				if ctx.Err() == nil {
					m.log.Warn("mongo_subscription_error", "err", err)
					sendUpdate(ctx, ch, store.Update{Err: err})
				}
				return false
			}
			return sendUpdate(ctx, ch, store.Update{Candidates: snap})
		}
		if !emit() {
			return
		}
		for stream.Next(ctx) {
			if !emit() {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			m.log.Warn("mongo_change_stream_error", "err", err)
			sendUpdate(ctx, ch, store.Update{Err: fmt.Errorf("change stream: %w", err)})
		}
	}()
	return ch, nil
}

func sendUpdate(ctx context.Context, ch chan<- store.Update, u store.Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// AddReview：父记录不存在时返回 store.ErrNotFound
func (m *Mongo) AddReview(ctx context.Context, r model.Review) (string, error) {
	n, err := m.restrooms.CountDocuments(ctx, bson.M{"_id": r.ParentID}, options.Count().SetLimit(1))
	if err != nil {
		return "", fmt.Errorf("check parent: %w", err)
	}
	if n == 0 {
		return "", store.ErrNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}
	if _, err := m.reviews.InsertOne(ctx, toReviewDocument(r)); err != nil {
		return "", fmt.Errorf("insert review: %w", err)
	}
	return r.ID, nil
}

func (m *Mongo) ListReviews(ctx context.Context, parentID string) ([]model.Review, error) {
	cursor, err := m.reviews.Find(ctx, bson.M{"parentId": parentID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reviewDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	out := make([]model.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, mapReviewDocument(d))
	}
	return out, nil
}
