// 包 store：用户提交记录的持久化接口（快照查询与实时订阅），以及内存、PostgreSQL 实现
package store

import (
	"context"
	"errors"
	"sort"

	"restroom-api/internal/geo"
	"restroom-api/internal/model"
)

// ErrNotFound：记录不存在
var ErrNotFound = errors.New("store: not found")

// NearbyLimit：单次快照/推送的记录上限
const NearbyLimit = 100

// Update：实时订阅的一次推送
// 约束：Err 非空时为最后一次推送，之后通道关闭
type Update struct {
	Candidates []model.Candidate
	Err        error
}

// 文档注释：用户提交记录存储
// 背景：快照查询与实时订阅是两个独立操作，由融合层汇合。
// 约束：
// - FetchNearby 与 SubscribeNearby 只返回半径内记录，按距离升序，DistanceFromUser 已填充；
// - SubscribeNearby 首次推送当前快照，之后每次变更推送完整快照；ctx 结束后关闭通道；
// - 写入时由存储层设置 SubmittedAt/LastUpdated，不持久化 DistanceFromUser 与 IsFilteredOut；
// - Delete 级联删除评价。
type Store interface {
	AddRecord(ctx context.Context, c model.Candidate) (string, error)
	GetByID(ctx context.Context, id string) (model.Candidate, error)
	Update(ctx context.Context, id string, p model.Patch) error
	Delete(ctx context.Context, id string) error
	FetchNearby(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error)
	SubscribeNearby(ctx context.Context, center model.Coordinates, radiusMeters int) (<-chan Update, error)
	AddReview(ctx context.Context, r model.Review) (string, error)
	ListReviews(ctx context.Context, parentID string) ([]model.Review, error)
}

// Nearby：计算距离、按半径截断、排序并截取；坐标无效的记录被丢弃
func Nearby(in []model.Candidate, center model.Coordinates, radiusMeters int, limit int) []model.Candidate {
	out := make([]model.Candidate, 0, len(in))
	for _, c := range in {
		if !c.Location.Valid() {
			continue
		}
		d := geo.DistanceMeters(center, c.Location)
		if d > float64(radiusMeters) {
			continue
		}
		c.IsFilteredOut = false
		out = append(out, c.WithDistance(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceFromUser < out[j].DistanceFromUser })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// stripRuntime：写入前清除仅运行期字段
func stripRuntime(c model.Candidate) model.Candidate {
	c.DistanceFromUser = 0
	c.IsFilteredOut = false
	return c
}

// send：推送一次更新；ctx 结束返回 false
func send(ctx context.Context, ch chan<- Update, u Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
