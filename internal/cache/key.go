// 包 cache：按（量化坐标、半径、查询判别符）对数据源结果做限时记忆；支持进程内与 Redis 两级
package cache

import (
	"context"
	"math"
	"strconv"

	"restroom-api/internal/model"
)

// keyScale：坐标量化精度 1e-5 度（约 1.1 米）
const keyScale = 1e5

// Key：缓存键
// 约束：坐标先量化为整数再比较，避免浮点键漂移
type Key struct {
	Lat          int64
	Lng          int64
	RadiusMeters int
	Query        string
}

// NewKey：由原始坐标构造键
func NewKey(c model.Coordinates, radiusMeters int, query string) Key {
	return Key{
		Lat:          int64(math.Round(c.Lat * keyScale)),
		Lng:          int64(math.Round(c.Lng * keyScale)),
		RadiusMeters: radiusMeters,
		Query:        query,
	}
}

// String：用于 Redis 等外部存储的稳定文本形式
func (k Key) String() string {
	b := make([]byte, 0, 48)
	b = strconv.AppendInt(b, k.Lat, 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, k.Lng, 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(k.RadiusMeters), 10)
	b = append(b, ':')
	b = append(b, k.Query...)
	return string(b)
}

// Tier：单级缓存
// 约束：实现需并发安全；Get 失败（含外部存储异常）一律视为未命中，缓存不影响正确性
type Tier interface {
	Name() string
	Get(ctx context.Context, k Key) ([]model.Candidate, bool)
	Put(ctx context.Context, k Key, v []model.Candidate)
}
