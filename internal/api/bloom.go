package api

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"restroom-api/internal/model"
)

const (
	bloomKey  = "restroom:bloom:submit"
	bloomBits = 1 << 20
	bloomK    = 4
	bloomTTL  = 10 * time.Minute
)

// 文档注释：计算布隆过滤器位置
// 背景：FNV64a 结合索引扰动生成 k 个位置，用于 GetBit/SetBit。
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

// 文档注释：检查并写入布隆过滤器位图
// 返回：true 表示首次见到（已写入位图）；false 表示已存在。
// 约束：rc 为 nil 或 Redis 出错时视为首次见到，不阻断写入。
func bloomCheckAndSet(ctx context.Context, rc *redis.Client, key string, positions []int64, ttl time.Duration) (bool, error) {
	if rc == nil {
		return true, nil
	}
	seen := true
	for _, p := range positions {
		b, err := rc.GetBit(ctx, key, p).Result()
		if err != nil {
			return true, err
		}
		if b == 0 {
			seen = false
		}
	}
	if seen {
		return false, nil
	}
	pipe := rc.TxPipeline()
	for _, p := range positions {
		pipe.SetBit(ctx, key, p, 1)
	}
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// submissionFingerprint：同一来源在约 10 米网格内以同名重复提交视为重复
func submissionFingerprint(clientIP string, c model.Candidate) []byte {
	var b strings.Builder
	b.WriteString(clientIP)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(c.Location.Lat, 'f', 4, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(c.Location.Lng, 'f', 4, 64))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(c.Name)))
	return []byte(b.String())
}
