// 包 fusion：合并商业地点、社区登记与用户提交三路候选；空间匹配补全、去重、按距离排序
package fusion

import (
	"math"
	"sort"

	"restroom-api/internal/geo"
	"restroom-api/internal/model"
)

// MatchRadiusMeters：登记记录与商业地点判定为同一场所的最大距离
const MatchRadiusMeters = 50.0

// 文档注释：三路候选融合
// 背景：商业地点有名称与评分但无设施信息，社区登记有设施信息但名称与热度弱；
// 两者在 50 米内视为同一场所，登记记录借用商业记录的展示信息。
// 步骤：
// 1. 工作集 = 商业候选 + 用户提交，原样保留；
// 2. 每条登记记录找最近的商业候选（≤50m，等距取输入顺序靠前者），命中则生成补全副本；
// 3. 追加登记记录；
// 4. 按去重键去重，先到先得；被丢弃的登记副本若由存活者补全而来，其设施标记并入存活者；
// 5. 按距离稳定升序。
// 约束：纯函数，不修改入参；对同一输入多次调用结果一致。
func Merge(commercial, registry, user []model.Candidate) []model.Candidate {
	all := make([]model.Candidate, 0, len(commercial)+len(user)+len(registry))
	all = append(all, commercial...)
	all = append(all, user...)
	for _, r := range registry {
		if c, ok := nearestCommercial(r, commercial); ok {
			r = enrich(r, c)
		}
		all = append(all, r)
	}

	out := make([]model.Candidate, 0, len(all))
	index := make(map[string]int, len(all))
	for _, c := range all {
		k := c.DedupKey()
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, c)
			continue
		}
		if c.IsRegistrySourced() && c.CommercialPlaceID != "" {
			out[i] = out[i].WithAmenitiesOr(c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceFromUser < out[j].DistanceFromUser })
	return out
}

// nearestCommercial：两端坐标均有效才参与匹配
func nearestCommercial(r model.Candidate, commercial []model.Candidate) (model.Candidate, bool) {
	if !r.Location.Valid() {
		return model.Candidate{}, false
	}
	best := -1
	bestD := math.Inf(1)
	for i, c := range commercial {
		if !c.Location.Valid() {
			continue
		}
		d := geo.DistanceMeters(r.Location, c.Location)
		if d <= MatchRadiusMeters && d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return model.Candidate{}, false
	}
	return commercial[best], true
}

// enrich：保留登记记录的设施与来源，覆盖展示字段
func enrich(r, c model.Candidate) model.Candidate {
	if c.Name != "" {
		r.Name = c.Name
	}
	r.Category = c.Category
	r.Rating = c.Rating
	r.ReviewCount = c.ReviewCount
	r.DistanceFromUser = c.DistanceFromUser
	r.CommercialPlaceID = c.DedupKey()
	return r
}
