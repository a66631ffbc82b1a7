// 包 filter：按 FilterSpec 将融合结果划分为通过与被过滤两部分，并给出每条记录的失败原因
package filter

import (
	"restroom-api/internal/model"
)

// Reason：未通过的谓词
type Reason string

const (
	ReasonGenderNeutral        Reason = "gender_neutral"
	ReasonBabyFriendly         Reason = "baby_friendly"
	ReasonDogFriendly          Reason = "dog_friendly"
	ReasonWheelchairAccessible Reason = "wheelchair_accessible"
	ReasonFree                 Reason = "free"
	ReasonApproved             Reason = "approved"
	ReasonRating               Reason = "rating"
	ReasonDistance             Reason = "distance"
)

type amenityRule struct {
	reason  Reason
	enabled func(model.FilterSpec) bool
	has     func(model.Candidate) bool
}

var amenityRules = []amenityRule{
	{ReasonGenderNeutral, func(f model.FilterSpec) bool { return f.GenderNeutralOnly }, func(c model.Candidate) bool { return c.IsGenderNeutral }},
	{ReasonBabyFriendly, func(f model.FilterSpec) bool { return f.BabyFriendlyOnly }, func(c model.Candidate) bool { return c.IsBabyFriendly }},
	{ReasonDogFriendly, func(f model.FilterSpec) bool { return f.DogFriendlyOnly }, func(c model.Candidate) bool { return c.IsDogFriendly }},
	{ReasonWheelchairAccessible, func(f model.FilterSpec) bool { return f.WheelchairAccessibleOnly }, func(c model.Candidate) bool { return c.IsWheelchairAccessible }},
	{ReasonFree, func(f model.FilterSpec) bool { return f.FreeOnly }, func(c model.Candidate) bool { return c.IsFree }},
	{ReasonApproved, func(f model.FilterSpec) bool { return f.ApprovedOnly }, func(c model.Candidate) bool { return c.IsApproved }},
}

// 文档注释：逐条评估全部已启用谓词，返回所有未通过的原因（空表示通过）
// 约束：
// - 设施类谓词只约束社区登记来源的记录，商业与用户提交记录豁免；
// - 评分谓词（MinRating>0）作用于全部记录，未评分（0）视为通过；
// - 距离谓词（MaxDistanceKm<20）作用于全部记录，单位换算为米后比较。
func Evaluate(c model.Candidate, spec model.FilterSpec) []Reason {
	var out []Reason
	if c.IsRegistrySourced() {
		for _, r := range amenityRules {
			if r.enabled(spec) && !r.has(c) {
				out = append(out, r.reason)
			}
		}
	}
	if spec.RatingActive() && c.Rating > 0 && c.Rating < spec.MinRating {
		out = append(out, ReasonRating)
	}
	if spec.DistanceActive() && c.DistanceFromUser > spec.MaxDistanceKm*1000 {
		out = append(out, ReasonDistance)
	}
	return out
}

// Result：划分结果
type Result struct {
	Passing     []model.Candidate
	FilteredOut []model.Candidate
	// ShowFilteredOut：启用了设施或评分筛选时，被过滤记录仍需带标记展示
	ShowFilteredOut bool
}

// Published：对外发布的列表
func (r Result) Published() []model.Candidate {
	if !r.ShowFilteredOut {
		return model.Clone(r.Passing)
	}
	out := make([]model.Candidate, 0, len(r.Passing)+len(r.FilteredOut))
	out = append(out, r.Passing...)
	return append(out, r.FilteredOut...)
}

// Apply：保持输入顺序划分；被过滤记录为带 IsFilteredOut 标记的新值
func Apply(candidates []model.Candidate, spec model.FilterSpec) Result {
	spec = spec.Normalize()
	res := Result{
		Passing:         make([]model.Candidate, 0, len(candidates)),
		ShowFilteredOut: spec.AmenityActive() || spec.RatingActive(),
	}
	for _, c := range candidates {
		c.IsFilteredOut = false
		if len(Evaluate(c, spec)) == 0 {
			res.Passing = append(res.Passing, c)
			continue
		}
		res.FilteredOut = append(res.FilteredOut, c.WithFilteredOut())
	}
	return res
}
