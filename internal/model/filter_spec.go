package model

const (
	DefaultMaxDistanceKm = 8.0
	MinMaxDistanceKm     = 0.5
	MaxMaxDistanceKm     = 10.0
)

// 文档注释：用户筛选条件（不可变值对象）
// 背景：每次编辑生成新实例整体替换旧值；距离上限默认 8km，截断到 [0.5, 10]。
type FilterSpec struct {
	GenderNeutralOnly        bool    `json:"genderNeutralOnly"`
	BabyFriendlyOnly         bool    `json:"babyFriendlyOnly"`
	DogFriendlyOnly          bool    `json:"dogFriendlyOnly"`
	WheelchairAccessibleOnly bool    `json:"wheelchairAccessibleOnly"`
	FreeOnly                 bool    `json:"freeOnly"`
	ApprovedOnly             bool    `json:"approvedOnly"`
	MinRating                float64 `json:"minRating"`
	MaxDistanceKm            float64 `json:"maxDistanceKm"`
}

// DefaultFilterSpec：无筛选，仅默认距离上限
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{MaxDistanceKm: DefaultMaxDistanceKm}
}

// Normalize：返回截断后的副本；MaxDistanceKm 为 0 视为未设置并取默认值
func (f FilterSpec) Normalize() FilterSpec {
	if f.MaxDistanceKm == 0 {
		f.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if f.MaxDistanceKm < MinMaxDistanceKm {
		f.MaxDistanceKm = MinMaxDistanceKm
	}
	if f.MaxDistanceKm > MaxMaxDistanceKm {
		f.MaxDistanceKm = MaxMaxDistanceKm
	}
	f.MinRating = ClampRating(f.MinRating)
	return f
}

// AmenityActive：是否启用了任一设施筛选
func (f FilterSpec) AmenityActive() bool {
	return f.GenderNeutralOnly || f.BabyFriendlyOnly || f.DogFriendlyOnly ||
		f.WheelchairAccessibleOnly || f.FreeOnly || f.ApprovedOnly
}

// RatingActive：评分筛选是否启用
func (f FilterSpec) RatingActive() bool { return f.MinRating > 0 }

// DistanceActive：距离筛选是否启用（20km 及以上视为不限）
func (f FilterSpec) DistanceActive() bool { return f.MaxDistanceKm < 20 }
