// 包 model：厕所候选记录的规范结构，三个数据源（商业地点、社区登记、用户提交）统一归一化到此结构
package model

import (
	"math"
	"time"
)

// Coordinates：WGS84 经纬度
// 约束：(0,0) 视为无效哨兵值，参与距离计算与去重前必须先经 Valid 过滤
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Valid：非零且非 NaN 的坐标才可参与几何运算
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat != 0 && c.Lng != 0
}

// Source：记录来源（provenance）
type Source string

const (
	SourceCommercial Source = "commercial"
	SourceRegistry   Source = "registry"
	SourceUser       Source = "user"
)

// RegistrySubmitter：社区登记数据源写入 SubmittedBy 的固定哨兵值
const RegistrySubmitter = "Refuge Restrooms"

// MaxRating：评分上限
const MaxRating = 5.0

// 文档注释：规范化候选记录
// 背景：每次管线运行都重新构造，不在原地修改；补全/融合通过 With* 覆盖字段生成新值。
// 约束：DistanceFromUser 与 IsFilteredOut 仅在运行期计算，持久化层不得写入；SubmittedAt/LastUpdated 由持久化层在写入时设置。
type Candidate struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Address  string      `json:"address"`
	Location Coordinates `json:"location"`
	Category Category    `json:"category"`

	IsPublic               bool `json:"isPublic"`
	IsFree                 bool `json:"isFree"`
	IsGenderNeutral        bool `json:"isGenderNeutral"`
	IsBabyFriendly         bool `json:"isBabyFriendly"`
	IsDogFriendly          bool `json:"isDogFriendly"`
	IsWheelchairAccessible bool `json:"isWheelchairAccessible"`
	HasChangingTable       bool `json:"hasChangingTable"`
	HasPaper               bool `json:"hasPaper"`
	HasSoap                bool `json:"hasSoap"`
	HasHandDryer           bool `json:"hasHandDryer"`
	HasRunningWater        bool `json:"hasRunningWater"`
	HasShower              bool `json:"hasShower"`

	CleanlinessRating  float64 `json:"cleanlinessRating"`
	AvailabilityRating float64 `json:"availabilityRating"`
	Rating             float64 `json:"rating"`
	ReviewCount        int     `json:"reviewCount"`

	Source                   Source `json:"source"`
	SubmittedBy              string `json:"submittedBy"`
	IsFromCommercialProvider bool   `json:"isFromCommercialProvider"`
	CommercialPlaceID        string `json:"commercialPlaceId,omitempty"`
	IsApproved               bool   `json:"isApproved"`

	DistanceFromUser float64 `json:"distanceFromUser"`
	IsFilteredOut    bool    `json:"isFilteredOut"`

	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// DedupKey：去重键，优先商业地点 ID，否则使用自身 ID
func (c Candidate) DedupKey() string {
	if c.CommercialPlaceID != "" {
		return c.CommercialPlaceID
	}
	return c.ID
}

// IsRegistrySourced：是否来自社区登记数据源（仅此类记录具备可信的设施数据）
func (c Candidate) IsRegistrySourced() bool { return c.Source == SourceRegistry }

// WithDistance：返回带距离的新值
func (c Candidate) WithDistance(meters float64) Candidate {
	c.DistanceFromUser = meters
	return c
}

// WithFilteredOut：返回标记为被过滤的新值
func (c Candidate) WithFilteredOut() Candidate {
	c.IsFilteredOut = true
	return c
}

// WithAmenitiesOr：与 src 的设施标记按位或合并，其余字段不变
func (c Candidate) WithAmenitiesOr(src Candidate) Candidate {
	c.IsPublic = c.IsPublic || src.IsPublic
	c.IsFree = c.IsFree || src.IsFree
	c.IsGenderNeutral = c.IsGenderNeutral || src.IsGenderNeutral
	c.IsBabyFriendly = c.IsBabyFriendly || src.IsBabyFriendly
	c.IsDogFriendly = c.IsDogFriendly || src.IsDogFriendly
	c.IsWheelchairAccessible = c.IsWheelchairAccessible || src.IsWheelchairAccessible
	c.HasChangingTable = c.HasChangingTable || src.HasChangingTable
	c.HasPaper = c.HasPaper || src.HasPaper
	c.HasSoap = c.HasSoap || src.HasSoap
	c.HasHandDryer = c.HasHandDryer || src.HasHandDryer
	c.HasRunningWater = c.HasRunningWater || src.HasRunningWater
	c.HasShower = c.HasShower || src.HasShower
	return c
}

// 文档注释：用户提交记录的归一化
// 背景：用户提交同时给出清洁度与可用性评分时，综合评分取两者平均；单项缺失时保留原 Rating。
// 约束：所有评分截断到 [0,5]；来源固定为 user。
func (c Candidate) NormalizeUserSubmission() Candidate {
	c.Source = SourceUser
	c.IsFromCommercialProvider = false
	c.CleanlinessRating = ClampRating(c.CleanlinessRating)
	c.AvailabilityRating = ClampRating(c.AvailabilityRating)
	if c.CleanlinessRating > 0 && c.AvailabilityRating > 0 {
		c.Rating = (c.CleanlinessRating + c.AvailabilityRating) / 2
	}
	c.Rating = ClampRating(c.Rating)
	c.IsFilteredOut = false
	c.DistanceFromUser = 0
	return c
}

// ClampRating：截断到 [0,5]，NaN 视为未评分
func ClampRating(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}

// Clone：复制切片，避免跨调用共享底层数组
func Clone(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
