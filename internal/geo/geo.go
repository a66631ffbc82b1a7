// 包 geo：球面距离、移动判定与范围预筛选
package geo

import (
	"math"

	"restroom-api/internal/model"
)

// EarthRadiusMeters：平均地球半径（IUGG）
const EarthRadiusMeters = 6371008.8

func rad(d float64) float64 { return d * math.Pi / 180 }

// 文档注释：球面距离（Haversine），返回米
// 约束：纯函数；NaN 输入原样传播，调用方需先用 Coordinates.Valid 过滤
func DistanceMeters(a, b model.Coordinates) float64 {
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return EarthRadiusMeters * c
}

// Moved：两点距离是否超过阈值；任一端无效时视为已移动
func Moved(from, to model.Coordinates, thresholdMeters float64) bool {
	if !from.Valid() || !to.Valid() {
		return true
	}
	return DistanceMeters(from, to) > thresholdMeters
}

// Box：经纬度外接矩形
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains：点是否落在矩形内
func (b Box) Contains(c model.Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// 文档注释：给定中心与半径的外接矩形
// 背景：存储层先用矩形做粗筛（可走索引），再以精确距离二次过滤
// 约束：经度跨度按中心纬度余弦放大；高纬度（|lat|>89）直接覆盖全部经度
func BoundingBox(center model.Coordinates, radiusMeters float64) Box {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi
	box := Box{MinLat: center.Lat - dLat, MaxLat: center.Lat + dLat, MinLng: -180, MaxLng: 180}
	cos := math.Cos(rad(center.Lat))
	if math.Abs(center.Lat) < 89 && cos > 0 {
		dLng := dLat / cos
		if dLng < 180 {
			box.MinLng = center.Lng - dLng
			box.MaxLng = center.Lng + dLng
		}
	}
	return box
}
