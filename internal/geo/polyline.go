package geo

import (
	"errors"
	"fmt"

	"restroom-api/internal/model"
)

// ErrPolylineTruncated：编码串在坐标中途结束
var ErrPolylineTruncated = errors.New("polyline truncated")

// 文档注释：解码折线（1e5 精度、逐点带符号增量、每 5 位一组）
// 约束：空串返回空切片；末尾不完整时返回已解码部分与 ErrPolylineTruncated
func DecodePolyline(encoded string) ([]model.Coordinates, error) {
	var (
		out      []model.Coordinates
		idx      int
		lat, lng int
	)
	next := func() (int, bool) {
		result, shift := 0, 0
		for {
			if idx >= len(encoded) {
				return 0, false
			}
			b := int(encoded[idx]) - 63
			idx++
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), true
		}
		return result >> 1, true
	}
	for idx < len(encoded) {
		dLat, ok := next()
		if !ok {
			return out, fmt.Errorf("decode lat at %d: %w", idx, ErrPolylineTruncated)
		}
		dLng, ok := next()
		if !ok {
			return out, fmt.Errorf("decode lng at %d: %w", idx, ErrPolylineTruncated)
		}
		lat += dLat
		lng += dLng
		out = append(out, model.Coordinates{Lat: float64(lat) / 1e5, Lng: float64(lng) / 1e5})
	}
	return out, nil
}
