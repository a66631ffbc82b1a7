package geo

import (
	"fmt"
	"math"
)

const metersPerMile = 1609.34

// FormatDistance：不足一英里显示整数米，否则显示一位小数的英里
func FormatDistance(meters float64) string {
	if meters < metersPerMile {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f mi", meters/metersPerMile)
}
