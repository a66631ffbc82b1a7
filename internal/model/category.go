package model

// Category：地点分类
type Category string

const (
	CategoryPublicToilet   Category = "public_toilet"
	CategoryRestaurantCafe Category = "restaurant_cafe"
	CategoryGasStation     Category = "gas_station"
	CategoryTransitStation Category = "transit_station"
	CategoryHotel          Category = "hotel"
)

// DisplayName：展示名
func (c Category) DisplayName() string {
	switch c {
	case CategoryRestaurantCafe:
		return "Restaurant / Café"
	case CategoryGasStation:
		return "Gas Station"
	case CategoryTransitStation:
		return "Metro / Train Station"
	case CategoryHotel:
		return "Hotel"
	default:
		return "Public Toilet"
	}
}

type categoryRule struct {
	types    []string
	category Category
}

// 文档注释：类型标签到分类的映射表
// 约束：按表顺序匹配，首条命中即返回；商场/超市等零售场所归入餐饮类（有对外卫生间的同类场所）；公园归入公共厕所。
var categoryRules = []categoryRule{
	{types: []string{"gas_station"}, category: CategoryGasStation},
	{types: []string{"restaurant", "cafe"}, category: CategoryRestaurantCafe},
	{types: []string{"hotel", "lodging"}, category: CategoryHotel},
	{types: []string{"shopping_mall", "department_store", "supermarket", "convenience_store"}, category: CategoryRestaurantCafe},
	{types: []string{"train_station", "transit_station", "bus_station", "subway_station"}, category: CategoryTransitStation},
	{types: []string{"park"}, category: CategoryPublicToilet},
}

// CategoryFromTypes：根据提供方类型标签推导分类，未命中时为公共厕所
func CategoryFromTypes(types []string) Category {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	for _, r := range categoryRules {
		for _, t := range r.types {
			if _, ok := set[t]; ok {
				return r.category
			}
		}
	}
	return CategoryPublicToilet
}

// ParseCategory：解析外部输入的分类，未知值回退到公共厕所
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryRestaurantCafe, CategoryGasStation, CategoryTransitStation, CategoryHotel:
		return Category(s)
	}
	return CategoryPublicToilet
}
