package places

import (
	"strings"

	"restroom-api/internal/model"
)

// 文档注释：检索响应结构
// 背景：附近检索与文本检索共用同一响应形状；仅解析归一化所需字段。
type searchResponse struct {
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message"`
	NextPageToken string        `json:"next_page_token"`
	Results       []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Vicinity         string   `json:"vicinity"`
	FormattedAddress string   `json:"formatted_address"`
	Types            []string `json:"types"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// toCandidate：无 place_id 的记录视为畸形并丢弃
// 约束：商业数据源不提供设施信息，设施标记全部为 false
func (p placeResult) toCandidate() (model.Candidate, bool) {
	if p.PlaceID == "" {
		return model.Candidate{}, false
	}
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	addr := p.Vicinity
	if addr == "" {
		addr = p.FormattedAddress
	}
	return model.Candidate{
		ID:                       p.PlaceID,
		Name:                     name,
		Address:                  addr,
		Location:                 model.Coordinates{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng},
		Category:                 model.CategoryFromTypes(p.Types),
		Rating:                   model.ClampRating(p.Rating),
		ReviewCount:              p.UserRatingsTotal,
		Source:                   model.SourceCommercial,
		IsFromCommercialProvider: true,
		CommercialPlaceID:        p.PlaceID,
		IsApproved:               true,
	}, true
}

// NearbyTypes：附近检索的场所类型（可能对外提供卫生间的场所）
var NearbyTypes = []string{
	"restaurant",
	"gas_station",
	"shopping_mall",
	"hospital",
	"hotel",
	"convenience_store",
	"department_store",
	"supermarket",
	"park",
	"library",
	"museum",
	"airport",
	"train_station",
	"bus_station",
	"shopping_center",
}

// TextQueries：文本检索词
var TextQueries = []string{
	"public restrooms near me",
	"public bathroom near me",
	"public toilet near me",
	"restroom near me",
	"bathroom near me",
	"toilet near me",
	"gas stations with restrooms near me",
	"restaurants with restrooms near me",
	"shopping mall restrooms near me",
	"hospital restrooms near me",
	"hotel lobby restrooms near me",
	"convenience store restrooms near me",
	"supermarket restrooms near me",
	"department store restrooms near me",
}

var excludeKeywords = []string{
	"bus stop", "bus station", "transit station", "subway station", "train station",
	"intersection", "traffic light", "crossing", "cemetery", "grave", "memorial",
	"parking meter", "atm", "vending machine",
}

var restroomKeywords = []string{
	"restroom", "bathroom", "toilet", "washroom", "lavatory", "wc",
	"restaurant", "gas", "station", "mall", "hospital", "hotel",
	"store", "market", "supermarket", "convenience", "department",
	"public", "facility", "center", "plaza", "park",
}

// 文档注释：名称/地址是否可能对应有卫生间的场所
// 约束：命中卫生间或场所类关键字即保留（优先于排除词）；否则命中排除词则丢弃
func Plausible(name, address string) bool {
	n, a := strings.ToLower(name), strings.ToLower(address)
	contains := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(n, w) || strings.Contains(a, w) {
				return true
			}
		}
		return false
	}
	if contains(restroomKeywords) {
		return true
	}
	return !contains(excludeKeywords)
}
