package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"restroom-api/internal/middleware"
	"restroom-api/internal/model"
)

// MaxRadiusMeters：单次检索允许的最大半径
const MaxRadiusMeters = 50000

var (
	errBadRequest = errors.New("bad request")
	errNoLocation = errors.New("location required: pass lat and lng")
)

const (
	locationFromQuery = "query"
	locationFromGeoIP = "geoip"
)

func parseFloat(q url.Values, key string) (float64, bool, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: invalid %s", errBadRequest, key)
	}
	return f, true, nil
}

func parseBool(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return b
}

// parseCoords：按 prefix 读取 <prefix>lat / <prefix>lng；两者都缺失时 ok=false
func parseCoords(q url.Values, latKey, lngKey string) (model.Coordinates, bool, error) {
	lat, hasLat, err := parseFloat(q, latKey)
	if err != nil {
		return model.Coordinates{}, true, err
	}
	lng, hasLng, err := parseFloat(q, lngKey)
	if err != nil {
		return model.Coordinates{}, true, err
	}
	if !hasLat && !hasLng {
		return model.Coordinates{}, false, nil
	}
	c := model.Coordinates{Lat: lat, Lng: lng}
	if !hasLat || !hasLng || !c.Valid() || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.Coordinates{}, true, fmt.Errorf("%w: invalid %s/%s", errBadRequest, latKey, lngKey)
	}
	return c, true, nil
}

// 文档注释：解析检索中心
// 背景：优先显式坐标；缺失时按 ip 参数或客户端 IP 走 GeoIP 粗定位。
// 返回：中心点与来源（query / geoip）。
func (h *Handler) resolveCenter(r *http.Request) (model.Coordinates, string, error) {
	q := r.URL.Query()
	c, ok, err := parseCoords(q, "lat", "lng")
	if err != nil {
		return model.Coordinates{}, "", err
	}
	if ok {
		return c, locationFromQuery, nil
	}
	ip := strings.TrimSpace(q.Get("ip"))
	if ip == "" {
		ip = middleware.ClientIP(r)
	}
	fix, err := h.geoip.Locate(ip)
	if err != nil {
		h.log.Debug("geoip_fallback_miss", "ip", ip, "err", err)
		return model.Coordinates{}, "", errNoLocation
	}
	return fix.Coordinates, locationFromGeoIP, nil
}

func (h *Handler) parseRadius(q url.Values) (int, error) {
	s := strings.TrimSpace(q.Get("radius"))
	if s == "" {
		return h.defaultRadius, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > MaxRadiusMeters {
		return 0, fmt.Errorf("%w: radius must be in (0, %d]", errBadRequest, MaxRadiusMeters)
	}
	return n, nil
}

// parseFilter：查询参数名与 FilterSpec 的 JSON 字段一致
func parseFilter(q url.Values) (model.FilterSpec, error) {
	spec := model.FilterSpec{
		GenderNeutralOnly:        parseBool(q, "genderNeutralOnly"),
		BabyFriendlyOnly:         parseBool(q, "babyFriendlyOnly"),
		DogFriendlyOnly:          parseBool(q, "dogFriendlyOnly"),
		WheelchairAccessibleOnly: parseBool(q, "wheelchairAccessibleOnly"),
		FreeOnly:                 parseBool(q, "freeOnly"),
		ApprovedOnly:             parseBool(q, "approvedOnly"),
	}
	var err error
	if spec.MinRating, _, err = parseFloat(q, "minRating"); err != nil {
		return model.FilterSpec{}, err
	}
	if spec.MaxDistanceKm, _, err = parseFloat(q, "maxDistanceKm"); err != nil {
		return model.FilterSpec{}, err
	}
	return spec.Normalize(), nil
}
