package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"restroom-api/internal/directions"
	"restroom-api/internal/middleware"
	"restroom-api/internal/model"
)

type directionsResponse struct {
	Origin         model.Coordinates  `json:"origin"`
	Destination    model.Coordinates  `json:"destination"`
	Mode           directions.Mode    `json:"mode"`
	LocationSource string             `json:"locationSource"`
	Routes         []directions.Route `json:"routes"`
}

// 文档注释：路线规划
// 背景：起点优先 originLat/originLng，缺失时与附近检索一致地回退到 lat/lng 或 GeoIP；终点 destLat/destLng 必填。
func (h *Handler) directionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.directions == nil {
			h.fail(w, r, directions.ErrMissingKey)
			return
		}
		q := r.URL.Query()
		dest, ok, err := parseCoords(q, "destLat", "destLng")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !ok {
			writeError(h.log, w, http.StatusBadRequest, "destLat and destLng are required")
			return
		}
		origin, hasOrigin, err := parseCoords(q, "originLat", "originLng")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		source := locationFromQuery
		if !hasOrigin {
			origin, source, err = h.resolveCenter(r)
			if err != nil {
				h.fail(w, r, err)
				return
			}
		}
		mode, err := directions.ParseMode(q.Get("mode"))
		if err != nil {
			h.fail(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		var routes []directions.Route
		if parseBool(q, "alternatives") {
			routes, err = h.directions.Alternatives(ctx, origin, dest, mode)
		} else {
			var route directions.Route
			route, err = h.directions.Route(ctx, origin, dest, mode)
			routes = []directions.Route{route}
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.log, w, http.StatusOK, directionsResponse{
			Origin:         origin,
			Destination:    dest,
			Mode:           mode,
			LocationSource: source,
			Routes:         routes,
		})
	}
}

type locateResponse struct {
	IP         string            `json:"ip"`
	Location   model.Coordinates `json:"location"`
	AccuracyKm int               `json:"accuracyKm"`
	City       string            `json:"city,omitempty"`
	Country    string            `json:"country,omitempty"`
}

func (h *Handler) locateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := strings.TrimSpace(r.URL.Query().Get("ip"))
		if ip == "" {
			ip = middleware.ClientIP(r)
		}
		fix, err := h.geoip.Locate(ip)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.log, w, http.StatusOK, locateResponse{
			IP:         ip,
			Location:   fix.Coordinates,
			AccuracyKm: fix.AccuracyKm,
			City:       fix.City,
			Country:    fix.Country,
		})
	}
}
