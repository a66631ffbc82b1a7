// 包 location：位置来源（GeoIP 粗定位与坐标流）
package location

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"restroom-api/internal/logger"
	"restroom-api/internal/model"
)

var (
	ErrInvalidIP  = errors.New("location: invalid ip")
	ErrNoLocation = errors.New("location: no coordinates for ip")
	ErrDisabled   = errors.New("location: geoip database not configured")
)

// Fix：一次 GeoIP 定位结果
type Fix struct {
	Coordinates model.Coordinates `json:"location"`
	AccuracyKm  int               `json:"accuracyKm"`
	City        string            `json:"city,omitempty"`
	Country     string            `json:"country,omitempty"`
}

// cityReader：geoip2.Reader 的最小子集
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// 文档注释：GeoIP 粗定位
// 背景：HTTP 调用方未携带坐标时，按客户端 IP 在 GeoLite2 City 库中取城市级坐标作为初始位置。
// 约束：私网/回环地址与库中无坐标的记录返回 ErrNoLocation；零值 GeoIP（未配置库）返回 ErrDisabled。
type GeoIP struct {
	r   cityReader
	log *slog.Logger
}

// OpenGeoIP：打开 mmdb 文件
func OpenGeoIP(path string, l *slog.Logger) (*GeoIP, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	logger.Or(l).Info("geoip_loaded", "path", path)
	return &GeoIP{r: r, log: logger.Or(l)}, nil
}

// GeoIPFromBytes：从内存中的 mmdb 数据构造
func GeoIPFromBytes(b []byte, l *slog.Logger) (*GeoIP, error) {
	r, err := geoip2.FromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("load geoip db: %w", err)
	}
	return &GeoIP{r: r, log: logger.Or(l)}, nil
}

func (g *GeoIP) Close() error {
	if g == nil || g.r == nil {
		return nil
	}
	return g.r.Close()
}

// Locate：按 IP 定位
func (g *GeoIP) Locate(ip string) (Fix, error) {
	if g == nil || g.r == nil {
		return Fix{}, ErrDisabled
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Fix{}, ErrInvalidIP
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return Fix{}, ErrNoLocation
	}
	rec, err := g.r.City(parsed)
	if err != nil {
		return Fix{}, fmt.Errorf("geoip lookup: %w", err)
	}
	c := model.Coordinates{Lat: rec.Location.Latitude, Lng: rec.Location.Longitude}
	if !c.Valid() {
		g.log.Debug("geoip_miss", "ip", ip)
		return Fix{}, ErrNoLocation
	}
	fix := Fix{
		Coordinates: c,
		AccuracyKm:  int(rec.Location.AccuracyRadius),
		City:        rec.City.Names["en"],
		Country:     rec.Country.IsoCode,
	}
	g.log.Debug("geoip_hit", "ip", ip, "lat", c.Lat, "lng", c.Lng, "accuracy_km", fix.AccuracyKm)
	return fix, nil
}
