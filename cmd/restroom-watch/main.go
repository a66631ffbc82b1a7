// 命令行工具：在终端跟随一个实时检索会话，位置来自参数或 GeoIP，每次发布打印一次结果列表
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"restroom-api/internal/aggregator"
	"restroom-api/internal/app"
	"restroom-api/internal/config"
	"restroom-api/internal/geo"
	"restroom-api/internal/location"
	"restroom-api/internal/logger"
	"restroom-api/internal/model"
)

func main() {
	var (
		lat        = flag.Float64("lat", 0, "latitude")
		lng        = flag.Float64("lng", 0, "longitude")
		ip         = flag.String("ip", "", "locate by IP via the GeoIP database when lat/lng are absent")
		radius     = flag.Int("radius", 0, "search radius in meters (default from DEFAULT_RADIUS_M)")
		wheelchair = flag.Bool("wheelchair", false, "wheelchair accessible only")
		free       = flag.Bool("free", false, "free only")
		baby       = flag.Bool("baby", false, "baby friendly only")
		minRating  = flag.Float64("min-rating", 0, "minimum rating (0-5)")
		once       = flag.Bool("once", false, "exit after the first published result")
	)
	flag.Parse()

	cfg := config.Load()
	l := logger.Setup()
	if *radius <= 0 {
		*radius = cfg.DefaultRadiusMeters
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	center := model.Coordinates{Lat: *lat, Lng: *lng}
	if !center.Valid() {
		fix, err := a.GeoIP.Locate(*ip)
		if err != nil {
			l.Error("locate_error", "ip", *ip, "err", err)
			fmt.Fprintln(os.Stderr, "usage: restroom-watch -lat <lat> -lng <lng> | -ip <addr> (requires GEOIP_DB_PATH)")
			os.Exit(2)
		}
		center = fix.Coordinates
		l.Info("located_by_ip", "ip", *ip, "city", fix.City, "accuracy_km", fix.AccuracyKm)
	}

	spec := model.FilterSpec{
		WheelchairAccessibleOnly: *wheelchair,
		FreeOnly:                 *free,
		BabyFriendlyOnly:         *baby,
		MinRating:                *minRating,
	}.Normalize()

	ctl := aggregator.NewController(a.Pipeline, l,
		aggregator.WithRadius(*radius),
		aggregator.WithMoveThreshold(cfg.MoveThresholdMeters),
		aggregator.WithFilter(spec),
	)
	defer ctl.Stop()

	results := ctl.Results.Subscribe()
	defer results.Cancel()
	errs := ctl.Err.Subscribe()
	defer errs.Cancel()

	ctl.Start(ctx, location.Static(ctx, center))

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-errs.C:
			if e != nil {
				l.Warn("session_error", "err", e)
			}
		case items, ok := <-results.C:
			if !ok {
				return
			}
			if items == nil {
				continue
			}
			printResults(center, *radius, items)
			if *once {
				return
			}
		}
	}
}

func printResults(center model.Coordinates, radius int, items []model.Candidate) {
	fmt.Printf("\n%s  %d results within %s of %.5f,%.5f\n",
		time.Now().Format(time.TimeOnly), len(items), geo.FormatDistance(float64(radius)), center.Lat, center.Lng)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIST\tNAME\tCATEGORY\tRATING\tSOURCE\tAMENITIES")
	for _, c := range items {
		name := c.Name
		if c.IsFilteredOut {
			name = "(filtered) " + name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\t%s\n",
			geo.FormatDistance(c.DistanceFromUser), name, c.Category.DisplayName(), c.Rating, c.Source, amenities(c))
	}
	_ = tw.Flush()
}

func amenities(c model.Candidate) string {
	var tags []string
	add := func(ok bool, tag string) {
		if ok {
			tags = append(tags, tag)
		}
	}
	add(c.IsWheelchairAccessible, "wheelchair")
	add(c.IsFree, "free")
	add(c.IsGenderNeutral, "unisex")
	add(c.IsBabyFriendly, "baby")
	add(c.HasChangingTable, "changing")
	add(c.IsDogFriendly, "dog")
	return strings.Join(tags, ",")
}
