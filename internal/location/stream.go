package location

import (
	"context"
	"time"

	"restroom-api/internal/model"
)

// Static：只发送一次坐标的位置流，ctx 结束后关闭
func Static(ctx context.Context, c model.Coordinates) <-chan model.Coordinates {
	ch := make(chan model.Coordinates, 1)
	ch <- c
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// Replay：按固定间隔依次发送坐标（轨迹回放），发送完毕或 ctx 结束后关闭
func Replay(ctx context.Context, points []model.Coordinates, interval time.Duration) <-chan model.Coordinates {
	ch := make(chan model.Coordinates)
	go func() {
		defer close(ch)
		t := time.NewTicker(interval)
		defer t.Stop()
		for i, p := range points {
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
			select {
			case ch <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
