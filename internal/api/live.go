package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"restroom-api/internal/aggregator"
)

const liveHeartbeat = 15 * time.Second

type livePhaseEvent struct {
	Phase string `json:"phase"`
}

type liveResultsEvent struct {
	Items []restroomView `json:"items"`
	Total int            `json:"total"`
}

// 文档注释：实时推送（SSE）
// 背景：每个连接持有一个独立会话；会话状态（阶段、结果、错误）变化时逐条写出事件。
// 约束：连接断开、超过 liveMax 或写出失败时停止会话并等待其后台协程退出。
func (h *Handler) liveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center, source, err := h.resolveCenter(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		radius, err := h.parseRadius(r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		spec, err := parseFilter(r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}

		ctx := r.Context()
		if h.liveMax > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.liveMax)
			defer cancel()
		}

		ctl := aggregator.NewController(h.pipeline, h.log,
			aggregator.WithRadius(radius),
			aggregator.WithMoveThreshold(h.moveThreshold),
			aggregator.WithFilter(spec),
		)
		defer ctl.Stop()

		results := ctl.Results.Subscribe()
		defer results.Cancel()
		phases := ctl.Phase.Subscribe()
		defer phases.Cancel()
		errs := ctl.Err.Subscribe()
		defer errs.Cancel()

		if err := ctl.SetLocation(center); err != nil {
			h.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		rc := http.NewResponseController(w)

		h.log.Info("live_session_open", "lat", center.Lat, "lng", center.Lng, "radius", radius, "source", source)
		defer h.log.Info("live_session_close", "lat", center.Lat, "lng", center.Lng)

		if err := writeEvent(w, rc, "session", map[string]any{
			"center": center, "locationSource": source, "radiusMeters": radius, "filter": spec,
		}); err != nil {
			return
		}

		tick := time.NewTicker(liveHeartbeat)
		defer tick.Stop()
		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				_, err = fmt.Fprint(w, ": ping\n\n")
				if err == nil {
					err = rc.Flush()
				}
			case p, ok := <-phases.C:
				if !ok {
					return
				}
				err = writeEvent(w, rc, "phase", livePhaseEvent{Phase: p.String()})
			case items, ok := <-results.C:
				if !ok {
					return
				}
				if items == nil {
					continue
				}
				err = writeEvent(w, rc, "results", liveResultsEvent{Items: toViews(items), Total: len(items)})
			case e, ok := <-errs.C:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				err = writeEvent(w, rc, "error", errorResponse{Error: e.Error()})
			}
			if err != nil {
				h.log.Debug("live_write_error", "err", err)
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b); err != nil {
		return err
	}
	return rc.Flush()
}
