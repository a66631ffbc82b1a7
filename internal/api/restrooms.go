package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"restroom-api/internal/geo"
	"restroom-api/internal/middleware"
	"restroom-api/internal/model"
)

const maxBodyBytes = 1 << 16

// restroomView：对外展示结构，附带格式化距离与分类名
type restroomView struct {
	model.Candidate
	DistanceText string `json:"distanceText"`
	CategoryName string `json:"categoryName"`
}

func toViews(in []model.Candidate) []restroomView {
	out := make([]restroomView, 0, len(in))
	for _, c := range in {
		out = append(out, toView(c))
	}
	return out
}

func toView(c model.Candidate) restroomView {
	v := restroomView{Candidate: c, CategoryName: c.Category.DisplayName()}
	if c.DistanceFromUser > 0 {
		v.DistanceText = geo.FormatDistance(c.DistanceFromUser)
	}
	return v
}

type nearbyResponse struct {
	Center         model.Coordinates `json:"center"`
	LocationSource string            `json:"locationSource"`
	RadiusMeters   int               `json:"radiusMeters"`
	Filter         model.FilterSpec  `json:"filter"`
	Passing        int               `json:"passing"`
	FilteredOut    int               `json:"filteredOut"`
	Items          []restroomView    `json:"items"`
}

func (h *Handler) nearbyHandler() http.HandlerFunc {
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
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		res := h.pipeline.Search(ctx, center, radius, spec)
		writeJSON(h.log, w, http.StatusOK, nearbyResponse{
			Center:         center,
			LocationSource: source,
			RadiusMeters:   radius,
			Filter:         spec,
			Passing:        len(res.Passing),
			FilteredOut:    len(res.FilteredOut),
			Items:          toViews(res.Published()),
		})
	}
}

// createRequest：用户提交记录
type createRequest struct {
	Name                   string            `json:"name"`
	Address                string            `json:"address"`
	Location               model.Coordinates `json:"location"`
	Category               string            `json:"category"`
	IsPublic               bool              `json:"isPublic"`
	IsFree                 bool              `json:"isFree"`
	IsGenderNeutral        bool              `json:"isGenderNeutral"`
	IsBabyFriendly         bool              `json:"isBabyFriendly"`
	IsDogFriendly          bool              `json:"isDogFriendly"`
	IsWheelchairAccessible bool              `json:"isWheelchairAccessible"`
	HasChangingTable       bool              `json:"hasChangingTable"`
	HasPaper               bool              `json:"hasPaper"`
	HasSoap                bool              `json:"hasSoap"`
	HasHandDryer           bool              `json:"hasHandDryer"`
	HasRunningWater        bool              `json:"hasRunningWater"`
	HasShower              bool              `json:"hasShower"`
	CleanlinessRating      float64           `json:"cleanlinessRating"`
	AvailabilityRating     float64           `json:"availabilityRating"`
	Rating                 float64           `json:"rating"`
	SubmittedBy            string            `json:"submittedBy"`
}

func (req createRequest) candidate() model.Candidate {
	return model.Candidate{
		Name:                   req.Name,
		Address:                strings.TrimSpace(req.Address),
		Location:               req.Location,
		Category:               model.Category(req.Category),
		IsPublic:               req.IsPublic,
		IsFree:                 req.IsFree,
		IsGenderNeutral:        req.IsGenderNeutral,
		IsBabyFriendly:         req.IsBabyFriendly,
		IsDogFriendly:          req.IsDogFriendly,
		IsWheelchairAccessible: req.IsWheelchairAccessible,
		HasChangingTable:       req.HasChangingTable,
		HasPaper:               req.HasPaper,
		HasSoap:                req.HasSoap,
		HasHandDryer:           req.HasHandDryer,
		HasRunningWater:        req.HasRunningWater,
		HasShower:              req.HasShower,
		CleanlinessRating:      req.CleanlinessRating,
		AvailabilityRating:     req.AvailabilityRating,
		Rating:                 req.Rating,
		SubmittedBy:            strings.TrimSpace(req.SubmittedBy),
		IsApproved:             true,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) createHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := decodeBody(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		c := req.candidate()
		ctx := r.Context()

		fresh, err := bloomCheckAndSet(ctx, h.rc, bloomKey,
			bloomPositions(submissionFingerprint(middleware.ClientIP(r), c), bloomBits, bloomK), bloomTTL)
		if err != nil {
			h.log.Warn("submit_bloom_error", "err", err)
		}
		if !fresh {
			writeError(h.log, w, http.StatusConflict, "duplicate submission")
			return
		}

		id, err := h.records.Submit(ctx, c)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		saved, err := h.records.Get(ctx, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Location", "restrooms/"+id)
		writeJSON(h.log, w, http.StatusCreated, toView(saved))
	}
}

func (h *Handler) getHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		c, err := h.records.Get(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.log, w, http.StatusOK, toView(c))
	}
}

func (h *Handler) patchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		var p model.Patch
		if err := decodeBody(w, r, &p); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.records.Update(r.Context(), id, p); err != nil {
			h.fail(w, r, err)
			return
		}
		c, err := h.records.Get(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.log, w, http.StatusOK, toView(c))
	}
}

func (h *Handler) deleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if err := h.records.Delete(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type reviewRequest struct {
	UserID   string  `json:"userId"`
	UserName string  `json:"userName"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
}

type reviewListResponse struct {
	Items []model.Review `json:"items"`
	Total int            `json:"total"`
}

func (h *Handler) addReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		var req reviewRequest
		if err := decodeBody(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		reviewID, err := h.records.AddReview(r.Context(), model.Review{
			ParentID: id,
			UserID:   strings.TrimSpace(req.UserID),
			UserName: strings.TrimSpace(req.UserName),
			Rating:   req.Rating,
			Comment:  strings.TrimSpace(req.Comment),
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.log, w, http.StatusCreated, map[string]string{"id": reviewID})
	}
}

func (h *Handler) listReviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if _, err := h.records.Get(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
		items, err := h.records.ListReviews(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if items == nil {
			items = []model.Review{}
		}
		writeJSON(h.log, w, http.StatusOK, reviewListResponse{Items: items, Total: len(items)})
	}
}
