// 包 records：用户提交记录与评价的写入服务（校验、归一化、聚合评分维护）
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"restroom-api/internal/logger"
	"restroom-api/internal/model"
	"restroom-api/internal/store"
)

var (
	ErrInvalidLocation = errors.New("records: invalid location")
	ErrInvalidRating   = errors.New("records: rating out of range")
	ErrMissingParent   = errors.New("records: review parent id required")
)

// Service：记录写入服务
type Service struct {
	store store.Store
	log   *slog.Logger
}

func NewService(s store.Store, l *slog.Logger) *Service {
	return &Service{store: s, log: logger.Or(l)}
}

func validRating(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= model.MaxRating
}

// 文档注释：提交一条用户记录
// 约束：坐标必须有效；三个评分均需在 [0,5]；来源强制为 user，缺省名称回退为分类展示名。
func (s *Service) Submit(ctx context.Context, c model.Candidate) (string, error) {
	if !c.Location.Valid() || math.Abs(c.Location.Lat) > 90 || math.Abs(c.Location.Lng) > 180 {
		return "", ErrInvalidLocation
	}
	for _, v := range []float64{c.Rating, c.CleanlinessRating, c.AvailabilityRating} {
		if !validRating(v) {
			return "", ErrInvalidRating
		}
	}
	c.Category = model.ParseCategory(string(c.Category))
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = c.Category.DisplayName()
	}
	c = c.NormalizeUserSubmission()
	id, err := s.store.AddRecord(ctx, c)
	if err != nil {
		return "", fmt.Errorf("submit record: %w", err)
	}
	s.log.Info("record_submitted", "id", id, "lat", c.Location.Lat, "lng", c.Location.Lng)
	return id, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Candidate, error) {
	return s.store.GetByID(ctx, id)
}

// Update：评分字段经校验后写入
func (s *Service) Update(ctx context.Context, id string, p model.Patch) error {
	if p.Rating != nil && !validRating(*p.Rating) {
		return ErrInvalidRating
	}
	if p.ReviewCount != nil && *p.ReviewCount < 0 {
		return ErrInvalidRating
	}
	return s.store.Update(ctx, id, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("record_deleted", "id", id)
	return nil
}

func (s *Service) ListReviews(ctx context.Context, parentID string) ([]model.Review, error) {
	return s.store.ListReviews(ctx, parentID)
}

// 文档注释：写入评价并重算父记录的聚合评分
// 背景：聚合评分 = 全部评价评分的平均值，ReviewCount = 评价条数。
// 约束：评价写入成功而聚合更新失败时返回错误，评价本身不回滚。
func (s *Service) AddReview(ctx context.Context, r model.Review) (string, error) {
	if r.ParentID == "" {
		return "", ErrMissingParent
	}
	if !validRating(r.Rating) {
		return "", ErrInvalidRating
	}
	id, err := s.store.AddReview(ctx, r)
	if err != nil {
		return "", fmt.Errorf("add review: %w", err)
	}
	if err := s.recompute(ctx, r.ParentID); err != nil {
		return id, err
	}
	return id, nil
}

func (s *Service) recompute(ctx context.Context, parentID string) error {
	reviews, err := s.store.ListReviews(ctx, parentID)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	avg, n := AverageRating(reviews)
	if err := s.store.Update(ctx, parentID, model.Patch{Rating: &avg, ReviewCount: &n}); err != nil {
		return fmt.Errorf("update aggregate rating: %w", err)
	}
	s.log.Debug("rating_recomputed", "id", parentID, "rating", avg, "reviews", n)
	return nil
}

// AverageRating：评价评分均值与条数；无评价时为 (0,0)
func AverageRating(reviews []model.Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return model.ClampRating(sum / float64(len(reviews))), len(reviews)
}
