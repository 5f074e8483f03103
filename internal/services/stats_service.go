// internal/services/stats_service.go
package services

import (
	"context"

	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/storage"
)

// StatsService 小说统计与收藏
type StatsService struct {
	Store *storage.StatsStore
}

// NewStatsService 创建统计服务
func NewStatsService(store *storage.StatsStore) *StatsService {
	return &StatsService{Store: store}
}

// RecordView 记录一次浏览
func (s *StatsService) RecordView(ctx context.Context, novelID string) error {
	return s.Store.IncrementView(ctx, novelID)
}

// GetStats 获取小说统计
func (s *StatsService) GetStats(ctx context.Context, novelID string) (*models.NovelStats, error) {
	return s.Store.Get(ctx, novelID)
}

// ToggleFavorite 切换收藏状态，返回切换后是否为已收藏
func (s *StatsService) ToggleFavorite(ctx context.Context, userID, novelID string) (bool, error) {
	isFavorite, err := s.Store.IsFavorite(ctx, userID, novelID)
	if err != nil {
		return false, err
	}

	if isFavorite {
		if _, err := s.Store.RemoveFavorite(ctx, userID, novelID); err != nil {
			return true, err
		}
		return false, nil
	}

	if _, err := s.Store.AddFavorite(ctx, userID, novelID); err != nil {
		return false, err
	}
	return true, nil
}

// Unfavorite 取消收藏，返回是否实际删除
func (s *StatsService) Unfavorite(ctx context.Context, userID, novelID string) (bool, error) {
	return s.Store.RemoveFavorite(ctx, userID, novelID)
}

// AddLike 点赞或取消点赞
func (s *StatsService) AddLike(ctx context.Context, novelID string, liked bool) error {
	delta := 1
	if !liked {
		delta = -1
	}
	return s.Store.AddLike(ctx, novelID, delta)
}

// ListFavorites 用户收藏的小说ID列表
func (s *StatsService) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	return s.Store.ListFavorites(ctx, userID)
}
