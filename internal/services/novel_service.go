// internal/services/novel_service.go
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/storage"
	"github.com/amusedev/amuse/internal/utils"
)

const novelFileName = "novel.json"

// NovelService 处理小说相关的业务逻辑
type NovelService struct {
	Storage      *storage.FileStorage
	SceneService *SceneService
	StatsStore   *storage.StatsStore
}

// CreateNovelRequest 创建小说的输入
type CreateNovelRequest struct {
	Title             string              `json:"title" binding:"required"`
	Description       string              `json:"description"`
	Tags              []string            `json:"tags"`
	CoverImageURL     string              `json:"coverImageUrl"`
	CharacterSettings string              `json:"characterSettings"`
	AffinityMode      bool                `json:"affinityMode"`
	Characters        []CharacterSeed     `json:"characters" binding:"required"`
	FirstScene        string              `json:"firstScene" binding:"required"`
}

// CharacterSeed 创建小说时的角色定义
type CharacterSeed struct {
	Name        string `json:"name" binding:"required"`
	Role        string `json:"role" binding:"required"`
	Gender      string `json:"gender"`
	Personality string `json:"personality"`
	Appearance  string `json:"appearance"`
}

// NewNovelService 创建小说服务
func NewNovelService(fileStorage *storage.FileStorage, sceneService *SceneService, statsStore *storage.StatsStore) *NovelService {
	return &NovelService{
		Storage:      fileStorage,
		SceneService: sceneService,
		StatsStore:   statsStore,
	}
}

func novelDir(novelID string) string {
	return filepath.Join("novels", novelID)
}

// CreateNovel 创建新小说
// 角色好感度从0起步，首个场景序号为0且用户输入与AI输出相同
func (s *NovelService) CreateNovel(ctx context.Context, authorID string, req *CreateNovelRequest) (*models.Novel, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("标题不能为空")
	}
	firstScene := strings.TrimSpace(req.FirstScene)
	if firstScene == "" {
		return nil, apperrors.NewValidationError("首个场景不能为空")
	}

	hasMain := false
	for _, seed := range req.Characters {
		if models.CharacterRole(seed.Role) == models.RoleMain {
			hasMain = true
		}
	}
	if !hasMain {
		return nil, apperrors.NewValidationError("至少需要一个主角色")
	}

	now := time.Now()
	novel := &models.Novel{
		ID:                uuid.NewString(),
		AuthorID:          authorID,
		Title:             title,
		Description:       req.Description,
		Tags:              req.Tags,
		CoverImageURL:     req.CoverImageURL,
		CharacterSettings: req.CharacterSettings,
		Status:            models.NovelStatusProcess,
		AffinityMode:      req.AffinityMode,
		CreatedAt:         now,
		LastUpdated:       now,
	}

	firstTier := models.TierFor(0)
	for _, seed := range req.Characters {
		novel.Characters = append(novel.Characters, &models.Character{
			ID:           uuid.NewString(),
			NovelID:      novel.ID,
			Name:         strings.TrimSpace(seed.Name),
			Role:         models.CharacterRole(seed.Role),
			Gender:       seed.Gender,
			Personality:  seed.Personality,
			Appearance:   seed.Appearance,
			Affinity:     0,
			Relationship: firstTier.ID,
			CreatedAt:    now,
			LastUpdated:  now,
		})
	}

	if err := s.Storage.SaveJSON(novelDir(novel.ID), novelFileName, novel); err != nil {
		return nil, fmt.Errorf("保存小说失败: %w", err)
	}

	// 首个场景：开场叙述既是输入也是输出
	opening := &models.StoryScene{
		ID:            uuid.NewString(),
		NovelID:       novel.ID,
		SequenceOrder: 0,
		UserInput:     firstScene,
		Content:       firstScene,
		KeyEvent:      "故事的开始",
		CreatedAt:     now,
	}
	if err := s.SceneService.AppendScene(novel.ID, opening); err != nil {
		return nil, fmt.Errorf("保存首个场景失败: %w", err)
	}

	if err := s.StatsStore.EnsureNovel(ctx, novel.ID); err != nil {
		utils.GetLogger().Warnf("初始化小说统计失败: %v", err)
	}

	return novel, nil
}

// GetNovel 获取小说
func (s *NovelService) GetNovel(novelID string) (*models.Novel, error) {
	if !s.Storage.FileExists(novelDir(novelID), novelFileName) {
		return nil, apperrors.NewNotFoundError("小说不存在: "+novelID, nil)
	}

	novel := &models.Novel{}
	if err := s.Storage.LoadJSON(novelDir(novelID), novelFileName, novel); err != nil {
		return nil, fmt.Errorf("读取小说失败: %w", err)
	}
	return novel, nil
}

// SaveNovel 持久化小说状态
func (s *NovelService) SaveNovel(novel *models.Novel) error {
	novel.LastUpdated = time.Now()
	return s.Storage.SaveJSON(novelDir(novel.ID), novelFileName, novel)
}

// ListNovelsByAuthor 列出作者的小说，按更新时间倒序
func (s *NovelService) ListNovelsByAuthor(authorID string) ([]*models.Novel, error) {
	return s.listNovels(func(n *models.Novel) bool {
		return n.AuthorID == authorID
	})
}

// ListSharedNovels 列出所有公开分享的小说
func (s *NovelService) ListSharedNovels() ([]*models.Novel, error) {
	return s.listNovels(func(n *models.Novel) bool {
		return n.IsShared
	})
}

func (s *NovelService) listNovels(match func(*models.Novel) bool) ([]*models.Novel, error) {
	ids, err := s.Storage.ListDirs("novels")
	if err != nil {
		return nil, fmt.Errorf("列出小说失败: %w", err)
	}

	var novels []*models.Novel
	for _, id := range ids {
		novel, err := s.GetNovel(id)
		if err != nil {
			utils.GetLogger().Warnf("跳过无法读取的小说 %s: %v", id, err)
			continue
		}
		if match(novel) {
			novels = append(novels, novel)
		}
	}

	sort.Slice(novels, func(i, j int) bool {
		return novels[i].LastUpdated.After(novels[j].LastUpdated)
	})
	return novels, nil
}

// MetadataList 将小说列表转换为展示用摘要，附带场景数
func (s *NovelService) MetadataList(novels []*models.Novel) []*models.NovelMetadata {
	list := make([]*models.NovelMetadata, 0, len(novels))
	for _, novel := range novels {
		count, err := s.SceneService.SceneCount(novel.ID)
		if err != nil {
			utils.GetLogger().Warnf("统计场景数失败 %s: %v", novel.ID, err)
		}
		list = append(list, &models.NovelMetadata{
			ID:            novel.ID,
			Title:         novel.Title,
			Description:   novel.Description,
			CoverImageURL: novel.CoverImageURL,
			Status:        novel.Status,
			IsShared:      novel.IsShared,
			SceneCount:    count,
			LastUpdated:   novel.LastUpdated,
		})
	}
	return list
}

// ShareNovel 设置小说的公开状态
func (s *NovelService) ShareNovel(novelID string, shared bool) (*models.Novel, error) {
	novel, err := s.GetNovel(novelID)
	if err != nil {
		return nil, err
	}

	novel.IsShared = shared
	if shared {
		novel.SharedAt = time.Now()
	} else {
		novel.SharedAt = time.Time{}
	}

	if err := s.SaveNovel(novel); err != nil {
		return nil, err
	}
	return novel, nil
}

// DeleteNovel 删除小说及其所有数据
func (s *NovelService) DeleteNovel(ctx context.Context, novelID string) error {
	if !s.Storage.FileExists(novelDir(novelID), novelFileName) {
		return apperrors.NewNotFoundError("小说不存在: "+novelID, nil)
	}

	if err := s.Storage.DeleteDir(novelDir(novelID)); err != nil {
		return fmt.Errorf("删除小说目录失败: %w", err)
	}

	if err := s.StatsStore.DeleteNovel(ctx, novelID); err != nil {
		utils.GetLogger().Warnf("清理小说统计失败: %v", err)
	}
	return nil
}
