// internal/api/handlers.go
package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/services"
	"github.com/amusedev/amuse/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	NovelService      *services.NovelService      // 小说服务
	SceneService      *services.SceneService      // 场景服务
	GenerationService *services.GenerationService // 生成服务
	UserService       *services.UserService       // 用户服务
	StatsService      *services.StatsService      // 统计服务
	WriteSocket       *WriteSocketHandler         // 写作会话WebSocket处理器
	Response          *ResponseHelper             // 响应助手
}

// LoginRequest 社交登录请求
type LoginRequest struct {
	Provider        string `json:"provider" binding:"required"`
	SocialID        string `json:"socialId" binding:"required"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// LoginResponse 登录结果
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login 社交登录，首次登录自动注册
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "登录参数无效", err.Error())
		return
	}

	user, err := h.UserService.GetOrCreateBySocial(req.Provider, req.SocialID, req.Nickname, req.ProfileImageURL)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	token, err := IssueToken(user.ID, user.Provider)
	if err != nil {
		utils.GetLogger().Errorf("签发令牌失败: %v", err)
		h.Response.Error(c, 500, ErrorLoginFailed, "登录失败，请稍后重试")
		return
	}

	h.Response.Success(c, &LoginResponse{Token: token, User: user})
}

// NovelDetail 小说详情响应
type NovelDetail struct {
	*models.Novel
	Stats      *models.NovelStats `json:"stats,omitempty"`
	IsFavorite bool               `json:"isFavorite"`
}

// GetNovel 获取小说详情，附带统计并记一次浏览
func (h *Handler) GetNovel(c *gin.Context) {
	novelID := c.Param("id")

	novel, err := h.NovelService.GetNovel(novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	if err := h.StatsService.RecordView(c.Request.Context(), novelID); err != nil {
		utils.GetLogger().Warnf("记录浏览失败: %v", err)
	}

	stats, err := h.StatsService.GetStats(c.Request.Context(), novelID)
	if err != nil {
		utils.GetLogger().Warnf("读取统计失败: %v", err)
	}

	detail := &NovelDetail{Novel: novel, Stats: stats}
	if userID := c.GetString("user_id"); userID != "" {
		if isFavorite, err := h.StatsService.Store.IsFavorite(c.Request.Context(), userID, novelID); err == nil {
			detail.IsFavorite = isFavorite
		}
	}

	h.Response.Success(c, detail)
}

// ListMyNovels 当前用户的小说列表
func (h *Handler) ListMyNovels(c *gin.Context) {
	novels, err := h.NovelService.ListNovelsByAuthor(c.GetString("user_id"))
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, h.NovelService.MetadataList(novels))
}

// ListSharedNovels 公开分享的小说列表
func (h *Handler) ListSharedNovels(c *gin.Context) {
	novels, err := h.NovelService.ListSharedNovels()
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, h.NovelService.MetadataList(novels))
}

// GetScenes 小说的场景列表
func (h *Handler) GetScenes(c *gin.Context) {
	novelID := c.Param("id")

	if _, err := h.NovelService.GetNovel(novelID); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	scenes, err := h.SceneService.ListScenes(novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, scenes)
}

// CreateNovel 创建小说
func (h *Handler) CreateNovel(c *gin.Context) {
	var req services.CreateNovelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "创建参数无效", err.Error())
		return
	}

	novel, err := h.NovelService.CreateNovel(c.Request.Context(), c.GetString("user_id"), &req)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Created(c, novel)
}

// GenerateScene 生成下一个场景
func (h *Handler) GenerateScene(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "生成参数无效", err.Error())
		return
	}

	result, err := h.GenerationService.GenerateNextScene(c.Request.Context(), &req)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, result)
}

// ShareRequest 分享状态变更请求
type ShareRequest struct {
	Shared bool `json:"shared"`
}

// ShareNovel 设置小说的公开状态，仅作者可操作
func (h *Handler) ShareNovel(c *gin.Context) {
	novelID := c.Param("id")

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "分享参数无效", err.Error())
		return
	}

	novel, err := h.NovelService.GetNovel(novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	if novel.AuthorID != c.GetString("user_id") {
		h.Response.Error(c, 403, ErrorForbidden, "只有作者可以修改分享状态")
		return
	}

	updated, err := h.NovelService.ShareNovel(novelID, req.Shared)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, updated)
}

// DeleteNovel 删除小说，仅作者可操作
func (h *Handler) DeleteNovel(c *gin.Context) {
	novelID := c.Param("id")

	novel, err := h.NovelService.GetNovel(novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	if novel.AuthorID != c.GetString("user_id") {
		h.Response.Error(c, 403, ErrorForbidden, "只有作者可以删除小说")
		return
	}

	if err := h.NovelService.DeleteNovel(c.Request.Context(), novelID); err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"deleted": novelID})
}

// ToggleFavorite 切换收藏状态
func (h *Handler) ToggleFavorite(c *gin.Context) {
	novelID := c.Param("id")

	if _, err := h.NovelService.GetNovel(novelID); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	favorited, err := h.StatsService.ToggleFavorite(c.Request.Context(), c.GetString("user_id"), novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"favorited": favorited})
}

// UnfavoriteNovel 取消收藏
func (h *Handler) UnfavoriteNovel(c *gin.Context) {
	novelID := c.Param("id")

	removed, err := h.StatsService.Unfavorite(c.Request.Context(), c.GetString("user_id"), novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"favorited": false, "removed": removed})
}

// LikeRequest 点赞状态变更请求
type LikeRequest struct {
	Liked bool `json:"liked"`
}

// LikeNovel 点赞或取消点赞
func (h *Handler) LikeNovel(c *gin.Context) {
	novelID := c.Param("id")

	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "点赞参数无效", err.Error())
		return
	}

	if _, err := h.NovelService.GetNovel(novelID); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	if err := h.StatsService.AddLike(c.Request.Context(), novelID, req.Liked); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	stats, err := h.StatsService.GetStats(c.Request.Context(), novelID)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, stats)
}

// ListFavorites 当前用户收藏的小说
func (h *Handler) ListFavorites(c *gin.Context) {
	ids, err := h.StatsService.ListFavorites(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	novels := make([]*models.Novel, 0, len(ids))
	for _, id := range ids {
		novel, err := h.NovelService.GetNovel(id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			h.Response.FromAppError(c, err)
			return
		}
		novels = append(novels, novel)
	}
	h.Response.Success(c, h.NovelService.MetadataList(novels))
}

// GetMetrics 生成链路的运行指标（调试用）
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetGenerationMetrics().Snapshot())
}
