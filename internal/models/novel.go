// internal/models/novel.go
package models

import (
	"time"
)

// 小说状态
const (
	NovelStatusProcess = "PROCESS" // 连载中
	NovelStatusDone    = "DONE"    // 已完结
)

// Novel 表示一部连载小说
type Novel struct {
	ID                string    `json:"id"`
	AuthorID          string    `json:"author_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Tags              []string  `json:"tags,omitempty"`
	CoverImageURL     string    `json:"cover_image_url,omitempty"`
	CharacterSettings string    `json:"character_settings,omitempty"` // 角色及世界观的合并文本，供AI上下文使用
	TotalSummary      string    `json:"total_summary,omitempty"`      // 迄今为止的剧情摘要，由后台定期刷新
	Status            string    `json:"status"`
	IsShared          bool      `json:"is_shared"`
	SharedAt          time.Time `json:"shared_at,omitempty"`
	AffinityMode      bool      `json:"affinity_mode"` // 是否启用好感度系统
	CreatedAt         time.Time `json:"created_at"`
	LastUpdated       time.Time `json:"last_updated"`

	Characters []*Character `json:"characters,omitempty"`
}

// MainCharacter 返回小说的主角色
// 好感度模式下每部小说必须恰好有一个 MAIN 角色，这一不变式由创建流程保证
func (n *Novel) MainCharacter() *Character {
	for _, c := range n.Characters {
		if c.Role == RoleMain {
			return c
		}
	}
	return nil
}

// NovelMetadata 用于列表展示的小说摘要
type NovelMetadata struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	Status        string    `json:"status"`
	IsShared      bool      `json:"is_shared"`
	SceneCount    int       `json:"scene_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// NovelStats 小说统计数据（存储在SQLite中）
type NovelStats struct {
	NovelID       string `json:"novel_id"`
	ViewCount     int64  `json:"view_count"`
	LikeCount     int64  `json:"like_count"`
	FavoriteCount int64  `json:"favorite_count"`
}
