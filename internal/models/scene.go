// internal/models/scene.go
package models

import "time"

// StoryScene 表示小说中一个按顺序追加的叙事单元
// 序号0是作者创建小说时写下的第一幕，之后的场景由AI协作生成
type StoryScene struct {
	ID               string    `json:"id"`
	NovelID          string    `json:"novel_id"`
	SequenceOrder    int       `json:"sequence_order"`
	UserInput        string    `json:"user_input,omitempty"` // 用户提供的引导文本，AUTO模式下可为空
	Content          string    `json:"content"`              // AI生成的正文
	Summary          string    `json:"summary,omitempty"`
	KeyEvent         string    `json:"key_event,omitempty"`
	AffinityAtMoment int       `json:"affinity_at_moment"`
	AffinityDelta    int       `json:"affinity_delta"`
	IsEdited         bool      `json:"is_edited"`
	IsRegenerated    bool      `json:"is_regenerated"`
	CreatedAt        time.Time `json:"created_at"`
}

// GenerateMode 场景生成模式
type GenerateMode string

const (
	ModeUser GenerateMode = "USER" // 用户亲自书写引导
	ModeAuto GenerateMode = "AUTO" // AI自动推进剧情，单次生效
)

// GenerateRequest 生成下一场景的请求
type GenerateRequest struct {
	NovelID     string       `json:"novelId"`
	Mode        GenerateMode `json:"mode"`
	Content     string       `json:"content"`
	LastSceneID string       `json:"lastSceneId"`
}

// GenerateResult 生成下一场景的权威结果
type GenerateResult struct {
	SceneID       string `json:"sceneId"`
	NovelID       string `json:"novelId"`
	SequenceOrder int    `json:"sequenceOrder"`
	UserInput     string `json:"userInput"`
	Content       string `json:"content"`
	Affinity      int    `json:"affinity"`
	AffinityDelta int    `json:"affinityDelta"`
	Reason        string `json:"reason,omitempty"` // AI给出的好感度变动依据
	Relationship  string `json:"relationshipLevel"`
	LevelUp       bool   `json:"levelUp"`
}

// Scene 将生成结果转换为可追加到场景列表的实体
func (r *GenerateResult) Scene() *StoryScene {
	return &StoryScene{
		ID:               r.SceneID,
		NovelID:          r.NovelID,
		SequenceOrder:    r.SequenceOrder,
		UserInput:        r.UserInput,
		Content:          r.Content,
		AffinityAtMoment: r.Affinity,
		AffinityDelta:    r.AffinityDelta,
	}
}
