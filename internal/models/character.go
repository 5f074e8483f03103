// internal/models/character.go
package models

import "time"

// CharacterRole 角色在小说中的定位
type CharacterRole string

const (
	RoleMain CharacterRole = "MAIN" // 主角色，承载好感度
	RoleUser CharacterRole = "USER" // 读者扮演的角色
	RoleSub  CharacterRole = "SUB"  // 配角
)

// Character 表示小说中的一个角色
type Character struct {
	ID            string        `json:"id"`
	NovelID       string        `json:"novel_id"`
	Name          string        `json:"name"`
	Role          CharacterRole `json:"role"`
	Gender        string        `json:"gender,omitempty"`
	Personality   string        `json:"personality,omitempty"`
	Appearance    string        `json:"appearance,omitempty"`
	StatusMessage string        `json:"status_message,omitempty"`
	Affinity      int           `json:"affinity"`           // 当前好感度分数，仅对 MAIN 角色有意义
	Relationship  string        `json:"relationship_level"` // 当前关系等级ID，由好感度推导
	CreatedAt     time.Time     `json:"created_at"`
	LastUpdated   time.Time     `json:"last_updated"`
}

// ApplyAffinityDelta 应用一次好感度变动并更新关系等级
//
// 下限棘轮：已达到的等级不会因负向变动而跌破该等级的门槛分数，
// 上限不封顶。返回是否触发了等级提升。
func (c *Character) ApplyAffinityDelta(delta int) bool {
	oldTier := TierFor(c.Affinity)

	floor := 0
	if attained := TierByID(c.Relationship); attained != nil {
		floor = attained.Threshold
	}

	next := c.Affinity + delta
	if next < floor {
		next = floor
	}
	c.Affinity = next

	newTier := TierFor(c.Affinity)
	c.Relationship = newTier.ID
	return newTier.Threshold > oldTier.Threshold
}
