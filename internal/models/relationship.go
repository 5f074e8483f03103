// internal/models/relationship.go
package models

// Tier 表示由好感度推导出的关系等级
// 四个等级构成固定的封闭集合，门槛分数严格递增且互不相同
type Tier struct {
	ID        string `json:"id"`        // 等级标识 (ACQUAINTANCE/FRIEND/SOME/LOVER)
	Level     int    `json:"level"`     // 等级序号，从1开始
	Name      string `json:"name"`      // 展示名称
	Desc      string `json:"desc"`      // 等级描述
	Color     string `json:"color"`     // 展示颜色
	Threshold int    `json:"threshold"` // 达到该等级所需的最低好感度
}

// 关系等级表，按门槛升序排列
// 查找时按降序比较，边界处取较高等级（>= 比较）
var relationTiers = []Tier{
	{ID: "ACQUAINTANCE", Level: 1, Name: "相识", Desc: "开始意识到彼此的存在。", Color: "#94A3B8", Threshold: 0},
	{ID: "FRIEND", Level: 2, Name: "朋友", Desc: "在一起时感到自在的关系。", Color: "#60A5FA", Threshold: 100},
	{ID: "SOME", Level: 3, Name: "暧昧", Desc: "空气中开始流动微妙的张力。", Color: "#F472B6", Threshold: 200},
	{ID: "LOVER", Level: 4, Name: "恋人", Desc: "已经成为彼此不可缺少的存在。", Color: "#FB7185", Threshold: 300},
}

// TierFor 根据好感度分数返回对应的关系等级
// 对全体整数有定义：低于所有非零门槛的分数（含负数）归入最低等级
func TierFor(score int) Tier {
	for i := len(relationTiers) - 1; i >= 0; i-- {
		if score >= relationTiers[i].Threshold {
			return relationTiers[i]
		}
	}
	return relationTiers[0]
}

// TierByID 根据等级标识查找等级，未知标识返回nil
func TierByID(id string) *Tier {
	for i := range relationTiers {
		if relationTiers[i].ID == id {
			t := relationTiers[i]
			return &t
		}
	}
	return nil
}

// Tiers 返回全部关系等级的副本，按门槛升序
func Tiers() []Tier {
	out := make([]Tier, len(relationTiers))
	copy(out, relationTiers)
	return out
}
