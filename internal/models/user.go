// internal/models/user.go
package models

import "time"

// User 表示平台用户
// 账号通过第三方社交登录创建，SocialID 是提供方分配的外部标识
type User struct {
	ID              string    `json:"id"`
	SocialID        string    `json:"social_id"`
	Provider        string    `json:"provider"` // 社交登录提供方 (kakao 等)
	Nickname        string    `json:"nickname"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastLogin       time.Time `json:"last_login"`
}
