// internal/api/auth_middleware.go
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amusedev/amuse/internal/auth"
	"github.com/amusedev/amuse/internal/config"
	"github.com/amusedev/amuse/internal/utils"
)

var tokenConfig *auth.TokenConfig

// InitializeAuth 初始化认证系统
func InitializeAuth() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置未加载")
	}

	var secret []byte
	switch {
	case cfg.AuthSecret != "":
		secret = []byte(cfg.AuthSecret)
	case cfg.DebugMode:
		// 开发模式下用固定密钥，重启后令牌不失效
		secret = []byte("dev_auth_key_for_local_testing_only_____")
		utils.GetLogger().Warnf("开发模式使用固定认证密钥，生产环境请设置 AUTH_SECRET")
	default:
		generated, err := auth.GenerateSecureKey(32)
		if err != nil {
			return fmt.Errorf("生成认证密钥失败: %w", err)
		}
		secret = generated
		utils.GetLogger().Warnf("未设置 AUTH_SECRET，使用随机密钥，重启后已签发令牌将失效")
	}

	// 密钥固定为32字节
	if len(secret) < 32 {
		padded := make([]byte, 32)
		copy(padded, secret)
		secret = padded
	} else if len(secret) > 32 {
		secret = secret[:32]
	}

	tokenConfig = &auth.TokenConfig{
		Secret:     secret,
		Expiration: 24 * time.Hour,
	}
	return nil
}

// TokenConfigForTesting 注入测试用令牌配置
func TokenConfigForTesting(cfg *auth.TokenConfig) {
	tokenConfig = cfg
}

// IssueToken 为用户签发令牌
func IssueToken(userID, provider string) (string, error) {
	if tokenConfig == nil {
		return "", fmt.Errorf("认证系统未初始化")
	}
	return auth.GenerateToken(userID, provider, tokenConfig)
}

// AuthMiddleware 解析Bearer令牌并注入用户上下文
// 无令牌或令牌无效时放行为访客，由RequireAuth决定是否拒绝
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set("user_authenticated", false)
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" || tokenConfig == nil {
			c.Set("user_authenticated", false)
			c.Next()
			return
		}

		parsedToken, err := auth.ParseToken(token, tokenConfig)
		if err != nil {
			utils.GetLogger().Warnf("令牌验证失败，降级为访客: %v", err)
			c.Set("user_authenticated", false)
			c.Set("auth_error", err.Error())
			c.Next()
			return
		}

		c.Set("user_id", parsedToken.UserID)
		c.Set("user_provider", parsedToken.Provider)
		c.Set("user_authenticated", true)
		c.Next()
	}
}

// RequireAuth 拒绝未认证的请求
func RequireAuth() gin.HandlerFunc {
	helper := NewResponseHelper()
	return func(c *gin.Context) {
		if !c.GetBool("user_authenticated") {
			helper.Unauthorized(c, "需要登录")
			c.Abort()
			return
		}
		c.Next()
	}
}
