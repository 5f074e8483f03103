// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenConfig 令牌签发配置
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// Token 已验证的认证令牌
type Token struct {
	UserID    string `json:"user_id"`
	Provider  string `json:"provider"` // 社交登录来源
	ExpiresAt int64  `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
}

// GenerateToken 签发HMAC-SHA256令牌
func GenerateToken(userID, provider string, config *TokenConfig) (string, error) {
	if len(config.Secret) == 0 {
		return "", fmt.Errorf("缺少签名密钥")
	}
	if strings.ContainsAny(userID, "|") || strings.ContainsAny(provider, "|") {
		return "", fmt.Errorf("载荷字段包含非法字符")
	}

	now := time.Now()
	expiresAt := now.Add(config.Expiration).Unix()
	payload := fmt.Sprintf("%s|%s|%d|%d", userID, provider, expiresAt, now.Unix())

	h := hmac.New(sha256.New, config.Secret)
	h.Write([]byte(payload))
	signature := h.Sum(nil)

	encodedPayload := base64.URLEncoding.EncodeToString([]byte(payload))
	encodedSignature := base64.URLEncoding.EncodeToString(signature)

	return encodedPayload + "." + encodedSignature, nil
}

// ParseToken 验证并解析令牌
func ParseToken(tokenString string, config *TokenConfig) (*Token, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("缺少签名密钥")
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("令牌格式无效")
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("令牌载荷无效: %w", err)
	}

	signatureBytes, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("令牌签名无效: %w", err)
	}

	expected := hmac.New(sha256.New, config.Secret)
	expected.Write(payloadBytes)
	if !hmac.Equal(signatureBytes, expected.Sum(nil)) {
		return nil, fmt.Errorf("令牌签名不匹配")
	}

	fields := strings.Split(string(payloadBytes), "|")
	if len(fields) != 4 {
		return nil, fmt.Errorf("令牌载荷格式无效")
	}

	expiresAt, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("过期时间无效: %w", err)
	}
	issuedAt, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("签发时间无效: %w", err)
	}

	if time.Now().Unix() > expiresAt {
		return nil, fmt.Errorf("令牌已过期")
	}

	return &Token{
		UserID:    fields[0],
		Provider:  fields[1],
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
	}, nil
}

// GenerateSecureKey 生成随机签名密钥
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
