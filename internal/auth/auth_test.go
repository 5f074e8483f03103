// internal/auth/auth_test.go
package auth

import (
	"strings"
	"testing"
	"time"
)

func testConfig() *TokenConfig {
	return &TokenConfig{
		Secret:     []byte("test_signing_key_32_bytes_long__"),
		Expiration: time.Hour,
	}
}

// TestTokenRoundTrip 签发后能解析出相同的载荷
func TestTokenRoundTrip(t *testing.T) {
	config := testConfig()

	tokenString, err := GenerateToken("user-123", "kakao", config)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	token, err := ParseToken(tokenString, config)
	if err != nil {
		t.Fatalf("解析令牌失败: %v", err)
	}

	if token.UserID != "user-123" {
		t.Errorf("用户ID = %s, 期望 user-123", token.UserID)
	}
	if token.Provider != "kakao" {
		t.Errorf("登录来源 = %s, 期望 kakao", token.Provider)
	}
	if token.ExpiresAt <= token.IssuedAt {
		t.Error("过期时间应晚于签发时间")
	}
}

// TestTokenTamperedSignature 篡改后的令牌被拒绝
func TestTokenTamperedSignature(t *testing.T) {
	config := testConfig()

	tokenString, err := GenerateToken("user-123", "google", config)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	parts := strings.Split(tokenString, ".")
	tampered := parts[0] + "." + strings.Repeat("A", len(parts[1]))
	if _, err := ParseToken(tampered, config); err == nil {
		t.Error("篡改签名的令牌应被拒绝")
	}

	// 用不同密钥签发的令牌同样无效
	otherConfig := &TokenConfig{
		Secret:     []byte("another_signing_key_32_bytes____"),
		Expiration: time.Hour,
	}
	otherToken, _ := GenerateToken("user-123", "google", otherConfig)
	if _, err := ParseToken(otherToken, config); err == nil {
		t.Error("异钥令牌应被拒绝")
	}
}

// TestTokenExpired 过期令牌被拒绝
func TestTokenExpired(t *testing.T) {
	config := &TokenConfig{
		Secret:     testConfig().Secret,
		Expiration: -time.Minute,
	}

	tokenString, err := GenerateToken("user-123", "kakao", config)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	_, err = ParseToken(tokenString, config)
	if err == nil {
		t.Fatal("过期令牌应被拒绝")
	}
	if !strings.Contains(err.Error(), "过期") {
		t.Errorf("错误信息不符: %v", err)
	}
}

// TestTokenMalformed 畸形令牌的各种形态
func TestTokenMalformed(t *testing.T) {
	config := testConfig()

	inputs := []string{
		"",
		"no-dot-at-all",
		"a.b.c",
		"!!!.???",
	}
	for _, input := range inputs {
		if _, err := ParseToken(input, config); err == nil {
			t.Errorf("畸形令牌 %q 应被拒绝", input)
		}
	}
}

// TestGenerateTokenRejectsDelimiter 载荷字段不允许包含分隔符
func TestGenerateTokenRejectsDelimiter(t *testing.T) {
	config := testConfig()

	if _, err := GenerateToken("user|123", "kakao", config); err == nil {
		t.Error("含分隔符的用户ID应被拒绝")
	}
	if _, err := GenerateToken("user-123", "ka|kao", config); err == nil {
		t.Error("含分隔符的登录来源应被拒绝")
	}
}

// TestGenerateSecureKey 密钥长度与随机性
func TestGenerateSecureKey(t *testing.T) {
	key, err := GenerateSecureKey(32)
	if err != nil {
		t.Fatalf("生成密钥失败: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("密钥长度 = %d, 期望 32", len(key))
	}

	// 非法长度回退到默认值
	fallback, err := GenerateSecureKey(0)
	if err != nil {
		t.Fatalf("生成密钥失败: %v", err)
	}
	if len(fallback) != 32 {
		t.Errorf("默认密钥长度 = %d, 期望 32", len(fallback))
	}

	other, _ := GenerateSecureKey(32)
	if string(key) == string(other) {
		t.Error("两次生成的密钥不应相同")
	}
}
