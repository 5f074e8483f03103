// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
)

// Client 通过HTTP访问平台API的后端实现
// 每个请求自动附带Bearer令牌，可直接作为写作会话的Backend使用
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New 创建API客户端
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// SetToken 更新认证令牌
func (c *Client) SetToken(token string) {
	c.token = token
}

// envelope 服务端的标准响应格式
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewGenerationError("请求发送失败", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("解析响应失败(%d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		return c.errorFromEnvelope(resp.StatusCode, &env)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("解析数据失败: %w", err)
		}
	}
	return nil
}

// errorFromEnvelope 按错误代码还原业务错误类型
func (c *Client) errorFromEnvelope(statusCode int, env *envelope) error {
	message := "请求失败"
	code := ""
	if env.Error != nil {
		message = env.Error.Message
		code = env.Error.Code
	}

	switch code {
	case "STALE_BASE":
		return apperrors.NewStaleBaseError(message)
	case "GENERATION_IN_FLIGHT":
		return apperrors.NewInFlightError(message)
	case "NOT_FOUND", "NOVEL_NOT_FOUND":
		return apperrors.NewNotFoundError(message, nil)
	case "UNAUTHORIZED":
		return apperrors.NewUnauthorizedError(message, nil)
	case "VALIDATION_ERROR", "BAD_REQUEST":
		return apperrors.NewValidationError(message)
	default:
		return apperrors.NewGenerationError(fmt.Sprintf("%s (HTTP %d)", message, statusCode), nil)
	}
}

// Login 社交登录，成功后自动持有返回的令牌
func (c *Client) Login(ctx context.Context, provider, socialID, nickname string) (*models.User, error) {
	var result struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}

	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"provider": provider,
		"socialId": socialID,
		"nickname": nickname,
	}, &result)
	if err != nil {
		return nil, err
	}

	c.token = result.Token
	return result.User, nil
}

// FetchNovel 获取小说快照
func (c *Client) FetchNovel(ctx context.Context, novelID string) (*models.Novel, error) {
	novel := &models.Novel{}
	if err := c.do(ctx, http.MethodGet, "/api/novel/"+url.PathEscape(novelID), nil, novel); err != nil {
		return nil, err
	}
	return novel, nil
}

// FetchScenes 获取场景列表
func (c *Client) FetchScenes(ctx context.Context, novelID string) ([]*models.StoryScene, error) {
	var scenes []*models.StoryScene
	if err := c.do(ctx, http.MethodGet, "/api/novel/"+url.PathEscape(novelID)+"/scenes", nil, &scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// GenerateScene 请求生成下一个场景
func (c *Client) GenerateScene(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error) {
	result := &models.GenerateResult{}
	if err := c.do(ctx, http.MethodPost, "/api/novel/generate", req, result); err != nil {
		return nil, err
	}
	return result, nil
}
