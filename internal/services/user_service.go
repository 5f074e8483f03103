// internal/services/user_service.go
package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/storage"
)

const (
	usersDir          = "users"
	userIndexFileName = "index.json"
)

// UserService 管理社交登录用户
// 用户文件按ID存放，社交账号到ID的映射保存在索引文件中
type UserService struct {
	Storage *storage.FileStorage

	// 读改写索引需要串行化
	indexMutex sync.Mutex
}

// NewUserService 创建用户服务
func NewUserService(fileStorage *storage.FileStorage) *UserService {
	return &UserService{Storage: fileStorage}
}

func socialKey(provider, socialID string) string {
	return provider + ":" + socialID
}

func (s *UserService) loadIndex() (map[string]string, error) {
	index := map[string]string{}
	if !s.Storage.FileExists(usersDir, userIndexFileName) {
		return index, nil
	}
	if err := s.Storage.LoadJSON(usersDir, userIndexFileName, &index); err != nil {
		return nil, fmt.Errorf("读取用户索引失败: %w", err)
	}
	return index, nil
}

// GetOrCreateBySocial 按社交账号查找用户，不存在时自动注册
func (s *UserService) GetOrCreateBySocial(provider, socialID, nickname, profileImageURL string) (*models.User, error) {
	provider = strings.TrimSpace(provider)
	socialID = strings.TrimSpace(socialID)
	if provider == "" || socialID == "" {
		return nil, apperrors.NewValidationError("社交账号信息不完整")
	}

	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	if userID, exists := index[socialKey(provider, socialID)]; exists {
		user, err := s.getByID(userID)
		if err != nil {
			return nil, err
		}
		user.LastLogin = time.Now()
		if nickname != "" {
			user.Nickname = nickname
		}
		if profileImageURL != "" {
			user.ProfileImageURL = profileImageURL
		}
		if err := s.saveUser(user); err != nil {
			return nil, err
		}
		return user, nil
	}

	now := time.Now()
	user := &models.User{
		ID:              uuid.NewString(),
		SocialID:        socialID,
		Provider:        provider,
		Nickname:        nickname,
		ProfileImageURL: profileImageURL,
		CreatedAt:       now,
		LastLogin:       now,
	}
	if err := s.saveUser(user); err != nil {
		return nil, err
	}

	index[socialKey(provider, socialID)] = user.ID
	if err := s.Storage.SaveJSON(usersDir, userIndexFileName, index); err != nil {
		return nil, fmt.Errorf("保存用户索引失败: %w", err)
	}
	return user, nil
}

// GetByID 按ID获取用户
func (s *UserService) GetByID(userID string) (*models.User, error) {
	return s.getByID(userID)
}

func (s *UserService) getByID(userID string) (*models.User, error) {
	filename := userID + ".json"
	if !s.Storage.FileExists(usersDir, filename) {
		return nil, apperrors.NewNotFoundError("用户不存在: "+userID, nil)
	}

	user := &models.User{}
	if err := s.Storage.LoadJSON(usersDir, filename, user); err != nil {
		return nil, fmt.Errorf("读取用户失败: %w", err)
	}
	return user, nil
}

func (s *UserService) saveUser(user *models.User) error {
	if err := s.Storage.SaveJSON(usersDir, user.ID+".json", user); err != nil {
		return fmt.Errorf("保存用户失败: %w", err)
	}
	return nil
}
