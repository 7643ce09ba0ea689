package services

import (
	"context"
	"errors"
	"fmt"

	"dm-go/internal/auth"
	"dm-go/internal/config"
	"dm-go/internal/models"
	"dm-go/internal/storage"
)

// AuthService 定义了用户认证服务的接口。
// Accounts are created elsewhere; this service only issues tokens for them.
type AuthService interface {
	Login(ctx context.Context, username, password string) (token string, user *models.User, err error)
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo storage.UserRepository
	cfg      config.AuthConfig
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo storage.UserRepository, cfg config.AuthConfig) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// Login 处理用户登录逻辑。
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	} else if err != nil {
		return "", nil, storageError("find user by username", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Role, s.cfg)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, user, nil
}
