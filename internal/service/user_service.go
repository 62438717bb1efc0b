package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo *repository.UserRepo
}

// NewUserService creates a new UserService
func NewUserService(userRepo *repository.UserRepo) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// GetUserInfo gets user info by Id
func (s *UserService) GetUserInfo(ctx context.Context, userId string) (*entity.UserInfo, error) {
	user, err := s.userRepo.GetById(ctx, userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrUserNotFound
		}
		log.CtxError(ctx, "get user failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return user.ToUserInfo(), nil
}

// ListUsers lists every user that can be messaged directly, ordered by Id
func (s *UserService) ListUsers(ctx context.Context) ([]*entity.UserInfo, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		log.CtxError(ctx, "list users failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, user.ToUserInfo())
	}
	return infos, nil
}

// GetUserInfos gets multiple users info by Ids
func (s *UserService) GetUserInfos(ctx context.Context, userIds []string) ([]*entity.UserInfo, error) {
	users, err := s.userRepo.GetByIds(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "get users failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, user.ToUserInfo())
	}
	return infos, nil
}

// UpdateUserRequest represents user update request
type UpdateUserRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Extra    string `json:"extra,omitempty"`
}

// UpdateUserInfo updates user info
func (s *UserService) UpdateUserInfo(ctx context.Context, userId string, req *UpdateUserRequest) (*entity.UserInfo, error) {
	exists, err := s.userRepo.Exists(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "check user exists failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if !exists {
		return nil, errcode.ErrUserNotFound
	}

	updates := make(map[string]interface{})
	if req.Nickname != "" {
		updates["nickname"] = req.Nickname
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if req.Extra != "" {
		updates["extra"] = req.Extra
	}

	if len(updates) > 0 {
		if err := s.userRepo.Update(ctx, userId, updates); err != nil {
			log.CtxError(ctx, "update user failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
	}

	return s.GetUserInfo(ctx, userId)
}
