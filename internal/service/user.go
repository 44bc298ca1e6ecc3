package service

import (
	"context"
	"log"
	"strings"

	"github.com/shiva/ridepool/internal/model"
)

// UserService manages passenger and driver accounts.
type UserService struct {
	users UserStore
}

// NewUserService creates a user service.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Mobile string         `json:"mobile"`
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	Role   model.UserRole `json:"role"`
	Avatar string         `json:"avatar"`
	Bio    string         `json:"bio"`
}

// Register creates an account. Mobile numbers are unique.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Mobile = strings.TrimSpace(in.Mobile)
	if in.Mobile == "" {
		return nil, validationf("mobile is required")
	}
	switch in.Role {
	case model.RoleUser, model.RoleDriver:
	default:
		return nil, validationf("unknown role %q", in.Role)
	}
	if _, err := s.users.GetUserByMobile(ctx, in.Mobile); err == nil {
		return nil, validationf("mobile %s is already registered", in.Mobile)
	}

	u := &model.User{
		Mobile: in.Mobile,
		Name:   in.Name,
		Email:  in.Email,
		Role:   in.Role,
		Avatar: in.Avatar,
		Bio:    in.Bio,
	}
	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Printf("[user] registered %s %d", created.Role, created.ID)
	return created, nil
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return u, nil
}
