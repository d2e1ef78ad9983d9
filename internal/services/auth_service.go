package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
	"github.com/atrium-collab/atrium/internal/repositories"
	"github.com/atrium-collab/atrium/internal/utils"
)

type AuthService struct {
	users repositories.UserRepository
}

func NewAuthService(users repositories.UserRepository) *AuthService {
	return &AuthService{users: users}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (access, refresh string, user *models.User, err error) {
	if username == "" {
		return "", "", nil, chaterr.New(chaterr.InvalidArgument, "username is required")
	}
	if err := utils.ValidatePassword(password); err != nil {
		return "", "", nil, chaterr.Wrap(chaterr.InvalidArgument, "weak password", err)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return "", "", nil, chaterr.Wrap(chaterr.Internal, "hashing password", err)
	}
	now := time.Now()
	u := models.User{
		Uuid:      uuid.NewString(),
		Name:      username,
		Email:     email,
		Password:  hashed,
		LastLogin: &now,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if chaterr.KindOf(err) == chaterr.Conflict {
			return "", "", nil, chaterr.New(chaterr.Conflict, "username is taken")
		}
		return "", "", nil, err
	}
	if access, err = utils.GenerateJWTToken(u.Id, u.Name); err != nil {
		return "", "", nil, chaterr.Wrap(chaterr.Internal, "signing token", err)
	}
	if refresh, err = utils.GenerateRefreshToken(u.Id, u.Name); err != nil {
		return "", "", nil, chaterr.Wrap(chaterr.Internal, "signing token", err)
	}
	return access, refresh, &u, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (access, refresh string, user *models.User, err error) {
	u, err := s.users.FindByName(ctx, username)
	if err != nil {
		if chaterr.KindOf(err) == chaterr.NotFound {
			return "", "", nil, chaterr.New(chaterr.NotAuthenticated, "unknown user or wrong password")
		}
		return "", "", nil, err
	}
	if !utils.CheckPasswordHash(password, u.Password) {
		return "", "", nil, chaterr.New(chaterr.NotAuthenticated, "unknown user or wrong password")
	}
	if access, err = utils.GenerateJWTToken(u.Id, u.Name); err != nil {
		return "", "", nil, chaterr.Wrap(chaterr.Internal, "signing token", err)
	}
	if refresh, err = utils.GenerateRefreshToken(u.Id, u.Name); err != nil {
		return "", "", nil, chaterr.Wrap(chaterr.Internal, "signing token", err)
	}
	now := time.Now()
	u.LastLogin = &now
	_ = s.users.Save(ctx, u)
	return access, refresh, u, nil
}
