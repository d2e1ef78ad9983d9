package repositories

import (
	"context"

	"github.com/atrium-collab/atrium/internal/models"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByName(ctx context.Context, name string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) *GormUserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, classify("find user", err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindByName(ctx context.Context, name string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&u).Error; err != nil {
		return nil, classify("find user", err)
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return classify("create user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormUserRepository) Save(ctx context.Context, user *models.User) error {
	return classify("save user", r.db.WithContext(ctx).Save(user).Error)
}
