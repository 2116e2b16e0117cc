package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      *string   `gorm:"size:100;unique" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	IsActive   *bool     `gorm:"not null" json:"is_active"`
	Role       UserRole  `gorm:"type:enum('A', 'O', 'C');default:C" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	BusinessId string   `json:"business_id"`
	Username   string   `json:"username" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Email      *string  `json:"email"`
	Phone      string   `json:"phone"`
	Password   string   `json:"password" binding:"required"`
	Role       UserRole `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	if input.Role == "" {
		input.Role = UserRoleClerk
	}
	if !input.Role.IsValid() {
		return nil, newValidationError("invalid user role")
	}
	if input.Email != nil && !utils.IsValidEmail(*input.Email) {
		return nil, newValidationError("invalid email address")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		BusinessId: input.BusinessId,
		Username:   input.Username,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Password:   string(hashed),
		IsActive:   utils.NewTrue(),
		Role:       input.Role,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

// Login verifies credentials, stores a session token in redis and returns it.
func Login(ctx context.Context, username string, password string) (string, *User, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, errors.New("invalid username or password")
	}
	if user.IsActive == nil || !*user.IsActive {
		return "", nil, errors.New("user is inactive")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, errors.New("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return "", nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, utils.GetCacheLifespan()); err != nil {
		return "", nil, err
	}
	if err := utils.StoreRedis[User](user, user.ID); err != nil {
		return "", nil, err
	}
	return token, user, nil
}
