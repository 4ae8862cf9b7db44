package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/utils"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100;not null;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('Member','Lead','Admin');default:Member" json:"role"`
	IsActive  *bool     `gorm:"not null;default:1" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     UserRole `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleMember
	}

	user := User{
		Username: input.Username,
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashed),
		Role:     role,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (string, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return "", errors.New("invalid username or password")
	}
	if user.IsActive == nil || !*user.IsActive {
		return "", errors.New("user is inactive")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", errors.New("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, string(user.Role))
	if err != nil {
		return "", err
	}

	// Session entry backs logout: a token without one is rejected by the
	// auth middleware while redis is up.
	if err := config.SetRedisValue("Token:"+token, user.Username, utils.TokenLifespan()); err != nil {
		logger := config.GetLogger()
		config.LogWarn(logger, "user.go", "Login", "store session token", user.ID, err)
	}
	return token, nil
}

// Logout drops the session entry for the current token so the auth
// middleware stops accepting it.
func Logout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("token is required")
	}
	return config.RemoveRedisKey("Token:" + token)
}

// ListAdminEmails feeds drift notifications: every Admin gets a copy.
func ListAdminEmails(ctx context.Context) ([]string, error) {
	db := config.GetDB()
	var emails []string
	err := db.WithContext(ctx).Model(&User{}).
		Where("role = ? AND is_active = 1", UserRoleAdmin).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}
