package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了用户模型
// Email 统一小写保存；Password 为 bcrypt 哈希
type User struct {
	gorm.Model
	Email     string `gorm:"uniqueIndex;not null"`
	Username  string `gorm:"uniqueIndex;not null"`
	FirstName string
	LastName  string
	Password  string `gorm:"not null"`
	IsAdmin   bool   `gorm:"not null;default:false"`
}

// EnsureAdmin 存在性检查：若提供的邮箱、用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
// 账号已存在时只保证其 IsAdmin 为 true。
func EnsureAdmin(gdb *gorm.DB, email, username, password string) (*User, error) {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedUser == "" || trimmedPassword == "" {
		return nil, nil
	}

	if gdb == nil {
		return nil, errors.New("database not initialized")
	}

	var existing User
	err := gdb.Where("email = ? OR username = ?", trimmedEmail, trimmedUser).First(&existing).Error
	if err == nil {
		if !existing.IsAdmin {
			if err := gdb.Model(&existing).Update("is_admin", true).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:    trimmedEmail,
		Username: trimmedUser,
		Password: string(hashed),
		IsAdmin:  true,
	}
	if err := gdb.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
