package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/activitylog/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials 在邮箱或密码不匹配时返回
var ErrInvalidCredentials = errors.New("invalid email or password")

var (
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()\-_=+\[\]{};:'",.<>?/\\|` + "`" + `~]`)
)

// ValidationError 汇总注册时的字段级错误，直接展示给用户
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// RegisterInput 注册表单
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

// UserService 负责账号注册、登录与查询
type UserService struct {
	db *gorm.DB
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 校验表单后创建普通用户；邮箱、用户名重复作为字段错误返回
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)

	var problems []string
	if input.FirstName == "" || input.LastName == "" || input.Email == "" ||
		input.Username == "" || input.Password == "" || input.ConfirmPassword == "" {
		problems = append(problems, "All fields are required.")
	}
	if input.Password != input.ConfirmPassword {
		problems = append(problems, "Passwords do not match.")
	}
	if input.Password != "" {
		if msg := ValidatePassword(input.Password); msg != "" {
			problems = append(problems, msg)
		}
	}

	if input.Email != "" {
		taken, err := s.exists("email = ?", input.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			problems = append(problems, "An account with this email already exists.")
		}
	}
	if input.Username != "" {
		taken, err := s.exists("username = ?", input.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			problems = append(problems, "This username is already taken.")
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Errors: problems}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{
		Email:     input.Email,
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Password:  string(hashed),
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码
func (s *UserService) Authenticate(email, password string) (*db.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 根据 ID 获取用户
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListParticipants 返回非管理员用户，供报表页选择
func (s *UserService) ListParticipants() ([]db.User, error) {
	var users []db.User
	if err := s.db.Where("is_admin = ?", false).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ValidatePassword 返回第一条不满足的规则，全部满足时返回空字符串
func ValidatePassword(password string) string {
	switch {
	case len(password) < 8:
		return "Password must be at least 8 characters long."
	case !upperPattern.MatchString(password):
		return "Password must contain at least one uppercase letter."
	case !lowerPattern.MatchString(password):
		return "Password must contain at least one lowercase letter."
	case !digitPattern.MatchString(password):
		return "Password must contain at least one number."
	case !specialPattern.MatchString(password):
		return "Password must contain at least one special character."
	}
	return ""
}

func (s *UserService) exists(query string, value string) (bool, error) {
	var count int64
	if err := s.db.Model(&db.User{}).Where(query, value).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return count > 0, nil
}
