package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/activitylog/internal/config"
	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/logging"
	"github.com/activitylog/internal/schema"
	"github.com/activitylog/internal/service"
)

const (
	demoEmail    = "participant@example.com"
	demoUsername = "participant"
	demoPassword = "Participant1!"
	demoDays     = 14
)

// 测试数据生成器：管理员、一个普通用户和最近两周的打卡
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, "text")

	// 初始化数据库
	if err := db.Init(db.Options{
		Path:     cfg.DatabasePath,
		URL:      cfg.DatabaseURL,
		LogLevel: logging.GormLevel(cfg.DBLogLevel),
	}); err != nil {
		exit("数据库初始化失败", err)
	}

	questions, err := schema.Load(cfg.QuestionsPath)
	if err != nil {
		exit("问卷配置读取失败", err)
	}

	email, username, password := cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword
	if email == "" || username == "" || password == "" {
		email, username, password = "admin@example.com", "admin", "Admin123!"
	}
	admin, err := db.EnsureAdmin(db.DB, email, username, password)
	if err != nil {
		exit("创建管理员失败", err)
	}
	slog.Info("管理员已就绪", "user_id", admin.ID, "username", admin.Username)

	participant, err := ensureParticipant(service.NewUserService(db.DB))
	if err != nil {
		exit("创建普通用户失败", err)
	}

	logged, err := seedActivity(context.Background(), service.NewActivityService(db.DB, questions), participant.ID, time.Now().UTC())
	if err != nil {
		exit("生成打卡数据失败", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("管理员: %s (密码: %s)\n", email, password)
	fmt.Printf("普通用户: %s (密码: %s)，打卡 %d 天\n", demoEmail, demoPassword, logged)
}

func ensureParticipant(users *service.UserService) (*db.User, error) {
	var existing db.User
	err := db.DB.Where("email = ?", demoEmail).First(&existing).Error
	if err == nil {
		slog.Info("普通用户已存在，跳过创建", "user_id", existing.ID)
		return &existing, nil
	}

	user, err := users.Register(service.RegisterInput{
		FirstName:       "Demo",
		LastName:        "Participant",
		Email:           demoEmail,
		Username:        demoUsername,
		Password:        demoPassword,
		ConfirmPassword: demoPassword,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("register participant: %v", verr.Errors)
		}
		return nil, err
	}
	return user, nil
}

// seedActivity 按固定规律写入最近 demoDays 天，重复执行结果相同
func seedActivity(ctx context.Context, activities *service.ActivityService, userID uint, now time.Time) (int, error) {
	rc := service.RequestContext{UserID: userID}
	logged := 0

	for i := 0; i < demoDays; i++ {
		day := now.AddDate(0, 0, -i)
		input := service.ActivityInput{Date: day.Format("2006-01-02")}

		if i%2 == 0 {
			input.DrinkingLogged = true
			input.Drinking = map[string]any{
				"drinks":               float64(i%4 + 1),
				"drink_type":           "beer",
				"drinking_money_spent": float64(10 + i),
				"drinking_trigger":     "Dinner with friends",
			}
		}
		if i%3 == 0 {
			input.GamblingLogged = true
			input.Gambling = map[string]any{
				"gambling_type":         "sports",
				"time_spent":            float64(30 + 5*i),
				"money_intended":        float64(20),
				"money_spent":           float64(15 + i),
				"money_earned":          float64(i % 5 * 3),
				"drinks_while_gambling": float64(i % 2),
			}
		}
		if !input.DrinkingLogged && !input.GamblingLogged {
			continue
		}

		if _, err := activities.LogActivity(ctx, rc, input); err != nil {
			return logged, fmt.Errorf("log %s: %w", input.Date, err)
		}
		logged++
	}

	return logged, nil
}

func exit(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
