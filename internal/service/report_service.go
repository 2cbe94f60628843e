package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrUserNotFound 在报表指定的用户不存在时返回
var ErrUserNotFound = errors.New("user not found")

// ReportFilter 指定报表范围。UserID 为 0 表示全部用户；StartDate/EndDate 为 YYYY-MM-DD，EndDate 包含当天。
type ReportFilter struct {
	UserID    uint
	StartDate string
	EndDate   string
}

// ReportService 将打卡数据导出为 CSV
type ReportService struct {
	db     *gorm.DB
	schema *schema.Schema
}

// NewReportService 构造 ReportService
func NewReportService(gdb *gorm.DB, questions *schema.Schema) *ReportService {
	return &ReportService{db: gdb, schema: questions}
}

// FileName 返回下载时建议的文件名
func (f ReportFilter) FileName() string {
	if f.UserID != 0 {
		return fmt.Sprintf("user_%d_report.csv", f.UserID)
	}
	return "all_users_report.csv"
}

// Generate 将报表写入 w：每个用户每个有数据的日期一行，没有条目的日期不输出
func (s *ReportService) Generate(ctx context.Context, w io.Writer, filter ReportFilter) error {
	start, end, err := reportRange(filter)
	if err != nil {
		return err
	}

	users, err := s.reportUsers(ctx, filter.UserID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(s.schema.ReportHeaders()); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	fieldIDs := s.schema.FieldIDs()
	for _, user := range users {
		rows, err := s.userRows(ctx, user, start, end, fieldIDs)
		if err != nil {
			return err
		}
		if err := writer.WriteAll(rows); err != nil {
			return fmt.Errorf("write report rows: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile 将报表写入 dir 下的新文件并返回路径
func (s *ReportService) WriteFile(ctx context.Context, dir string, filter ReportFilter) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s", time.Now().Format("20060102"), uuid.NewString(), filter.FileName())
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}

	if err := s.Generate(ctx, file, filter); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}
	return path, nil
}

func (s *ReportService) reportUsers(ctx context.Context, userID uint) ([]db.User, error) {
	var users []db.User
	query := s.db.WithContext(ctx).Order("id ASC")
	if userID != 0 {
		query = query.Where("id = ?", userID)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list report users: %w", err)
	}
	if userID != 0 && len(users) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return users, nil
}

func (s *ReportService) userRows(ctx context.Context, user db.User, start, end *time.Time, fieldIDs []string) ([][]string, error) {
	query := s.db.WithContext(ctx).
		Preload("Drinking", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("Gambling", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("user_id = ?", user.ID)
	if start != nil {
		query = query.Where("entry_date >= ?", *start)
	}
	if end != nil {
		query = query.Where("entry_date < ?", *end)
	}

	var entries []db.CalendarEntry
	if err := query.Order("entry_date ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list report entries: %w", err)
	}

	type reportDay struct {
		hasDrinking bool
		hasGambling bool
		drinking    map[string]any
		gambling    map[string]any
	}

	days := make(map[string]*reportDay)
	for _, entry := range entries {
		key := entry.DateKey()
		day, ok := days[key]
		if !ok {
			day = &reportDay{drinking: map[string]any{}, gambling: map[string]any{}}
			days[key] = day
		}
		for i := range entry.Drinking {
			if answers := entry.Drinking[i].Answers(); len(answers) > 0 {
				day.hasDrinking = true
				mergeFields(day.drinking, answers)
			}
		}
		for i := range entry.Gambling {
			if answers := entry.Gambling[i].Answers(); len(answers) > 0 {
				day.hasGambling = true
				mergeFields(day.gambling, answers)
			}
		}
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rows := make([][]string, 0, len(dates))
	for _, date := range dates {
		day := days[date]
		merged := s.schema.ExtractDrinking(day.drinking)
		mergeFields(merged, s.schema.ExtractGambling(day.gambling))

		row := []string{
			strconv.FormatUint(uint64(user.ID), 10),
			user.Username,
			date,
			strconv.FormatBool(day.hasDrinking),
			strconv.FormatBool(day.hasGambling),
		}
		for _, field := range fieldIDs {
			row = append(row, formatCell(merged[field]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func reportRange(filter ReportFilter) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if filter.StartDate != "" {
		parsed, err := ParseDate(filter.StartDate)
		if err != nil {
			return nil, nil, err
		}
		start = &parsed
	}
	if filter.EndDate != "" {
		parsed, err := ParseDate(filter.EndDate)
		if err != nil {
			return nil, nil, err
		}
		// 包含 end 当天
		next := parsed.AddDate(0, 0, 1)
		end = &next
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, nil, fmt.Errorf("%w: start_date after end_date", ErrInvalidInput)
	}
	return start, end, nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
