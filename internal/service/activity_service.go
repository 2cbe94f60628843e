package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/schema"
	"gorm.io/gorm"
)

var (
	// ErrInvalidInput 在日期无法解析或缺少必填字段时返回
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoActivitySelected 在 drinking/gambling 均未勾选时返回
	ErrNoActivitySelected = errors.New("no activity selected")
	// ErrEntryNotFound 在条目不存在或不属于当前用户时返回
	ErrEntryNotFound = errors.New("calendar entry not found")
	// ErrPersistence 包装事务内的存储错误，事务已整体回滚
	ErrPersistence = errors.New("persistence failure")
)

// RequestContext 携带当前请求的身份，由 handler 从会话中解析
// Anonymous 表示会话中没有身份，使用了配置的默认用户
type RequestContext struct {
	UserID    uint
	Anonymous bool
}

// ActivityService 负责打卡写入：同一用户同一天只保留一条 CalendarEntry，
// 每条最多一条饮酒明细和一条赌博明细，并在每次写入时清理旧数据遗留的重复条目。
type ActivityService struct {
	db     *gorm.DB
	schema *schema.Schema
	strict bool
}

// NewActivityService 构造 ActivityService
func NewActivityService(gdb *gorm.DB, questions *schema.Schema) *ActivityService {
	return &ActivityService{db: gdb, schema: questions}
}

// WithStrictPayload 开启后，写入时拒绝问卷中未声明的字段
func (s *ActivityService) WithStrictPayload(strict bool) *ActivityService {
	s.strict = strict
	return s
}

// LogActivity 按日期写入打卡：找到或创建当天的主条目，更新两类明细，再删除当天其余重复条目。
// 全部修改在一个事务中完成。先校验日期，再校验活动选择；两者都在访问数据库之前。
func (s *ActivityService) LogActivity(ctx context.Context, rc RequestContext, input ActivityInput) (*db.CalendarEntry, error) {
	date, err := ParseDate(input.Date)
	if err != nil {
		return nil, err
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}

	var primary db.CalendarEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := dayEntries(tx, rc.UserID, date)
		if err != nil {
			return err
		}

		if len(entries) > 0 {
			primary = entries[0]
		} else {
			primary = db.CalendarEntry{UserID: rc.UserID, EntryDate: date}
			if err := tx.Create(&primary).Error; err != nil {
				return fmt.Errorf("create calendar entry: %w", err)
			}
		}

		if err := applyActivities(tx, &primary, input); err != nil {
			return err
		}
		return reconcileDay(tx, rc.UserID, date, primary.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: log activity: %w", ErrPersistence, err)
	}

	return &primary, nil
}

// UpdateActivity 以条目 ID 定位后执行与 LogActivity 相同的明细更新，并清理同一天的其他条目。
// 先确认条目存在且属于当前用户（ErrEntryNotFound），再校验活动选择，
// 因此不存在或他人的条目一律返回 NotFound。
func (s *ActivityService) UpdateActivity(ctx context.Context, rc RequestContext, entryID uint, input ActivityInput) (*db.CalendarEntry, error) {
	var target db.CalendarEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := ownedEntry(tx, rc.UserID, entryID)
		if err != nil {
			return err
		}
		if err := s.validate(input); err != nil {
			return err
		}
		target = *entry

		if err := applyActivities(tx, &target, input); err != nil {
			return err
		}
		return reconcileDay(tx, rc.UserID, normalizeToDate(target.EntryDate), target.ID)
	})
	if err != nil {
		if isRequestError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update activity: %w", ErrPersistence, err)
	}

	return &target, nil
}

// DeleteActivity 删除条目所在那一天的全部条目与明细，返回被删除的日期
func (s *ActivityService) DeleteActivity(ctx context.Context, rc RequestContext, entryID uint) (time.Time, error) {
	var date time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := ownedEntry(tx, rc.UserID, entryID)
		if err != nil {
			return err
		}
		date = normalizeToDate(entry.EntryDate)
		return reconcileDay(tx, rc.UserID, date, 0)
	})
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("%w: delete activity: %w", ErrPersistence, err)
	}
	return date, nil
}

// DeleteActivityType 删除某一天某一类活动的明细；当天不再有任何明细时一并删除条目
func (s *ActivityService) DeleteActivityType(ctx context.Context, rc RequestContext, dateValue, activity string) (time.Time, error) {
	date, err := ParseDate(dateValue)
	if err != nil {
		return time.Time{}, err
	}

	activity = strings.ToLower(strings.TrimSpace(activity))
	var model any
	switch activity {
	case schema.ActivityDrinking:
		model = &db.DrinkingDetail{}
	case schema.ActivityGambling:
		model = &db.GamblingDetail{}
	default:
		return time.Time{}, fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, activity)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := dayEntries(tx, rc.UserID, date)
		if err != nil {
			return err
		}
		ids := entryIDs(entries)
		if len(ids) == 0 {
			return ErrEntryNotFound
		}

		result := tx.Where("entry_id IN ?", ids).Delete(model)
		if result.Error != nil {
			return fmt.Errorf("delete %s details: %w", activity, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrEntryNotFound
		}

		remaining, err := countDetails(tx, ids)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return reconcileDay(tx, rc.UserID, date, 0)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("%w: delete %s: %w", ErrPersistence, activity, err)
	}
	return date, nil
}

func (s *ActivityService) validate(input ActivityInput) error {
	if !input.DrinkingLogged && !input.GamblingLogged {
		return ErrNoActivitySelected
	}
	if !s.strict || s.schema == nil {
		return nil
	}

	for _, answers := range []map[string]any{input.Drinking, input.Gambling} {
		if unknown := s.schema.UnknownKeys(answers); len(unknown) > 0 {
			return fmt.Errorf("%w: unknown fields %s", ErrInvalidInput, strings.Join(unknown, ", "))
		}
	}
	return nil
}

// reconcileDay 删除 (userID, date) 下除 keepID 外的所有条目，先删明细再删条目。keepID=0 时删除整天。
func reconcileDay(tx *gorm.DB, userID uint, date time.Time, keepID uint) error {
	entries, err := dayEntries(tx, userID, date)
	if err != nil {
		return err
	}

	duplicates := make([]uint, 0, len(entries))
	for _, entry := range entries {
		if entry.ID != keepID {
			duplicates = append(duplicates, entry.ID)
		}
	}
	if len(duplicates) == 0 {
		return nil
	}

	if err := tx.Where("entry_id IN ?", duplicates).Delete(&db.DrinkingDetail{}).Error; err != nil {
		return fmt.Errorf("delete duplicate drinking details: %w", err)
	}
	if err := tx.Where("entry_id IN ?", duplicates).Delete(&db.GamblingDetail{}).Error; err != nil {
		return fmt.Errorf("delete duplicate gambling details: %w", err)
	}
	if err := tx.Where("id IN ?", duplicates).Delete(&db.CalendarEntry{}).Error; err != nil {
		return fmt.Errorf("delete duplicate calendar entries: %w", err)
	}
	return nil
}

func applyActivities(tx *gorm.DB, entry *db.CalendarEntry, input ActivityInput) error {
	if err := syncDetail[db.DrinkingDetail](tx, entry, input.DrinkingLogged, input.Drinking); err != nil {
		return fmt.Errorf("sync drinking: %w", err)
	}
	if err := syncDetail[db.GamblingDetail](tx, entry, input.GamblingLogged, input.Gambling); err != nil {
		return fmt.Errorf("sync gambling: %w", err)
	}
	return nil
}

// syncDetail 勾选时更新最新的一条明细（没有则新建）并删除多余的；未勾选时删除全部
func syncDetail[T any, PT interface {
	*T
	db.ActivityDetail
}](tx *gorm.DB, entry *db.CalendarEntry, logged bool, answers map[string]any) error {
	var rows []T
	if err := tx.Where("entry_id = ?", entry.ID).Order("id DESC").Find(&rows).Error; err != nil {
		return err
	}

	if !logged {
		if len(rows) == 0 {
			return nil
		}
		return tx.Where("entry_id = ?", entry.ID).Delete(PT(new(T))).Error
	}

	stored := make(map[string]any, len(answers))
	for key, value := range answers {
		stored[key] = value
	}

	if len(rows) == 0 {
		row := PT(new(T))
		row.SetAnswers(entry.UserID, entry.ID, stored)
		return tx.Create(row).Error
	}

	keep := PT(&rows[0])
	keep.SetAnswers(entry.UserID, entry.ID, stored)
	if err := tx.Save(keep).Error; err != nil {
		return err
	}

	if len(rows) > 1 {
		extra := make([]uint, 0, len(rows)-1)
		for i := 1; i < len(rows); i++ {
			extra = append(extra, PT(&rows[i]).DetailID())
		}
		if err := tx.Where("id IN ?", extra).Delete(PT(new(T))).Error; err != nil {
			return err
		}
	}
	return nil
}

// dayEntries 返回某用户某一天的全部条目，ID 倒序（最新在前）
func dayEntries(tx *gorm.DB, userID uint, date time.Time) ([]db.CalendarEntry, error) {
	start := normalizeToDate(date)
	end := start.AddDate(0, 0, 1)

	var entries []db.CalendarEntry
	if err := tx.Where("user_id = ? AND entry_date >= ? AND entry_date < ?", userID, start, end).
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list day entries: %w", err)
	}
	return entries, nil
}

func ownedEntry(tx *gorm.DB, userID, entryID uint) (*db.CalendarEntry, error) {
	var entry db.CalendarEntry
	if err := tx.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("find calendar entry: %w", err)
	}
	return &entry, nil
}

func countDetails(tx *gorm.DB, entryIDs []uint) (int64, error) {
	var drinking, gambling int64
	if err := tx.Model(&db.DrinkingDetail{}).Where("entry_id IN ?", entryIDs).Count(&drinking).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&db.GamblingDetail{}).Where("entry_id IN ?", entryIDs).Count(&gambling).Error; err != nil {
		return 0, err
	}
	return drinking + gambling, nil
}

func entryIDs(entries []db.CalendarEntry) []uint {
	ids := make([]uint, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids
}

// isRequestError 判断错误是否由请求本身引起，这类错误不包装为 ErrPersistence
func isRequestError(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrNoActivitySelected) ||
		errors.Is(err, ErrInvalidInput)
}
