package service

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/schema"
	"gorm.io/gorm"
)

// CalendarEvent 是日历上的一天，同一天的多条条目在读取时合并
type CalendarEvent struct {
	ID          uint
	Date        string
	HasDrinking bool
	HasGambling bool
	Fields      map[string]any
}

// MarshalJSON 把问卷字段平铺到事件对象上，固定字段优先
func (e CalendarEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+4)
	for key, value := range e.Fields {
		out[key] = value
	}
	out["id"] = e.ID
	out["date"] = e.Date
	out["has_drinking"] = e.HasDrinking
	out["has_gambling"] = e.HasGambling
	return json.Marshal(out)
}

// CalendarService 负责日历读取
type CalendarService struct {
	db     *gorm.DB
	schema *schema.Schema
}

// NewCalendarService 构造 CalendarService
func NewCalendarService(gdb *gorm.DB, questions *schema.Schema) *CalendarService {
	return &CalendarService{db: gdb, schema: questions}
}

// Events 返回用户全部打卡，按日期升序，每天一条
func (s *CalendarService) Events(ctx context.Context, userID uint) ([]CalendarEvent, error) {
	var entries []db.CalendarEntry
	if err := s.withDetails(ctx).
		Where("user_id = ?", userID).
		Order("entry_date ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list calendar entries: %w", err)
	}

	return s.buildEvents(entries), nil
}

// EventForDate 返回某一天合并后的事件，当天没有条目时返回 nil
func (s *CalendarService) EventForDate(ctx context.Context, userID uint, date time.Time) (*CalendarEvent, error) {
	start := normalizeToDate(date)

	var entries []db.CalendarEntry
	if err := s.withDetails(ctx).
		Where("user_id = ? AND entry_date >= ? AND entry_date < ?", userID, start, start.AddDate(0, 0, 1)).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load calendar day: %w", err)
	}

	events := s.buildEvents(entries)
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (s *CalendarService) withDetails(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Drinking", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("Gambling", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") })
}

// buildEvents 按日期分组；代表 ID 取当天最大的条目 ID，字段按条目顺序合并，后写覆盖先写
func (s *CalendarService) buildEvents(entries []db.CalendarEntry) []CalendarEvent {
	byDate := make(map[string]*CalendarEvent)

	for _, entry := range entries {
		key := entry.DateKey()
		event, exists := byDate[key]
		if !exists {
			event = &CalendarEvent{Date: key, Fields: map[string]any{}}
			byDate[key] = event
		}
		if entry.ID > event.ID {
			event.ID = entry.ID
		}

		for i := range entry.Drinking {
			event.HasDrinking = true
			mergeFields(event.Fields, s.schema.ExtractDrinking(entry.Drinking[i].Answers()))
		}
		for i := range entry.Gambling {
			event.HasGambling = true
			mergeFields(event.Fields, s.schema.ExtractGambling(entry.Gambling[i].Answers()))
		}
	}

	events := make([]CalendarEvent, 0, len(byDate))
	for _, event := range byDate {
		events = append(events, *event)
	}
	slices.SortFunc(events, func(a, b CalendarEvent) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return events
}

func mergeFields(dst, src map[string]any) {
	for key, value := range src {
		dst[key] = value
	}
}
