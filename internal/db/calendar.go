package db

import (
	"time"

	"gorm.io/datatypes"
)

// CalendarEntry 记录某个用户在某一天的打卡
// 目标状态是每个 (user_id, entry_date) 只有一条；旧数据可能有重复，由 service 层在写入时收敛
// EntryDate 保存为 UTC 零点；EntryType 为旧版本按活动类型建条目时留下的字段
type CalendarEntry struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index:idx_calendar_entries_user_date"`
	EntryDate time.Time `gorm:"not null;index:idx_calendar_entries_user_date"`
	EntryType string    `gorm:"size:50"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Drinking []DrinkingDetail `gorm:"foreignKey:EntryID"`
	Gambling []GamblingDetail `gorm:"foreignKey:EntryID"`
}

// DrinkingDetail 保存饮酒问卷答案，Questions 原样保存提交的字段
type DrinkingDetail struct {
	ID        uint              `gorm:"primaryKey"`
	UserID    uint              `gorm:"not null;index"`
	EntryID   uint              `gorm:"not null;index"`
	Questions datatypes.JSONMap `gorm:"column:drinking_questions"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GamblingDetail 保存赌博问卷答案
type GamblingDetail struct {
	ID        uint              `gorm:"primaryKey"`
	UserID    uint              `gorm:"not null;index"`
	EntryID   uint              `gorm:"not null;index"`
	Questions datatypes.JSONMap `gorm:"column:gambling_questions"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 与旧库保持一致
func (DrinkingDetail) TableName() string {
	return "drinking"
}

// TableName 与旧库保持一致
func (GamblingDetail) TableName() string {
	return "gambling"
}

// DateKey 返回条目所属日期的 ISO 字符串
func (e CalendarEntry) DateKey() string {
	return e.EntryDate.UTC().Format("2006-01-02")
}

// ActivityDetail 抽象饮酒/赌博两类明细，供 service 层统一做增删改
type ActivityDetail interface {
	DetailID() uint
	Answers() map[string]any
	SetAnswers(userID, entryID uint, answers map[string]any)
}

func (d *DrinkingDetail) DetailID() uint { return d.ID }

func (d *DrinkingDetail) Answers() map[string]any { return d.Questions }

func (d *DrinkingDetail) SetAnswers(userID, entryID uint, answers map[string]any) {
	d.UserID = userID
	d.EntryID = entryID
	d.Questions = datatypes.JSONMap(answers)
}

func (d *GamblingDetail) DetailID() uint { return d.ID }

func (d *GamblingDetail) Answers() map[string]any { return d.Questions }

func (d *GamblingDetail) SetAnswers(userID, entryID uint, answers map[string]any) {
	d.UserID = userID
	d.EntryID = entryID
	d.Questions = datatypes.JSONMap(answers)
}
