package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/schema"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testQuestions = `{
  "drinking": [
    {"id": "drinks", "type": "number"},
    {"id": "drink_type", "type": "select"}
  ],
  "gambling": [
    {"id": "gambling_type", "type": "select"},
    {"id": "money_spent", "type": "number"},
    {"id": "drinks_while_gambling", "type": "number"}
  ]
}`

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return gdb
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(testQuestions))
	if err != nil {
		t.Fatalf("failed to parse test schema: %v", err)
	}
	return s
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	if err != nil {
		t.Fatalf("invalid test date %q: %v", value, err)
	}
	return d
}

func countRows(t *testing.T, gdb *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := gdb.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

// seedEntry 直接写库，模拟旧版本留下的条目
func seedEntry(t *testing.T, gdb *gorm.DB, userID uint, at time.Time, drinking, gambling map[string]any) db.CalendarEntry {
	t.Helper()

	entry := db.CalendarEntry{UserID: userID, EntryDate: at}
	if err := gdb.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
	if drinking != nil {
		detail := db.DrinkingDetail{}
		detail.SetAnswers(userID, entry.ID, drinking)
		if err := gdb.Create(&detail).Error; err != nil {
			t.Fatalf("failed to seed drinking: %v", err)
		}
	}
	if gambling != nil {
		detail := db.GamblingDetail{}
		detail.SetAnswers(userID, entry.ID, gambling)
		if err := gdb.Create(&detail).Error; err != nil {
			t.Fatalf("failed to seed gambling: %v", err)
		}
	}
	return entry
}
