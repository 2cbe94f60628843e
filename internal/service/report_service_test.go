package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/activitylog/internal/db"
)

func seedReportUser(t *testing.T, svc *ReportService, email, username string) db.User {
	t.Helper()
	user := db.User{Email: email, Username: username, Password: "hashed"}
	if err := svc.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func readReport(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("report is not valid CSV: %v", err)
	}
	return records
}

func TestReportGenerateSingleUserInclusiveRange(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewReportService(gdb, testSchema(t))

	alice := seedReportUser(t, svc, "alice@example.com", "alice")
	bob := seedReportUser(t, svc, "bob@example.com", "bob")

	seedEntry(t, gdb, alice.ID, mustDate(t, "2024-02-28"), map[string]any{"drinks": 9}, nil)
	seedEntry(t, gdb, alice.ID, mustDate(t, "2024-03-01"), map[string]any{"drinks": 1, "drink_type": "wine"}, nil)
	// 同一天的重复条目，后写覆盖先写
	seedEntry(t, gdb, alice.ID, mustDate(t, "2024-03-01").Add(20*time.Hour), map[string]any{"drinks": 3}, map[string]any{"gambling_type": "slots", "money_spent": 12.5})
	seedEntry(t, gdb, alice.ID, mustDate(t, "2024-03-03").Add(23*time.Hour), nil, map[string]any{"gambling_type": "cards"})
	seedEntry(t, gdb, alice.ID, mustDate(t, "2024-03-04"), map[string]any{"drinks": 5}, nil)
	seedEntry(t, gdb, bob.ID, mustDate(t, "2024-03-01"), map[string]any{"drinks": 2}, nil)

	var buf bytes.Buffer
	err := svc.Generate(context.Background(), &buf, ReportFilter{UserID: alice.ID, StartDate: "2024-03-01", EndDate: "2024-03-03"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	records := readReport(t, buf.Bytes())
	wantHeader := []string{"user_id", "username", "date", "has_drinking", "has_gambling",
		"drinks", "drink_type", "gambling_type", "money_spent", "drinks_while_gambling"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d: %v", len(records), records)
	}

	wantFirst := []string{"1", "alice", "2024-03-01", "true", "true", "3", "wine", "slots", "12.5", ""}
	if !reflect.DeepEqual(records[1], wantFirst) {
		t.Fatalf("unexpected first row:\n got %v\nwant %v", records[1], wantFirst)
	}

	wantSecond := []string{"1", "alice", "2024-03-03", "false", "true", "", "", "cards", "", ""}
	if !reflect.DeepEqual(records[2], wantSecond) {
		t.Fatalf("unexpected second row:\n got %v\nwant %v", records[2], wantSecond)
	}
}

func TestReportGenerateAllUsers(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewReportService(gdb, testSchema(t))

	alice := seedReportUser(t, svc, "alice@example.com", "alice")
	bob := seedReportUser(t, svc, "bob@example.com", "bob")
	seedEntry(t, gdb, bob.ID, mustDate(t, "2024-03-01"), map[string]any{"drinks": 2}, nil)
	seedEntry(t, gdb, alice.ID, mustDate(t, "2024-03-02"), map[string]any{"drinks": 1}, nil)

	var buf bytes.Buffer
	if err := svc.Generate(context.Background(), &buf, ReportFilter{}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	records := readReport(t, buf.Bytes())
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[1][1] != "alice" || records[2][1] != "bob" {
		t.Fatalf("expected rows ordered by user id, got %v / %v", records[1], records[2])
	}
}

func TestReportGenerateErrors(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewReportService(gdb, testSchema(t))

	var buf bytes.Buffer
	if err := svc.Generate(context.Background(), &buf, ReportFilter{UserID: 42}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := svc.Generate(context.Background(), &buf, ReportFilter{StartDate: "yesterday"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.Generate(context.Background(), &buf, ReportFilter{StartDate: "2024-03-05", EndDate: "2024-03-01"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for reversed range, got %v", err)
	}
}

func TestReportWriteFile(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewReportService(gdb, testSchema(t))
	user := seedReportUser(t, svc, "carol@example.com", "carol")
	seedEntry(t, gdb, user.ID, mustDate(t, "2024-03-01"), map[string]any{"drinks": 2}, nil)

	dir := filepath.Join(t.TempDir(), "reports")
	path, err := svc.WriteFile(context.Background(), dir, ReportFilter{UserID: user.ID})
	if err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected report inside %s, got %s", dir, path)
	}
	if !strings.HasSuffix(path, "user_1_report.csv") {
		t.Fatalf("unexpected report name %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	if records := readReport(t, data); len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}

	if _, err := svc.WriteFile(context.Background(), dir, ReportFilter{UserID: 99}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("failed report must not leave a file behind, got %d files", len(entries))
	}
}
