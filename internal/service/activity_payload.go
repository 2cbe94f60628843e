package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/activitylog/internal/schema"
)

const dateLayout = "2006-01-02"

// 仅用于传输的键，不会写入明细
var transportKeys = []string{"date", "drinking_logged", "gambling_logged", "activities", "type"}

// ActivityInput 描述一次打卡写入。
// Drinking/Gambling 为各自明细保存的答案；合并表单时两者是同一份数据。
type ActivityInput struct {
	Date           string
	DrinkingLogged bool
	GamblingLogged bool
	Drinking       map[string]any
	Gambling       map[string]any
}

// ParseActivityRequest 将请求体转换为 ActivityInput，支持三种形态：
//   - 合并表单：{date, drinking_logged, gambling_logged, ...答案}
//   - 分段：{date, activities: {drinking: {...}, gambling: {...}}}
//   - 单类型：{date, type: "drinking"|"gambling", ...答案}
func ParseActivityRequest(body map[string]any) ActivityInput {
	input := ActivityInput{}
	if body == nil {
		return input
	}

	if raw, ok := body["date"].(string); ok {
		input.Date = strings.TrimSpace(raw)
	}

	if activities, ok := body["activities"].(map[string]any); ok {
		if payload := activities[schema.ActivityDrinking]; activitySelected(payload) {
			input.DrinkingLogged = true
			input.Drinking = CleanAnswers(asMap(payload))
		}
		if payload := activities[schema.ActivityGambling]; activitySelected(payload) {
			input.GamblingLogged = true
			input.Gambling = CleanAnswers(asMap(payload))
		}
		return input
	}

	payload := make(map[string]any, len(body))
	for key, value := range body {
		payload[key] = value
	}
	for _, key := range transportKeys {
		delete(payload, key)
	}
	payload = CleanAnswers(payload)

	if legacyType, ok := body["type"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(legacyType)) {
		case schema.ActivityDrinking:
			input.DrinkingLogged = true
		case schema.ActivityGambling:
			input.GamblingLogged = true
		}
	} else {
		input.DrinkingLogged = asBool(body["drinking_logged"])
		input.GamblingLogged = asBool(body["gambling_logged"])
	}

	if input.DrinkingLogged {
		input.Drinking = payload
	}
	if input.GamblingLogged {
		input.Gambling = payload
	}
	return input
}

// CleanAnswers 去掉字符串首尾空白，空字符串视为未填写（nil），其余内容原样保留。返回新 map。
func CleanAnswers(answers map[string]any) map[string]any {
	out := make(map[string]any, len(answers))
	for key, value := range answers {
		out[key] = cleanValue(value)
	}
	return out
}

func cleanValue(value any) any {
	switch v := value.(type) {
	case string:
		cleaned := strings.TrimSpace(v)
		if cleaned == "" {
			return nil
		}
		return cleaned
	case map[string]any:
		return CleanAnswers(v)
	case []any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			items = append(items, cleanValue(item))
		}
		return items
	default:
		return v
	}
}

// ParseDate 解析 YYYY-MM-DD，结果为当天 UTC 零点
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, value)
	}
	return t, nil
}

func normalizeToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// activitySelected 与表单语义一致：空对象、false、null 都视为未选择
func activitySelected(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case map[string]any:
		return len(v) > 0
	default:
		return asBool(v)
	}
}

func asMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on", "yes", "y":
			return true
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
