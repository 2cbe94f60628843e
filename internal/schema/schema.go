package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// ActivityDrinking 饮酒问卷段
	ActivityDrinking = "drinking"
	// ActivityGambling 赌博问卷段
	ActivityGambling = "gambling"
)

// ErrInvalidSchema 在问卷配置缺少 id 或 id 重复时返回
var ErrInvalidSchema = errors.New("invalid question schema")

// ReportBaseHeaders 报表固定列，问卷字段追加在其后
var ReportBaseHeaders = []string{"user_id", "username", "date", "has_drinking", "has_gambling"}

// Question 表示一道题目。除 id 以外的属性原样保存在 Meta 中，供前端渲染表单。
type Question struct {
	ID   string
	Meta map[string]any
}

// Section 是一个活动对应的题目列表，顺序即报表列顺序
type Section []Question

// Schema 描述 drinking/gambling 两段问卷，进程启动时加载一次，之后只读
type Schema struct {
	Drinking Section `json:"drinking"`
	Gambling Section `json:"gambling"`
}

// Load 从 JSON 文件读取问卷配置
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question schema: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验问卷配置
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if err := s.Drinking.validate(ActivityDrinking); err != nil {
		return nil, err
	}
	if err := s.Gambling.validate(ActivityGambling); err != nil {
		return nil, err
	}

	return &s, nil
}

// UnmarshalJSON 拆出 id，其余键保存在 Meta
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, _ := raw["id"].(string)
	delete(raw, "id")

	q.ID = strings.TrimSpace(id)
	q.Meta = raw
	return nil
}

// MarshalJSON 还原为 {id, ...meta} 形式
func (q Question) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(q.Meta)+1)
	for key, value := range q.Meta {
		out[key] = value
	}
	out["id"] = q.ID
	return json.Marshal(out)
}

func (s Section) validate(name string) error {
	seen := make(map[string]struct{}, len(s))
	for i, q := range s {
		if q.ID == "" {
			return fmt.Errorf("%w: %s question #%d has no id", ErrInvalidSchema, name, i+1)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate %s question id %q", ErrInvalidSchema, name, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// IDs 返回题目 id 列表
func (s Section) IDs() []string {
	ids := make([]string, 0, len(s))
	for _, q := range s {
		ids = append(ids, q.ID)
	}
	return ids
}

// Has 判断 id 是否属于本段
func (s Section) Has(id string) bool {
	for _, q := range s {
		if q.ID == id {
			return true
		}
	}
	return false
}

// Section 按活动名称返回题目段
func (s *Schema) Section(activity string) (Section, bool) {
	switch activity {
	case ActivityDrinking:
		return s.Drinking, true
	case ActivityGambling:
		return s.Gambling, true
	default:
		return nil, false
	}
}

// FieldIDs 返回 drinking 再 gambling 的全部字段 id，两段重复的 id 只保留第一次出现
func (s *Schema) FieldIDs() []string {
	ids := make([]string, 0, len(s.Drinking)+len(s.Gambling))
	seen := make(map[string]struct{}, cap(ids))
	for _, section := range []Section{s.Drinking, s.Gambling} {
		for _, q := range section {
			if _, dup := seen[q.ID]; dup {
				continue
			}
			seen[q.ID] = struct{}{}
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// ReportHeaders 返回报表表头
func (s *Schema) ReportHeaders() []string {
	headers := make([]string, 0, len(ReportBaseHeaders)+len(s.Drinking)+len(s.Gambling))
	headers = append(headers, ReportBaseHeaders...)
	return append(headers, s.FieldIDs()...)
}

// UnknownKeys 返回 payload 中不属于任何一段问卷的键，用于严格模式校验
func (s *Schema) UnknownKeys(payload map[string]any) []string {
	var unknown []string
	for key := range payload {
		if s.Drinking.Has(key) || s.Gambling.Has(key) {
			continue
		}
		unknown = append(unknown, key)
	}
	return unknown
}
