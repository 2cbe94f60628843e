package schema

// Extract 只保留 section 中声明过的键，值取自 stored。
// stored 中缺失的键直接省略，不补默认值；stored 为 nil 时返回空 map。不会修改 stored。
func Extract(section Section, stored map[string]any) map[string]any {
	out := make(map[string]any, len(section))
	if stored == nil {
		return out
	}

	for _, q := range section {
		if value, ok := stored[q.ID]; ok {
			out[q.ID] = value
		}
	}
	return out
}

// ExtractDrinking 按饮酒段过滤
func (s *Schema) ExtractDrinking(stored map[string]any) map[string]any {
	return Extract(s.Drinking, stored)
}

// ExtractGambling 按赌博段过滤
func (s *Schema) ExtractGambling(stored map[string]any) map[string]any {
	return Extract(s.Gambling, stored)
}
