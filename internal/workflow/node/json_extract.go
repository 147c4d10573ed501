package node

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject 从模型输出中截取第一个 JSON 对象，容忍前后夹杂的文本与 ``` 代码块
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}
	raw = stripCodeFence(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

// DecodeJSONObject 解析模型输出为顶层 JSON 对象，数字保留为 json.Number
func DecodeJSONObject(s string) (map[string]any, error) {
	raw := ExtractJSONObject(s)
	if raw == "" {
		return nil, fmt.Errorf("empty response text")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("response is not a json object")
	}
	// 对象之后不允许再有其它 JSON 值
	if dec.More() {
		return nil, fmt.Errorf("trailing data after json object")
	}
	return doc, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
