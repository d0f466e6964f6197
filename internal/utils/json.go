package utils

import (
	"encoding/json"
	"regexp"
	"strings"

	"k8s.io/klog/v2"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\n?(.*?)\\n?```")

// ExtractFencedJSON 提取 ```json ... ``` 代码块内容
func ExtractFencedJSON(content string) (string, bool) {
	match := fencedJSONPattern.FindStringSubmatch(content)
	if match == nil {
		return "", false
	}
	klog.V(6).Infof("[ExtractFencedJSON] 提取到 JSON 代码块，长度: %d", len(match[1]))
	return match[1], true
}

// ExtractJSONSpan 返回第一个 '{' 到最后一个 '}' 之间的内容（贪婪匹配）
func ExtractJSONSpan(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}
