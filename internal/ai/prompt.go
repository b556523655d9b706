package ai

import (
	"strings"

	"copilot/internal/model"
)

// baseSystemPrompt 固定的系统指令
var baseSystemPrompt = []string{
	"You are a Grafana observability copilot.",
	"Help users query metrics, explore logs, and work with dashboards and alerts.",
	"Prefer concise answers, and suggest next steps when helpful.",
}

// BuildSystemPrompt 构建系统提示词，有位置提示时追加当前页面
func BuildSystemPrompt(hc model.HostContext) string {
	lines := append([]string(nil), baseSystemPrompt...)
	if hint := strings.TrimSpace(hc.LocationHint); hint != "" {
		lines = append(lines, "Current page: "+hint)
	}
	return strings.Join(lines, "\n")
}
