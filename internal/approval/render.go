package approval

import (
	"fmt"
	"sort"
	"strings"
)

const maxDisplayValueLen = 100

// DisplayValue formats an argument value for rendering. Values longer than
// 100 characters are truncated for display only; the value carried by the
// request itself is never shortened.
func DisplayValue(value any) string {
	text := fmt.Sprintf("%v", value)
	if len(text) > maxDisplayValueLen {
		return text[:maxDisplayValueLen-3] + "..."
	}
	return text
}

// Summary renders a request as plain text for channels without richer UI.
func Summary(req Request) string {
	var b strings.Builder
	b.WriteString("Tool approval required\n")
	b.WriteString("The following tools require your confirmation:\n")
	for _, call := range req.ToolCalls {
		fmt.Fprintf(&b, "\nTool: %s\n", call.Name)
		if len(call.Arguments) == 0 {
			continue
		}
		b.WriteString("Parameters:\n")
		keys := make([]string, 0, len(call.Arguments))
		for key := range call.Arguments {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "  - %s: %s\n", key, DisplayValue(call.Arguments[key]))
		}
	}
	b.WriteString("\nPlease approve or reject this action.")
	return b.String()
}
