// Package metricref parses metric-to-metric references embedded in logical
// expressions, written as {{ metric:NAME }}.
package metricref

import (
	"regexp"
	"sort"
)

var refPattern = regexp.MustCompile(`\{\{\s*metric:([A-Za-z0-9_]+)\s*\}\}`)

// Extract returns the distinct referenced metric names in first-seen order.
func Extract(expression string) []string {
	matches := refPattern.FindAllStringSubmatch(expression, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

func Format(name string) string {
	return "{{ metric:" + name + " }}"
}

// Unresolved returns the sorted referenced names for which known reports false.
func Unresolved(expression string, known func(name string) bool) []string {
	var out []string
	for _, name := range Extract(expression) {
		if !known(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
