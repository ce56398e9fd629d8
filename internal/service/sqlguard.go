package service

import (
	"fmt"
	"regexp"
	"strings"
)

// Custom queries come from the site administrator, but they run against the
// live database, so the rules stay strict: one SELECT statement, explicit
// column list, none of the keywords below anywhere in the text.
var (
	selectPrefixRegex = regexp.MustCompile(`(?i)^\s*SELECT\s`)
	wildcardRegex     = regexp.MustCompile(`(?i)^\s*SELECT\s+(?:DISTINCT\s+)?(?:[a-zA-Z0-9_]+\.)?\*`)

	blockedKeywords = []string{
		"insert", "update", "delete", "drop", "alter", "truncate",
		"create", "grant", "revoke", "union", "into", "outfile",
		"information_schema", "pg_sleep", "sleep(", "benchmark(",
	}
)

func ValidateCustomQuery(query string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}
	if !selectPrefixRegex.MatchString(trimmed) {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	if wildcardRegex.MatchString(trimmed) {
		return fmt.Errorf("wildcard SELECT is not allowed, list columns explicitly")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return fmt.Errorf("comments are not allowed")
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range blockedKeywords {
		if keywordPresent(lower, kw) {
			return fmt.Errorf("keyword %q is not allowed", strings.TrimSuffix(kw, "("))
		}
	}
	return nil
}

func keywordPresent(lower, kw string) bool {
	if strings.HasSuffix(kw, "(") || strings.Contains(kw, "_") {
		return strings.Contains(lower, kw)
	}
	idx := 0
	for {
		pos := strings.Index(lower[idx:], kw)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = end
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
